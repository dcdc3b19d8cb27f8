// internal/workers/menu-analysis/segment-menu/config.go
package segmentmenu

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
