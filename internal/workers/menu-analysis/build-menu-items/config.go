// internal/workers/menu-analysis/build-menu-items/config.go
package buildmenuitems

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
