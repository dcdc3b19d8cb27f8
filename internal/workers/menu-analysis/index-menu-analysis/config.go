// internal/workers/menu-analysis/index-menu-analysis/config.go
package indexmenuanalysis

import "time"

const DefaultIndex = "menu-item-analyses"

type Config struct {
	Timeout time.Duration
	Index   string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Index:   DefaultIndex,
	}
}
