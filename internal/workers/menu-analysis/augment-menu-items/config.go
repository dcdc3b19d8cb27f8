// internal/workers/menu-analysis/augment-menu-items/config.go
package augmentmenuitems

import "time"

type Config struct {
	Timeout        time.Duration
	MaxConcurrency int
	CacheTTL       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        5 * time.Minute,
		MaxConcurrency: 4,
		CacheTTL:       24 * time.Hour,
	}
}
