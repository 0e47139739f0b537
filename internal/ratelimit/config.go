package ratelimit

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config holds rate limiter configuration.
type Config struct {
	Strategy       Strategy `yaml:"strategy"`
	RequestsPerSec float64  `yaml:"requests_per_second"`
	Burst          int      `yaml:"burst"`
}

// DefaultConfig matches the provider's free-tier allowance closely enough to avoid 429s.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyTokenBucket,
		RequestsPerSec: 5,
		Burst:          10,
	}
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = def.RequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	return cfg
}

// SourceConfigs maps an upstream name to its limiter config.
type SourceConfigs struct {
	RateLimits map[string]Config `yaml:"rate_limits"`
}

// LoadSourceConfigs parses the rate_limits section of a YAML document.
func LoadSourceConfigs(data []byte) (SourceConfigs, error) {
	var cfgs SourceConfigs
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return SourceConfigs{}, fmt.Errorf("parse rate limits: %w", err)
	}
	for name, cfg := range cfgs.RateLimits {
		cfgs.RateLimits[name] = applyDefaults(cfg)
	}
	return cfgs, nil
}

// Get returns the config for source, or the defaults when none is set.
func (s SourceConfigs) Get(source string) Config {
	if cfg, ok := s.RateLimits[source]; ok {
		return applyDefaults(cfg)
	}
	return DefaultConfig()
}
