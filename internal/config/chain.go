package config

import (
	"fmt"
	"time"
)

type ChainConfig struct {
	// Endpoint is the URL of the chain confirmation API including the
	// protocol prefix.
	Endpoint                string        `mapstructure:"endpoint"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	MaxRetryTimes           uint          `mapstructure:"max-retry-times"`
	RetryInterval           time.Duration `mapstructure:"retry-interval"`
	MinConfirmations        uint64        `mapstructure:"min-confirmations"`
	BreakerFailureThreshold uint32        `mapstructure:"breaker-failure-threshold"`
	BreakerCooldown         time.Duration `mapstructure:"breaker-cooldown"`
	// DepositWindow is how long a pending stake may wait for its on-chain
	// deposit confirmation before it is reported as expired.
	DepositWindow time.Duration `mapstructure:"deposit-window"`
}

func (cfg *ChainConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("chain endpoint is required")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("chain timeout must be positive")
	}
	if cfg.MaxRetryTimes == 0 {
		return fmt.Errorf("chain max-retry-times must be positive")
	}
	if cfg.RetryInterval <= 0 {
		return fmt.Errorf("chain retry-interval must be positive")
	}
	if cfg.MinConfirmations == 0 {
		return fmt.Errorf("chain min-confirmations must be positive")
	}
	if cfg.BreakerFailureThreshold == 0 {
		return fmt.Errorf("chain breaker-failure-threshold must be positive")
	}
	if cfg.BreakerCooldown <= 0 {
		return fmt.Errorf("chain breaker-cooldown must be positive")
	}
	if cfg.DepositWindow <= 0 {
		return fmt.Errorf("chain deposit-window must be positive")
	}

	return nil
}
