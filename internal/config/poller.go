package config

import (
	"errors"
	"time"
)

type PollerConfig struct {
	ExpiryCheckerPollingInterval time.Duration `mapstructure:"expiry-checker-polling-interval"`
	ExpiredStakesLimit           int64         `mapstructure:"expired-stakes-limit"`
}

func (cfg *PollerConfig) Validate() error {
	if cfg.ExpiryCheckerPollingInterval <= 0 {
		return errors.New("expiry-checker-polling-interval must be positive")
	}

	if cfg.ExpiredStakesLimit <= 0 {
		return errors.New("expired-stakes-limit must be positive")
	}

	return nil
}
