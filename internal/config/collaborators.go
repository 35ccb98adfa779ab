package config

import (
	"fmt"
	"time"
)

type PaymentConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetryTimes uint          `mapstructure:"max-retry-times"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
}

func (cfg *PaymentConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("payment endpoint is required")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("payment timeout must be positive")
	}
	if cfg.MaxRetryTimes == 0 {
		return fmt.Errorf("payment max-retry-times must be positive")
	}
	if cfg.RetryInterval <= 0 {
		return fmt.Errorf("payment retry-interval must be positive")
	}

	return nil
}

type KycConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetryTimes uint          `mapstructure:"max-retry-times"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
}

func (cfg *KycConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("kyc endpoint is required")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("kyc timeout must be positive")
	}
	if cfg.MaxRetryTimes == 0 {
		return fmt.Errorf("kyc max-retry-times must be positive")
	}
	if cfg.RetryInterval <= 0 {
		return fmt.Errorf("kyc retry-interval must be positive")
	}

	return nil
}
