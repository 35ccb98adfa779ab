package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Db      DbConfig      `mapstructure:"db-config"`
	Chain   ChainConfig   `mapstructure:"chain-config"`
	Payment PaymentConfig `mapstructure:"payment-config"`
	Kyc     KycConfig     `mapstructure:"kyc-config"`
	Wallet  WalletConfig  `mapstructure:"wallet-config"`
	Queue   QueueConfig   `mapstructure:"queue-config"`
	Poller  PollerConfig  `mapstructure:"poller-config"`
	Metrics MetricsConfig `mapstructure:"metrics-config"`
}

func (cfg *Config) Validate() error {
	if err := cfg.Db.Validate(); err != nil {
		return err
	}

	if err := cfg.Chain.Validate(); err != nil {
		return err
	}

	if err := cfg.Payment.Validate(); err != nil {
		return err
	}

	if err := cfg.Kyc.Validate(); err != nil {
		return err
	}

	if err := cfg.Wallet.Validate(); err != nil {
		return err
	}

	if err := cfg.Queue.Validate(); err != nil {
		return err
	}

	if err := cfg.Poller.Validate(); err != nil {
		return err
	}

	if err := cfg.Metrics.Validate(); err != nil {
		return err
	}

	return nil
}

// New returns a fully parsed Config object from a given file directory
func New(cfgFile string) (*Config, error) {
	viper.SetConfigFile(cfgFile)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
