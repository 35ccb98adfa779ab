package config

import "fmt"

const minServerSecretLength = 32

type WalletConfig struct {
	// ServerSecret is mixed into every record encryption key. Rotating it
	// invalidates all stored encrypted WIFs, so treat it like a KMS key.
	ServerSecret string `mapstructure:"server-secret"`
}

func (cfg *WalletConfig) Validate() error {
	if len(cfg.ServerSecret) < minServerSecretLength {
		return fmt.Errorf("wallet server-secret must be at least %d characters", minServerSecretLength)
	}

	return nil
}
