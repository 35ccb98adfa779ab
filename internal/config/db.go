package config

import "fmt"

type DbConfig struct {
	DbName   string `mapstructure:"db-name"`
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

func (cfg *DbConfig) Validate() error {
	if cfg.Address == "" {
		return fmt.Errorf("db address is required")
	}
	if cfg.DbName == "" {
		return fmt.Errorf("db name is required")
	}

	return nil
}
