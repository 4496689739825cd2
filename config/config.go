package config

import (
	"github.com/spf13/viper"
)

// Config is the server's configuration surface. MaxConnections is an
// advisory hint, not a hard cap.
type Config struct {
	Port           int    `mapstructure:"port"`
	MaxConnections int    `mapstructure:"max_connections"`
	StorageRoot    string `mapstructure:"storage_root"`
	ShutdownGrace  int    `mapstructure:"shutdown_grace"` // seconds
}

func Default() *Config {
	return &Config{
		Port:           9000,
		MaxConnections: 100,
		StorageRoot:    "user_data",
		ShutdownGrace:  5,
	}
}

// Load reads configuration from viper (config file plus CHATD_* env
// overrides), falling back to defaults for anything unset.
func Load() *Config {
	cfg := Default()

	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("max_connections", cfg.MaxConnections)
	viper.SetDefault("storage_root", cfg.StorageRoot)
	viper.SetDefault("shutdown_grace", cfg.ShutdownGrace)

	if err := viper.Unmarshal(cfg); err != nil {
		return Default()
	}
	return cfg
}
