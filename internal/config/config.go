package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	Speed  SpeedConfig
	Wheel  WheelConfig
	Payout PayoutConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// SpeedConfig holds Speed payment API configuration. Simulate is
// forced on by the client when APIKey is empty.
type SpeedConfig struct {
	APIURL   string
	APIKey   string
	Simulate bool
}

// WheelConfig holds the spin policy.
type WheelConfig struct {
	MinTurns     int
	MaxTurns     int
	SpinDuration time.Duration
}

// PayoutConfig holds payout defaults.
type PayoutConfig struct {
	DefaultAmount int64
}

// Load reads configuration from an optional config.yaml in path plus
// environment variables, with defaults for everything.
func Load(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, env vars and defaults cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("Server.Port", "8080")
	viper.SetDefault("Server.AllowedOrigins", []string{"*"})
	viper.SetDefault("Speed.APIURL", "https://api.tryspeed.com")
	viper.SetDefault("Speed.APIKey", "")
	viper.SetDefault("Speed.Simulate", false)
	viper.SetDefault("Wheel.MinTurns", 5)
	viper.SetDefault("Wheel.MaxTurns", 8)
	viper.SetDefault("Wheel.SpinDuration", 3*time.Second)
	viper.SetDefault("Payout.DefaultAmount", 1000)
}
