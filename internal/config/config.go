package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type RateLimit struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type Config struct {
	Mode            string        `mapstructure:"mode"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	AdminAddr       string        `mapstructure:"admin_addr"`
	EnableWS        bool          `mapstructure:"enable_ws"`
	ReadLimit       uint32        `mapstructure:"read_limit"`
	RateLimit       RateLimit     `mapstructure:"rate_limit"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("listen_addr", ":5000")
	v.SetDefault("admin_addr", ":8080")
	v.SetDefault("enable_ws", true)
	v.SetDefault("read_limit", 65536)
	v.SetDefault("rate_limit.per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", "5s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
