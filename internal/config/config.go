package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode              string        `mapstructure:"mode"`
	Port              int           `mapstructure:"port"`
	ReadLimit         int64         `mapstructure:"read_limit"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	ClientTimeout     time.Duration `mapstructure:"client_timeout"`
	MatchDuration     time.Duration `mapstructure:"match_duration"`
	SendBuffer        int           `mapstructure:"send_buffer"`
}

// DevMode reports whether the process was started with --dev. Dev mode
// shortens the match duration so pairings can be watched expiring.
func DevMode(args []string) bool {
	for _, a := range args {
		if a == "--dev" {
			return true
		}
	}
	return false
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
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("heartbeat_interval", "5s")
	v.SetDefault("client_timeout", "10s")
	v.SetDefault("match_duration", "5m")
	v.SetDefault("send_buffer", 32)

	// Dev mode only adjusts defaults; an explicit config file still wins.
	if DevMode(os.Args) {
		v.SetDefault("mode", "debug")
		v.SetDefault("match_duration", "20s")
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects probe timings that cannot survive a single missed
// round trip: the timeout must exceed the probe interval with margin.
func (c *Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %s", c.HeartbeatInterval)
	}
	if c.ClientTimeout <= c.HeartbeatInterval {
		return fmt.Errorf("client_timeout (%s) must exceed heartbeat_interval (%s)",
			c.ClientTimeout, c.HeartbeatInterval)
	}
	if c.MatchDuration <= 0 {
		return fmt.Errorf("match_duration must be positive, got %s", c.MatchDuration)
	}
	return nil
}
