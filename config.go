package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"sharkarena-server/internal/qtree"
)

// Config holds every tunable of the server process
type Config struct {
	Addr           string        `mapstructure:"addr"`
	ClientDir      string        `mapstructure:"client_dir"`
	PublicURL      string        `mapstructure:"public_url"`
	DBPath         string        `mapstructure:"db_path"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFile        string        `mapstructure:"log_file"`
	LogJSON        bool          `mapstructure:"log_json"`
	WorldWidth     float64       `mapstructure:"world_width"`
	WorldHeight    float64       `mapstructure:"world_height"`
	MaxLevel       int           `mapstructure:"max_level"`
	TickRate       int           `mapstructure:"tick_rate"`
	BroadcastEvery int           `mapstructure:"broadcast_every"`
	MaxSessions    int           `mapstructure:"max_sessions"`
	LeaderboardTTL time.Duration `mapstructure:"leaderboard_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("client_dir", "../client")
	v.SetDefault("public_url", "http://localhost:8080")
	v.SetDefault("db_path", "sharkarena.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_json", false)
	v.SetDefault("world_width", 1600.0)
	v.SetDefault("world_height", 2000.0)
	v.SetDefault("max_level", 3)
	v.SetDefault("tick_rate", 60)
	v.SetDefault("broadcast_every", 2)
	v.SetDefault("max_sessions", 100)
	v.SetDefault("leaderboard_ttl", 30*time.Second)
}

// LoadConfig reads .env (if present), then the optional config file, then
// SHARK_* environment variables. Later sources win.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SHARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the game loop cannot run with
func (c *Config) Validate() error {
	if c.WorldWidth <= 0 || c.WorldHeight <= 0 {
		return fmt.Errorf("world size must be positive, got %vx%v", c.WorldWidth, c.WorldHeight)
	}
	if c.MaxLevel < 0 || c.MaxLevel > qtree.MaxSupportedLevel {
		return fmt.Errorf("max_level must be in [0, %d], got %d", qtree.MaxSupportedLevel, c.MaxLevel)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %d", c.TickRate)
	}
	if c.BroadcastEvery <= 0 {
		return fmt.Errorf("broadcast_every must be positive, got %d", c.BroadcastEvery)
	}
	return nil
}

// GameConfig derives the per-session settings from the process config
func (c *Config) GameConfig() GameConfig {
	return GameConfig{
		Bounds:         qtree.Bounds{Width: c.WorldWidth, Height: c.WorldHeight},
		MaxLevel:       c.MaxLevel,
		TickRate:       c.TickRate,
		BroadcastEvery: c.BroadcastEvery,
	}
}
