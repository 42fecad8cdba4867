// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chazu/mortar/pkg/gameconfig"
	"github.com/chazu/mortar/pkg/geom"
	"github.com/deadsy/sdfx/sdf"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. MORTAR_WORLD_SIZE.
const Prefix = "MORTAR"

type Config struct {
	WorldSize       float64       `envconfig:"WORLD_SIZE" default:"8192"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	EvalTimeout     time.Duration `envconfig:"EVAL_TIMEOUT" default:"5s"`
	CollationWindow time.Duration `envconfig:"COLLATION_WINDOW" default:"1s"`
	GameConfig      string        `envconfig:"GAME_CONFIG"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	if cfg.WorldSize <= 0 {
		return nil, fmt.Errorf("config: WORLD_SIZE must be positive, got %g", cfg.WorldSize)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WorldBounds is the cube of half-extent WorldSize around the origin.
func (c *Config) WorldBounds() sdf.Box3 {
	return geom.CubeBox(c.WorldSize)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// Window is the collation window in the form the command stack expects:
// a zero COLLATION_WINDOW disables collation.
func (c *Config) Window() time.Duration {
	if c.CollationWindow == 0 {
		return -1
	}
	return c.CollationWindow
}

// Game loads the game configuration file, or the built-in default when none
// is set.
func (c *Config) Game() (*gameconfig.Config, error) {
	if c.GameConfig == "" {
		return gameconfig.Default(), nil
	}
	return gameconfig.LoadFile(c.GameConfig)
}
