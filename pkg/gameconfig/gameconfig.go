// Package gameconfig loads the per-game editing configuration: the property
// protection policy, entity definitions and smart tags.
package gameconfig

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/chazu/mortar/pkg/property"
	"github.com/chazu/mortar/pkg/tag"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gopkg.in/yaml.v3"
)

// EntityConfig is one entity definition entry.
type EntityConfig struct {
	Classname   string    `yaml:"classname"`
	Description string    `yaml:"description"`
	Color       string    `yaml:"color"`
	Model       string    `yaml:"model"`
	Size        []float64 `yaml:"size"` // x0 y0 z0 x1 y1 z1; empty for brush entities
}

// TagConfig is one smart tag entry.
type TagConfig struct {
	Name    string `yaml:"name"`
	Match   string `yaml:"match"` // texture or classname
	Pattern string `yaml:"pattern"`
}

// Config is the parsed game configuration.
type Config struct {
	Name            string         `yaml:"name"`
	ProtectedKeys   []string       `yaml:"protected_keys"`
	ProtectedValues []string       `yaml:"protected_values"`
	Entities        []EntityConfig `yaml:"entities"`
	Tags            []TagConfig    `yaml:"tags"`
}

// defaultYAML is used when no game configuration file is given.
const defaultYAML = `
name: generic
protected_keys: [classname, mapversion]
protected_values: [mapversion]
entities:
  - classname: worldspawn
    description: The world
  - classname: info_player_start
    description: Player spawn point
    color: "0 1 0"
    size: [-16, -16, -24, 16, 16, 32]
  - classname: light
    description: Point light
    color: "1 1 0"
    size: [-8, -8, -8, 8, 8, 8]
  - classname: func_door
    description: Sliding door
  - classname: trigger_once
    description: Fires its targets once
tags:
  - name: trigger
    match: classname
    pattern: "trigger_*"
  - name: func
    match: classname
    pattern: "func_*"
  - name: clip
    match: texture
    pattern: "clip"
  - name: skip
    match: texture
    pattern: "skip"
  - name: liquid
    match: texture
    pattern: "*water*"
`

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load(bytes.NewReader([]byte(defaultYAML)))
	if err != nil {
		panic(fmt.Sprintf("gameconfig: built-in configuration: %v", err))
	}
	return cfg
}

// Load parses a configuration from r.
func Load(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("gameconfig: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile parses the configuration at path.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gameconfig: %w", err)
	}
	defer f.Close()
	cfg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for i, e := range c.Entities {
		if e.Classname == "" {
			return fmt.Errorf("gameconfig: entity %d: missing classname", i)
		}
		if len(e.Size) != 0 && len(e.Size) != 6 {
			return fmt.Errorf("gameconfig: entity %q: size needs 6 numbers, got %d", e.Classname, len(e.Size))
		}
	}
	for i, t := range c.Tags {
		if _, err := tag.ParseMatchKind(t.Match); err != nil {
			return fmt.Errorf("gameconfig: tag %d: %w", i, err)
		}
	}
	return nil
}

// Policy returns the property protection policy.
func (c *Config) Policy() property.Policy {
	return property.Policy{
		ProtectedKeys:   append([]string(nil), c.ProtectedKeys...),
		ProtectedValues: append([]string(nil), c.ProtectedValues...),
	}
}

// Registry builds the entity definition registry.
func (c *Config) Registry() (*property.Registry, error) {
	r := property.NewRegistry()
	for _, e := range c.Entities {
		d := property.Definition{
			Classname:   e.Classname,
			Description: e.Description,
			Color:       e.Color,
			Model:       e.Model,
		}
		if len(e.Size) == 6 {
			d.Point = true
			d.Size = sdf.Box3{
				Min: v3.Vec{X: e.Size[0], Y: e.Size[1], Z: e.Size[2]},
				Max: v3.Vec{X: e.Size[3], Y: e.Size[4], Z: e.Size[5]},
			}
		}
		if err := r.Add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// TagManager registers the smart tags.
func (c *Config) TagManager() (*tag.Manager, error) {
	m := tag.NewManager()
	for _, t := range c.Tags {
		kind, err := tag.ParseMatchKind(t.Match)
		if err != nil {
			return nil, err
		}
		if _, err := m.Register(t.Name, kind, t.Pattern); err != nil {
			return nil, fmt.Errorf("gameconfig: %w", err)
		}
	}
	return m, nil
}
