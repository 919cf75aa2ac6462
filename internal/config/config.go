// Package config loads the client configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// ServerURL is the HTTP base of the forum backend.
	ServerURL string `yaml:"server_url"`
	// ChannelURL is the websocket endpoint. Derived from ServerURL when
	// left empty.
	ChannelURL string `yaml:"channel_url"`
	// DataDir holds the local sqlite store.
	DataDir string `yaml:"data_dir"`
	Theme   string `yaml:"theme"`
	Debug   bool   `yaml:"debug"`
}

// Load reads the YAML config at path, defaulting to
// ~/.agora/config.yaml. A missing file is not an error; the defaults
// stand in for it.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".agora", "config.yaml")
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8080"
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.ChannelURL == "" {
		ws := strings.Replace(c.ServerURL, "http", "ws", 1)
		c.ChannelURL = ws + "/ws"
	}
	if c.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, ".agora")
		} else {
			c.DataDir = ".agora"
		}
	}
	if c.Theme == "" {
		c.Theme = "default"
	}
}

// DBPath returns the location of the local key-value store.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "agora.db")
}
