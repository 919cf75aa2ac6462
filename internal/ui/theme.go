package ui

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gdamore/tcell/v2"
	"gopkg.in/yaml.v3"
)

// ThemeConfig is a theme as loaded from YAML.
type ThemeConfig struct {
	Name   string            `yaml:"name"`
	Colors map[string]string `yaml:"colors"`
}

// Theme maps semantic color names to terminal colors.
type Theme struct {
	Name   string
	colors map[string]tcell.Color
}

var defaultColors = map[string]tcell.Color{
	"background": tcell.ColorBlack,
	"foreground": tcell.ColorWhite,
	"primary":    tcell.ColorTeal,
	"border":     tcell.ColorGray,
	"online":     tcell.ColorGreen,
	"offline":    tcell.ColorGray,
	"error":      tcell.ColorRed,
}

// DefaultTheme returns the built-in theme.
func DefaultTheme() *Theme {
	colors := make(map[string]tcell.Color, len(defaultColors))
	for k, v := range defaultColors {
		colors[k] = v
	}
	return &Theme{Name: "default", colors: colors}
}

// LoadTheme loads a theme by name from themesDir, falling back to the
// built-in theme when the file does not exist. Unknown keys in the file
// extend the default palette; missing ones keep their defaults.
func LoadTheme(themesDir, name string) (*Theme, error) {
	theme := DefaultTheme()

	path := filepath.Join(themesDir, name+".yaml")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return theme, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read theme file: %w", err)
	}

	var config ThemeConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse theme: %w", err)
	}
	if config.Name != "" {
		theme.Name = config.Name
	}
	for key, value := range config.Colors {
		theme.colors[key] = tcell.GetColor(value)
	}
	return theme, nil
}

// GetColor resolves a semantic color name; unknown names render as the
// default foreground.
func (t *Theme) GetColor(key string) tcell.Color {
	if c, ok := t.colors[key]; ok {
		return c
	}
	return tcell.ColorWhite
}
