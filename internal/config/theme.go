package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ThemeLoader handles loading and saving YAML themes
type ThemeLoader struct {
	themesDir string
}

// NewThemeLoader creates a new theme loader
func NewThemeLoader(themesDir string) *ThemeLoader {
	return &ThemeLoader{
		themesDir: themesDir,
	}
}

type themeFile struct {
	LeaveBehind *ColorsConfig `yaml:"leavebehind"`
}

// LoadThemeFromFile loads a theme from a YAML file
func (tl *ThemeLoader) LoadThemeFromFile(filename string) (*ColorsConfig, error) {
	// Try to load from themes directory first
	path := filepath.Join(tl.themesDir, filename)
	if !fileExists(path) {
		// Try absolute path
		path = filename
		if !fileExists(path) {
			return nil, fmt.Errorf("theme file not found: %s", filename)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme file: %w", err)
	}

	var theme themeFile
	if err := yaml.Unmarshal(data, &theme); err != nil {
		return nil, fmt.Errorf("failed to parse theme file: %w", err)
	}
	if theme.LeaveBehind == nil {
		return nil, fmt.Errorf("invalid theme file: missing leavebehind section")
	}
	if err := tl.ValidateTheme(theme.LeaveBehind); err != nil {
		return nil, err
	}
	return theme.LeaveBehind, nil
}

// ListAvailableThemes returns a list of available theme files
func (tl *ThemeLoader) ListAvailableThemes() ([]string, error) {
	var themes []string

	entries, err := os.ReadDir(tl.themesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read themes directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".yaml" {
			themes = append(themes, entry.Name())
		}
	}

	return themes, nil
}

// SaveThemeToFile saves a theme configuration to a YAML file
func (tl *ThemeLoader) SaveThemeToFile(theme *ColorsConfig, filename string) error {
	// Ensure themes directory exists
	if err := os.MkdirAll(tl.themesDir, 0755); err != nil {
		return fmt.Errorf("failed to create themes directory: %w", err)
	}

	data, err := yaml.Marshal(themeFile{LeaveBehind: theme})
	if err != nil {
		return fmt.Errorf("failed to marshal theme: %w", err)
	}

	if err := os.WriteFile(filepath.Join(tl.themesDir, filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write theme file: %w", err)
	}

	return nil
}

// ValidateTheme validates a theme configuration
func (tl *ThemeLoader) ValidateTheme(theme *ColorsConfig) error {
	if theme == nil {
		return fmt.Errorf("theme is nil")
	}
	requiredColors := []struct {
		name  string
		color Color
	}{
		{"List.NormalColor", theme.List.NormalColor},
		{"List.PlaceholderColor", theme.List.PlaceholderColor},
	}
	for _, req := range requiredColors {
		if req.color == "" {
			return fmt.Errorf("missing required color: %s", req.name)
		}
	}
	return nil
}

// Helper function to check if file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
