package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager provides centralized configuration management with validation
type Manager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
	watchers   []func(*Config)
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: DefaultConfig(),
	}
}

// LoadFromFile loads configuration from a file with validation
func (m *Manager) LoadFromFile(configPath string) error {
	configPath = expandPath(configPath)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	m.applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.configPath = configPath
	watchers := append([](func(*Config))(nil), m.watchers...)
	m.mu.Unlock()

	notify(watchers, cfg)
	return nil
}

// GetConfig returns a copy of the current configuration
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *m.config
	return &cp
}

// Path returns the file the configuration was loaded from
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configPath
}

// UpdateConfig replaces the configuration after validating it
func (m *Manager) UpdateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	m.applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	watchers := append([](func(*Config))(nil), m.watchers...)
	m.mu.Unlock()

	notify(watchers, cfg)
	return nil
}

// SaveToFile saves the current configuration to a file
func (m *Manager) SaveToFile(filePath string) error {
	if err := m.GetConfig().SaveConfig(expandPath(filePath)); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// AddWatcher registers a function called with every newly loaded configuration
func (m *Manager) AddWatcher(watcher func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, watcher)
}

// GetCredentialPaths returns the credential and token paths with proper expansion
func (m *Manager) GetCredentialPaths() (string, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	credPath, tokenPath := DefaultCredentialPaths()
	if m.config.Credentials != "" {
		credPath = expandPath(m.config.Credentials)
	}
	if m.config.Token != "" {
		tokenPath = expandPath(m.config.Token)
	}
	return credPath, tokenPath
}

// applyDefaults applies default values for missing configuration
func (m *Manager) applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	if cfg.RecentBackend == "" {
		cfg.RecentBackend = def.RecentBackend
	}
	if cfg.Folder == "" {
		cfg.Folder = def.Folder
	}
	if cfg.Account == "" {
		cfg.Account = def.Account
	}
	if cfg.Keys == (KeyBindings{}) {
		cfg.Keys = def.Keys
	}
	if cfg.Gesture.EscapeVelocity == 0 {
		cfg.Gesture = def.Gesture
	}
	cfg.DatabasePath = expandPath(cfg.DatabasePath)
	cfg.BoltPath = expandPath(cfg.BoltPath)
	cfg.LogFile = expandPath(cfg.LogFile)
}

func notify(watchers []func(*Config), cfg *Config) {
	for _, watcher := range watchers {
		cp := *cfg
		watcher(&cp)
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
