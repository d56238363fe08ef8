package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ajramos/leavebehind/internal/gesture"
	"gopkg.in/yaml.v3"
)

// Backends the list can run against
const (
	BackendLocal = "local"
	BackendGmail = "gmail"
	BackendIMAP  = "imap"
)

// Stores the recent folder list can be kept in
const (
	RecentSQLite = "sqlite"
	RecentBolt   = "bolt"
)

// EnvConfigPath overrides the default configuration file location
const EnvConfigPath = "LEAVEBEHIND_CONFIG"

// Config holds all configuration for the leavebehind client
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	Account string `json:"account" yaml:"account"`
	Folder  string `json:"folder" yaml:"folder"`

	// Local storage
	DatabasePath  string `json:"database_path" yaml:"database_path"`
	RecentBackend string `json:"recent_backend" yaml:"recent_backend"`
	BoltPath      string `json:"bolt_path" yaml:"bolt_path"`

	// Undo pipeline
	UndoWindow        string         `json:"undo_window" yaml:"undo_window"`
	RecentCapacity    int            `json:"recent_capacity" yaml:"recent_capacity"`
	SingleLeaveBehind bool           `json:"single_leave_behind" yaml:"single_leave_behind"`
	RestoreOnStart    bool           `json:"restore_on_start" yaml:"restore_on_start"`
	Gesture           gesture.Config `json:"gesture" yaml:"gesture"`

	// Gmail
	Credentials string `json:"credentials" yaml:"credentials"`
	Token       string `json:"token" yaml:"token"`

	// IMAP
	IMAP IMAPConfig `json:"imap" yaml:"imap"`

	// Presentation
	Theme string      `json:"theme" yaml:"theme"`
	Keys  KeyBindings `json:"keys" yaml:"keys"`

	// Logging
	LogFile string `json:"log_file" yaml:"log_file"`
}

// IMAPConfig holds the IMAP server login
type IMAPConfig struct {
	Server   string `json:"server" yaml:"server"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	// Mailbox names of the special folders on this server
	TrashMailbox   string `json:"trash_mailbox" yaml:"trash_mailbox"`
	SpamMailbox    string `json:"spam_mailbox" yaml:"spam_mailbox"`
	ArchiveMailbox string `json:"archive_mailbox" yaml:"archive_mailbox"`
	// NoTLS connects in plain text, only meant for local test servers
	NoTLS bool `json:"no_tls" yaml:"no_tls"`
}

// KeyBindings defines keyboard shortcuts for the TUI
type KeyBindings struct {
	Delete       string `json:"delete" yaml:"delete"`
	Archive      string `json:"archive" yaml:"archive"`
	ReportSpam   string `json:"report_spam" yaml:"report_spam"`
	Mute         string `json:"mute" yaml:"mute"`
	Undo         string `json:"undo" yaml:"undo"`
	BulkSelect   string `json:"bulk_select" yaml:"bulk_select"`
	ManageLabels string `json:"manage_labels" yaml:"manage_labels"`
	GotoFolder   string `json:"goto_folder" yaml:"goto_folder"`
	Refresh      string `json:"refresh" yaml:"refresh"`
	ReloadConfig string `json:"reload_config" yaml:"reload_config"`
	Quit         string `json:"quit" yaml:"quit"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend:           BackendLocal,
		Account:           "me",
		Folder:            "INBOX",
		DatabasePath:      filepath.Join(DefaultDataDir(), "leavebehind.db"),
		RecentBackend:     RecentSQLite,
		BoltPath:          filepath.Join(DefaultDataDir(), "state.bolt"),
		UndoWindow:        "5s",
		RecentCapacity:    6,
		SingleLeaveBehind: true,
		Gesture:           gesture.DefaultConfig(),
		IMAP: IMAPConfig{
			TrashMailbox:   "Trash",
			SpamMailbox:    "Junk",
			ArchiveMailbox: "Archive",
		},
		Keys: DefaultKeyBindings(),
	}
}

// DefaultKeyBindings returns the default keyboard shortcuts
func DefaultKeyBindings() KeyBindings {
	return KeyBindings{
		Delete:       "d",
		Archive:      "e",
		ReportSpam:   "!",
		Mute:         "m",
		Undo:         "u",
		BulkSelect:   "space",
		ManageLabels: "l",
		GotoFolder:   "g",
		Refresh:      "R",
		ReloadConfig: "C",
		Quit:         "q",
	}
}

// LoadConfig loads configuration from file. Files ending in .yaml or .yml are
// read as YAML, anything else as JSON. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if isYAML(configPath) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate reports the first setting that cannot work
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal, BackendGmail, BackendIMAP:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.RecentBackend {
	case RecentSQLite, RecentBolt:
	default:
		return fmt.Errorf("unknown recent_backend %q", c.RecentBackend)
	}
	if c.UndoWindow != "" {
		d, err := time.ParseDuration(c.UndoWindow)
		if err != nil {
			return fmt.Errorf("invalid undo_window: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("undo_window must be positive")
		}
	}
	if c.RecentCapacity < 0 {
		return fmt.Errorf("recent_capacity must not be negative")
	}
	if c.Backend == BackendIMAP && (c.IMAP.Server == "" || c.IMAP.Username == "") {
		return fmt.Errorf("imap backend needs imap.server and imap.username")
	}
	if f := c.Gesture.FarFraction; f < 0 || f > 1 {
		return fmt.Errorf("gesture.far_fraction must be within [0,1]")
	}
	return nil
}

// GetUndoWindow returns the parsed undo window
func (c *Config) GetUndoWindow() time.Duration {
	if c.UndoWindow != "" {
		if d, err := time.ParseDuration(c.UndoWindow); err == nil && d > 0 {
			return d
		}
	}
	return 5 * time.Second
}

// GetRecentCapacity returns the recent list bound, counting the current folder
func (c *Config) GetRecentCapacity() int {
	if c.RecentCapacity > 0 {
		return c.RecentCapacity
	}
	return 6
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// DefaultConfigPath returns the configuration file path, honoring
// LEAVEBEHIND_CONFIG
func DefaultConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "leavebehind", "config.json")
}

// DefaultCredentialPaths returns the default paths for credentials and token
func DefaultCredentialPaths() (string, string) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}

	configDir := filepath.Join(home, ".config", "leavebehind")
	credentialsPath := filepath.Join(configDir, "credentials.json")
	tokenPath := filepath.Join(configDir, "token.json")

	return credentialsPath, tokenPath
}

// DefaultDataDir returns the directory of the database files
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "leavebehind", "data")
}

// DefaultLogDir returns the default log directory path
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "leavebehind")
}

// DefaultThemeDir returns the directory searched for theme files
func DefaultThemeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "themes"
	}
	return filepath.Join(home, ".config", "leavebehind", "themes")
}
