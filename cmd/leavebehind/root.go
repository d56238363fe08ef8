package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ajramos/leavebehind/internal/config"
	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/ajramos/leavebehind/internal/tui"
	"github.com/ajramos/leavebehind/internal/version"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Environment variables overriding the credential files
const (
	envCredentials = "LEAVEBEHIND_CREDENTIALS"
	envToken       = "LEAVEBEHIND_TOKEN"
)

type globalFlags struct {
	configFile  string
	credentials string
	token       string
	backend     string
	folder      string
	verbose     bool
}

var (
	global  globalFlags
	manager = config.NewManager()
)

var rootCmd = &cobra.Command{
	Use:               "leavebehind",
	Short:             "Terminal mail list with undoable archive, delete and label actions",
	Version:           version.GetVersionString(),
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runTUI,
}

func init() {
	flag := rootCmd.PersistentFlags()
	flag.StringVarP(&global.configFile, "config", "c", "", "configuration file (default ~/.config/leavebehind/config.json)")
	flag.StringVar(&global.credentials, "credentials", "", "OAuth client credentials JSON for the gmail backend")
	flag.StringVar(&global.token, "token", "", "OAuth token file for the gmail backend")
	flag.StringVarP(&global.backend, "backend", "b", "", "mail backend: local, gmail or imap")
	flag.StringVarP(&global.folder, "folder", "f", "", "folder to open")
	flag.BoolVarP(&global.verbose, "verbose", "v", false, "display debugging information")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if global.verbose {
		pterm.EnableDebugMessages()
	}
	path := getConfigPath(global.configFile)
	if err := manager.LoadFromFile(path); err != nil {
		return err
	}
	cfg := manager.GetConfig()
	if global.backend != "" {
		cfg.Backend = global.backend
	}
	if global.folder != "" {
		cfg.Folder = global.folder
	}
	if global.backend != "" || global.folder != "" {
		if err := manager.UpdateConfig(cfg); err != nil {
			return err
		}
	}
	pterm.Debug.Printfln("configuration: %s (backend %s)", path, cfg.Backend)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg := manager.GetConfig()
	credPath, tokenPath := credentialPaths()
	env, err := openEnvironment(cmd.Context(), cfg, credPath, tokenPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := env.Close(); err != nil {
			pterm.Warning.Println(err)
		}
	}()

	cache, err := recent.New(cfg.GetRecentCapacity())
	if err != nil {
		return err
	}
	recents := services.NewRecentFolderService(cache, env.recent)

	app := tui.NewApp(cfg, env.mailbox, recents, env.state)
	app.SetConfigSource(manager)
	err = app.Run()
	app.Close()
	return err
}

func credentialPaths() (string, string) {
	cred, token := manager.GetCredentialPaths()
	return resolvePath(global.credentials, envCredentials, cred), resolvePath(global.token, envToken, token)
}

// getConfigPath returns the configuration file path using the following priority:
// 1. CLI flag
// 2. Environment variable LEAVEBEHIND_CONFIG
// 3. Default path ~/.config/leavebehind/config.json
func getConfigPath(flagValue string) string {
	return resolvePath(flagValue, config.EnvConfigPath, config.DefaultConfigPath())
}

// resolvePath prefers the flag, then the environment variable, then fallback
func resolvePath(flagValue, envName, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv(envName); envPath != "" {
		return expandPath(envPath)
	}
	return fallback
}

// expandPath expands ~ to the user's home directory
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}

	return filepath.Join(home, path[2:])
}
