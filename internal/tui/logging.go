package tui

import (
	"log"
	"os"
	"path/filepath"

	"github.com/ajramos/leavebehind/internal/config"
)

// initLogger initializes the file logger. The path comes from the log_file
// setting, falling back to ~/.config/leavebehind/leavebehind.log.
func (a *App) initLogger() {
	if a.logger != nil && a.logFile != nil {
		return
	}
	path := a.Config.LogFile
	if path == "" {
		dir := config.DefaultLogDir()
		if dir == "" {
			return
		}
		path = filepath.Join(dir, "leavebehind.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		a.logFile = f
		a.logger = log.New(f, "[leavebehind] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// closeLogger closes the log file if opened
func (a *App) closeLogger() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}
