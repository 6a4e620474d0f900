package schema

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ServiceConfig defines defaults and limits for the compositor.
type ServiceConfig struct {
	StateDir string
	TempDir  string
	// BaseURL prefixes tab routes when surfaces are created.
	BaseURL string
	// HideOnClose hides the last window instead of destroying it.
	HideOnClose    bool
	WindowWidth    int
	WindowHeight   int
	PollInterval   time.Duration
	TabStripHeight int
}

const (
	// DefaultPollRate is the drag pointer poll rate in Hz.
	DefaultPollRate = 60
	// DefaultTabStripHeight is the tab strip hit band height in pixels.
	DefaultTabStripHeight = 40
	// DefaultWindowWidth is the width of newly created windows.
	DefaultWindowWidth = 1200
	// DefaultWindowHeight is the height of newly created windows.
	DefaultWindowHeight = 800
)

// DefaultStateDir returns the default state directory.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".chatdeck", "state"), nil
}

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = dir
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "chatdeck")
	}
	if cfg.WindowWidth <= 0 {
		cfg.WindowWidth = DefaultWindowWidth
	}
	if cfg.WindowHeight <= 0 {
		cfg.WindowHeight = DefaultWindowHeight
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second / DefaultPollRate
	}
	if cfg.TabStripHeight <= 0 {
		cfg.TabStripHeight = DefaultTabStripHeight
	}
	if cfg.TabStripHeight >= cfg.WindowHeight {
		return ServiceConfig{}, errors.New("tab strip height must be smaller than the window height")
	}
	return cfg, nil
}
