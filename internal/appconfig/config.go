package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/chatdeck/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	TempDir       string        `mapstructure:"temp_dir" yaml:"temp_dir"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
	Window        WindowConfig  `mapstructure:"window" yaml:"window"`
	Drag          DragConfig    `mapstructure:"drag" yaml:"drag"`
	Surface       SurfaceConfig `mapstructure:"surface" yaml:"surface"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// HTTPConfig configures the command surface.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// WindowConfig controls window creation and close behavior.
type WindowConfig struct {
	HideOnClose bool `mapstructure:"hide_on_close" yaml:"hide_on_close"`
	Width       int  `mapstructure:"width" yaml:"width"`
	Height      int  `mapstructure:"height" yaml:"height"`
}

// DragConfig controls cross-window drag tracking.
type DragConfig struct {
	PollHz         int    `mapstructure:"poll_hz" yaml:"poll_hz"`
	TabStripHeight int    `mapstructure:"tab_strip_height" yaml:"tab_strip_height"`
	Pointer        string `mapstructure:"pointer" yaml:"pointer"`
}

// SurfaceConfig controls how tab content surfaces are hosted.
type SurfaceConfig struct {
	// Reparent reports whether surfaces can move between windows without
	// being recreated.
	Reparent bool   `mapstructure:"reparent" yaml:"reparent"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
}

// Pointer sources accepted by drag.pointer.
const (
	PointerAuto = "auto"
	PointerX11  = "x11"
	PointerNone = "none"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".chatdeck", "state"),
		TempDir:       filepath.Join(os.TempDir(), "chatdeck-${UID}"),
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:27490",
		},
		Window: WindowConfig{
			HideOnClose: false,
			Width:       schema.DefaultWindowWidth,
			Height:      schema.DefaultWindowHeight,
		},
		Drag: DragConfig{
			PollHz:         schema.DefaultPollRate,
			TabStripHeight: schema.DefaultTabStripHeight,
			Pointer:        PointerAuto,
		},
		Surface: SurfaceConfig{
			Reparent: true,
			BaseURL:  "app://chatdeck",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".chatdeck", "config.yaml"), nil
}
