package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/chatdeck/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("temp_dir", cfg.TempDir)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("window.hide_on_close", cfg.Window.HideOnClose)
	v.SetDefault("window.width", cfg.Window.Width)
	v.SetDefault("window.height", cfg.Window.Height)
	v.SetDefault("drag.poll_hz", cfg.Drag.PollHz)
	v.SetDefault("drag.tab_strip_height", cfg.Drag.TabStripHeight)
	v.SetDefault("drag.pointer", cfg.Drag.Pointer)
	v.SetDefault("surface.reparent", cfg.Surface.Reparent)
	v.SetDefault("surface.base_url", cfg.Surface.BaseURL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ServiceConfig maps the file config onto the compositor config.
func (c Config) ServiceConfig() schema.ServiceConfig {
	var interval time.Duration
	if c.Drag.PollHz > 0 {
		interval = time.Second / time.Duration(c.Drag.PollHz)
	}
	return schema.ServiceConfig{
		StateDir:       c.StateDir,
		TempDir:        c.TempDir,
		BaseURL:        c.Surface.BaseURL,
		HideOnClose:    c.Window.HideOnClose,
		WindowWidth:    c.Window.Width,
		WindowHeight:   c.Window.Height,
		PollInterval:   interval,
		TabStripHeight: c.Drag.TabStripHeight,
	}
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.StateDir) == "" {
		return fmt.Errorf("state_dir is required")
	}
	if addr := strings.TrimSpace(cfg.HTTP.Addr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("http.addr must be host:port: %w", err)
		}
	}
	if cfg.Drag.PollHz <= 0 || cfg.Drag.PollHz > 1000 {
		return fmt.Errorf("drag.poll_hz must be between 1 and 1000")
	}
	if cfg.Drag.TabStripHeight <= 0 {
		return fmt.Errorf("drag.tab_strip_height must be positive")
	}
	switch cfg.Drag.Pointer {
	case PointerAuto, PointerX11, PointerNone:
	default:
		return fmt.Errorf("unsupported drag.pointer %q", cfg.Drag.Pointer)
	}
	if cfg.Window.Width <= 0 || cfg.Window.Height <= 0 {
		return fmt.Errorf("window.width and window.height must be positive")
	}
	if cfg.Drag.TabStripHeight >= cfg.Window.Height {
		return fmt.Errorf("drag.tab_strip_height must be smaller than window.height")
	}
	if baseURL := strings.TrimSpace(cfg.Surface.BaseURL); baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("surface.base_url must include scheme and host (e.g. app://chatdeck)")
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.TempDir = expandEnv(cfg.TempDir)
	cfg.HTTP.Addr = expandEnv(cfg.HTTP.Addr)
	cfg.Surface.BaseURL = expandEnv(cfg.Surface.BaseURL)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
