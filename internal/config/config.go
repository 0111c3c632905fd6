package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

const (
	configDirName  = "barshell"
	configFileName = "shell.toml"

	// PathEnv overrides the resolved configuration file location.
	PathEnv = "BARSHELL_CONFIG_PATH"
)

// Config represents the persisted shell.toml file.
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Clock         ClockConfig         `toml:"clock"`
	Notifications NotificationsConfig `toml:"notifications"`
	Status        StatusConfig        `toml:"status"`
}

// GeneralConfig holds process wide settings.
type GeneralConfig struct {
	Debug bool `toml:"debug"`
}

// ClockConfig controls how notification timestamps are rendered.
type ClockConfig struct {
	Format string `toml:"format"` // Go time layout (default: 15:04)
}

// NotificationsConfig configures the dbus-monitor trace reader and the inbox.
type NotificationsConfig struct {
	MonitorCommand      []string `toml:"monitor_command"`
	IgnoreApps          []string `toml:"ignore_apps"` // added to the built-in denylist
	HistoryLimit        int      `toml:"history_limit"`
	ThumbnailSize       int      `toml:"thumbnail_size"`
	MaxImageBytes       int      `toml:"max_image_bytes"`
	MaxTextLength       int      `toml:"max_text_length"`
	RestartDelaySeconds *int     `toml:"restart_delay_seconds"` // 0 disables restarts
}

// StatusConfig configures the status readout poller.
type StatusConfig struct {
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
	ConnectivityTarget  string   `toml:"connectivity_target"`
	DNDCommand          string   `toml:"dnd_command"`
	VolumeCommand       string   `toml:"volume_command"`
	PrivacyCommand      string   `toml:"privacy_command"` // pw-dump compatible
	NetworkCommand      []string `toml:"network_command"`
	Media               *bool    `toml:"media"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	restart := 5
	media := true
	return &Config{
		Clock: ClockConfig{Format: "15:04"},
		Notifications: NotificationsConfig{
			MonitorCommand: []string{
				"dbus-monitor",
				"interface='org.freedesktop.Notifications',member='Notify'",
			},
			HistoryLimit:        25,
			ThumbnailSize:       42,
			MaxImageBytes:       5 * 1024 * 1024,
			MaxTextLength:       1000,
			RestartDelaySeconds: &restart,
		},
		Status: StatusConfig{
			PollIntervalSeconds: 3,
			ConnectivityTarget:  "8.8.8.8:53",
			DNDCommand:          "makoctl",
			VolumeCommand:       "pamixer",
			PrivacyCommand:      "pw-dump",
			NetworkCommand:      []string{"kitty", "-e", "nmtui"},
			Media:               &media,
		},
	}
}

// PollInterval returns the status refresh period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Status.PollIntervalSeconds) * time.Second
}

// RestartDelay returns how long to wait before relaunching the trace monitor.
// Zero means the monitor is not restarted.
func (c *Config) RestartDelay() time.Duration {
	if c.Notifications.RestartDelaySeconds == nil {
		return 0
	}
	return time.Duration(*c.Notifications.RestartDelaySeconds) * time.Second
}

// MediaEnabled reports whether the MPRIS readout is active.
func (c *Config) MediaEnabled() bool {
	return c.Status.Media == nil || *c.Status.Media
}

// Path returns the resolved configuration file path.
func Path() (string, error) {
	if custom := os.Getenv(PathEnv); custom != "" {
		if err := os.MkdirAll(filepath.Dir(custom), 0o700); err != nil {
			return "", fmt.Errorf("ensure custom config directory: %w", err)
		}
		return custom, nil
	}

	if existing, err := xdg.SearchConfigFile(filepath.Join(configDirName, configFileName)); err == nil {
		return existing, nil
	}

	path, err := xdg.ConfigFile(filepath.Join(configDirName, configFileName))
	if err != nil {
		return "", fmt.Errorf("determine config path: %w", err)
	}
	return path, nil
}

// Load reads the configuration from Path. A missing file yields defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the configuration at path and fills unset fields with
// defaults.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	fillMissing(&cfg, Default())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save persists the configuration to Path.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveFile(cfg, path)
}

// SaveFile writes cfg to path atomically.
func SaveFile(cfg *Config, path string) error {
	raw, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return os.Rename(tempFile, path)
}

// Validate rejects values that would make a component misbehave.
func (c *Config) Validate() error {
	n := c.Notifications
	if len(n.MonitorCommand) == 0 || n.MonitorCommand[0] == "" {
		return errors.New("notifications.monitor_command must name an executable")
	}
	if n.HistoryLimit < 0 || n.ThumbnailSize < 0 || n.MaxImageBytes < 0 || n.MaxTextLength < 0 {
		return errors.New("notifications limits must not be negative")
	}
	if n.RestartDelaySeconds != nil && *n.RestartDelaySeconds < 0 {
		return errors.New("notifications.restart_delay_seconds must not be negative")
	}
	if c.Status.PollIntervalSeconds < 0 {
		return errors.New("status.poll_interval_seconds must not be negative")
	}
	return nil
}

func fillMissing(cfg, def *Config) {
	if cfg.Clock.Format == "" {
		cfg.Clock.Format = def.Clock.Format
	}

	n, dn := &cfg.Notifications, def.Notifications
	if len(n.MonitorCommand) == 0 {
		n.MonitorCommand = dn.MonitorCommand
	}
	if n.HistoryLimit == 0 {
		n.HistoryLimit = dn.HistoryLimit
	}
	if n.ThumbnailSize == 0 {
		n.ThumbnailSize = dn.ThumbnailSize
	}
	if n.MaxImageBytes == 0 {
		n.MaxImageBytes = dn.MaxImageBytes
	}
	if n.MaxTextLength == 0 {
		n.MaxTextLength = dn.MaxTextLength
	}
	if n.RestartDelaySeconds == nil {
		n.RestartDelaySeconds = dn.RestartDelaySeconds
	}

	s, ds := &cfg.Status, def.Status
	if s.PollIntervalSeconds == 0 {
		s.PollIntervalSeconds = ds.PollIntervalSeconds
	}
	if s.ConnectivityTarget == "" {
		s.ConnectivityTarget = ds.ConnectivityTarget
	}
	if s.DNDCommand == "" {
		s.DNDCommand = ds.DNDCommand
	}
	if s.VolumeCommand == "" {
		s.VolumeCommand = ds.VolumeCommand
	}
	if s.PrivacyCommand == "" {
		s.PrivacyCommand = ds.PrivacyCommand
	}
	if len(s.NetworkCommand) == 0 {
		s.NetworkCommand = ds.NetworkCommand
	}
	if s.Media == nil {
		s.Media = ds.Media
	}
}
