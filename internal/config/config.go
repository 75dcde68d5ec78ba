package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/goccy/go-json"
	"github.com/openmined/trsync/internal/remote"
	"github.com/openmined/trsync/internal/tracimsdk"
	"github.com/openmined/trsync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".trsync", "config.json")
	DefaultFolder     = filepath.Join(home, "Tracim")
)

var (
	ErrNoFolder      = errors.New("config: folder missing")
	ErrNoAddress     = errors.New("config: address missing")
	ErrNoWorkspace   = errors.New("config: workspace id missing")
	ErrNoUsername    = errors.New("config: username missing")
	ErrBadTransport  = errors.New("config: unknown event transport")
	ErrBadIgnoreGlob = errors.New("config: invalid ignore glob")
	ErrBadLogLevel   = errors.New("config: unknown log level")
	ErrBadInactivity = errors.New("config: negative inactivity timeout")
)

// Config describes one synchronized workspace.
type Config struct {
	Folder            string        `json:"folder" mapstructure:"folder"`
	Address           string        `json:"address" mapstructure:"address"`
	UseTLS            bool          `json:"use_tls" mapstructure:"use_tls"`
	WorkspaceID       int64         `json:"workspace_id" mapstructure:"workspace_id"`
	Username          string        `json:"username" mapstructure:"username"`
	Password          string        `json:"password,omitempty" mapstructure:"password"`
	EventTransport    string        `json:"event_transport" mapstructure:"event_transport"`
	InactivityTimeout time.Duration `json:"inactivity_timeout" mapstructure:"inactivity_timeout"`
	ConfirmStartup    bool          `json:"confirm_startup" mapstructure:"confirm_startup"`
	Ignore            []string      `json:"ignore,omitempty" mapstructure:"ignore"`
	LogLevel          string        `json:"log_level,omitempty" mapstructure:"log_level"`
	Path              string        `json:"-" mapstructure:"-"`
}

// Validate normalises the config in place and reports the first invalid field.
func (c *Config) Validate() error {
	if c.Folder == "" {
		return ErrNoFolder
	}
	folder, err := utils.ResolvePath(c.Folder)
	if err != nil {
		return fmt.Errorf("config: folder %q: %w", c.Folder, err)
	}
	c.Folder = folder

	if c.Path != "" {
		p, err := utils.ResolvePath(c.Path)
		if err != nil {
			return fmt.Errorf("config: path %q: %w", c.Path, err)
		}
		c.Path = p
	}

	c.Address = strings.TrimSpace(c.Address)
	if strings.HasPrefix(c.Address, "https://") {
		c.UseTLS = true
	}
	c.Address = strings.TrimPrefix(strings.TrimPrefix(c.Address, "https://"), "http://")
	c.Address = strings.TrimSuffix(c.Address, "/")
	if c.Address == "" {
		return ErrNoAddress
	}
	if c.WorkspaceID <= 0 {
		return ErrNoWorkspace
	}
	if c.Username == "" {
		return ErrNoUsername
	}

	switch c.EventTransport {
	case "":
		c.EventTransport = tracimsdk.TransportSSE
	case tracimsdk.TransportSSE, tracimsdk.TransportWebsocket:
	default:
		return fmt.Errorf("%w: %q", ErrBadTransport, c.EventTransport)
	}

	switch {
	case c.InactivityTimeout < 0:
		return ErrBadInactivity
	case c.InactivityTimeout == 0:
		c.InactivityTimeout = remote.DefaultInactivityTimeout
	}

	for _, g := range c.Ignore {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("%w: %q", ErrBadIgnoreGlob, g)
		}
	}

	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel, info when empty.
func (c *Config) Level() (slog.Level, error) {
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadLogLevel, c.LogLevel)
	}
	return level, nil
}

// SDKConfig is the remote client configuration of this workspace.
func (c *Config) SDKConfig() *tracimsdk.Config {
	return &tracimsdk.Config{
		Address:     c.Address,
		UseTLS:      c.UseTLS,
		WorkspaceID: c.WorkspaceID,
		Username:    c.Username,
		Password:    c.Password,
	}
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	// holds the password
	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}
