// Package config loads and persists tudu settings.
//
// Settings live in $XDG_CONFIG_HOME/tudu/config.toml (or
// $HOME/.config/tudu/config.toml). Every key can be overridden from the
// environment with the TUDU_ prefix, e.g. TUDU_GITHUB_TOKEN. Environment
// overrides are never written back to the file.
//
// Example:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	err = cfg.Update(func(v *config.Values) {
//	    v.GistID = "0123456789abcdef0123456789abcdef"
//	    v.AutoSync = true
//	})
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "tudu"

	// FileName is the configuration file name.
	FileName = "config.toml"

	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "TUDU"
)

// Key names, shared by the file, the environment and `tudu config`.
const (
	KeyGistID        = "gist_id"
	KeyGitHubToken   = "github_token"
	KeyAutoSync      = "auto_sync"
	KeyCurrentList   = "current_list"
	KeyDatabase      = "database"
	KeyLogFile       = "log_file"
	KeyDebounceDelay = "debounce_delay"
	KeyPollInterval  = "poll_interval"
	KeyAPIURL        = "api_url"
)

// ErrUnknownKey is returned by Set for a key that is not a setting.
var ErrUnknownKey = errors.New("unknown config key")

// Values are the persisted settings.
type Values struct {
	GistID        string        `toml:"gist_id" mapstructure:"gist_id"`
	GitHubToken   string        `toml:"github_token" mapstructure:"github_token"`
	AutoSync      bool          `toml:"auto_sync" mapstructure:"auto_sync"`
	CurrentList   string        `toml:"current_list" mapstructure:"current_list"`
	Database      string        `toml:"database" mapstructure:"database"`
	LogFile       string        `toml:"log_file,omitempty" mapstructure:"log_file"`
	DebounceDelay time.Duration `toml:"debounce_delay" mapstructure:"debounce_delay"`
	PollInterval  time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	APIURL        string        `toml:"api_url" mapstructure:"api_url"`
}

// Defaults returns the built-in settings.
func Defaults() Values {
	return Values{
		Database:      filepath.Join(DefaultDataDir(), "tudu.db"),
		DebounceDelay: 5 * time.Second,
		PollInterval:  10 * time.Second,
		APIURL:        "https://api.github.com",
	}
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultDataDir returns the default data directory.
// Uses XDG_DATA_HOME if set, otherwise $HOME/.local/share.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".local", "share", AppName)
}

// Config holds the loaded settings and the file they came from.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	v *viper.Viper

	mu       sync.RWMutex
	values   Values
	watchers []func(Values)
}

// Load reads the configuration from dir (DefaultConfigDir if empty). A
// missing file is not an error; defaults and environment apply.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultConfigDir()
	}
	c := &Config{Dir: dir, v: viper.New()}

	c.v.SetConfigFile(c.Path())
	c.v.SetConfigType("toml")
	c.v.SetEnvPrefix(EnvPrefix)
	c.v.AutomaticEnv()

	d := Defaults()
	c.v.SetDefault(KeyGistID, d.GistID)
	c.v.SetDefault(KeyGitHubToken, d.GitHubToken)
	c.v.SetDefault(KeyAutoSync, d.AutoSync)
	c.v.SetDefault(KeyCurrentList, d.CurrentList)
	c.v.SetDefault(KeyDatabase, d.Database)
	c.v.SetDefault(KeyLogFile, d.LogFile)
	c.v.SetDefault(KeyDebounceDelay, d.DebounceDelay)
	c.v.SetDefault(KeyPollInterval, d.PollInterval)
	c.v.SetDefault(KeyAPIURL, d.APIURL)

	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// reload re-reads the file (if present) and refreshes the values.
func (c *Config) reload() error {
	if _, err := os.Stat(c.Path()); err == nil {
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read %s: %w", c.Path(), err)
		}
	}
	return c.refresh()
}

// refresh decodes viper's merged view into Values.
func (c *Config) refresh() error {
	var vals Values
	if err := c.v.Unmarshal(&vals); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	c.mu.Lock()
	c.values = vals
	c.mu.Unlock()
	return nil
}

// Path returns the configuration file path.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, FileName)
}

// Values returns a copy of the current settings.
func (c *Config) Values() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values
}

// GistID returns the configured gist id or URL.
func (c *Config) GistID() string { return c.Values().GistID }

// Token returns the configured GitHub token.
func (c *Config) Token() string { return c.Values().GitHubToken }

// AutoSync reports whether automatic sync is enabled.
func (c *Config) AutoSync() bool { return c.Values().AutoSync }

// Update applies fn to the settings stored in the file and writes the file
// back. Environment overrides are applied on top afterwards, as on Load.
func (c *Config) Update(fn func(*Values)) error {
	file := Defaults()
	if _, err := os.Stat(c.Path()); err == nil {
		if _, err := toml.DecodeFile(c.Path(), &file); err != nil {
			return fmt.Errorf("failed to read %s: %w", c.Path(), err)
		}
	}

	fn(&file)

	if err := c.write(file); err != nil {
		return err
	}
	return c.reload()
}

// Set parses value for key and stores it.
func (c *Config) Set(key, value string) error {
	var apply func(*Values)
	switch key {
	case KeyGistID:
		apply = func(v *Values) { v.GistID = value }
	case KeyGitHubToken:
		apply = func(v *Values) { v.GitHubToken = value }
	case KeyCurrentList:
		apply = func(v *Values) { v.CurrentList = value }
	case KeyDatabase:
		apply = func(v *Values) { v.Database = value }
	case KeyLogFile:
		apply = func(v *Values) { v.LogFile = value }
	case KeyAPIURL:
		apply = func(v *Values) { v.APIURL = value }
	case KeyAutoSync:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		apply = func(v *Values) { v.AutoSync = b }
	case KeyDebounceDelay, KeyPollInterval:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid value for %s: must be positive", key)
		}
		if key == KeyDebounceDelay {
			apply = func(v *Values) { v.DebounceDelay = d }
		} else {
			apply = func(v *Values) { v.PollInterval = d }
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return c.Update(apply)
}

// Get returns the string form of key.
func (c *Config) Get(key string) (string, error) {
	m := c.Values().Map()
	val, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return val, nil
}

// Map returns every setting as a string, keyed by name.
func (v Values) Map() map[string]string {
	return map[string]string{
		KeyGistID:        v.GistID,
		KeyGitHubToken:   v.GitHubToken,
		KeyAutoSync:      strconv.FormatBool(v.AutoSync),
		KeyCurrentList:   v.CurrentList,
		KeyDatabase:      v.Database,
		KeyLogFile:       v.LogFile,
		KeyDebounceDelay: v.DebounceDelay.String(),
		KeyPollInterval:  v.PollInterval.String(),
		KeyAPIURL:        v.APIURL,
	}
}

// Keys returns the setting names in sorted order.
func Keys() []string {
	keys := make([]string, 0, 9)
	for k := range Defaults().Map() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Config) write(vals Values) error {
	if err := os.MkdirAll(c.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp := c.Path() + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(vals); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, c.Path()); err != nil {
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// Watch reloads the settings whenever the file changes and calls fn with
// the new values. It starts viper's fsnotify watcher on first use.
func (c *Config) Watch(fn func(Values)) error {
	if err := os.MkdirAll(c.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	c.mu.Lock()
	first := len(c.watchers) == 0
	c.watchers = append(c.watchers, fn)
	c.mu.Unlock()

	if !first {
		return nil
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if err := c.refresh(); err != nil {
			return
		}
		vals := c.Values()
		c.mu.RLock()
		watchers := append([]func(Values){}, c.watchers...)
		c.mu.RUnlock()
		for _, w := range watchers {
			w(vals)
		}
	})
	c.v.WatchConfig()
	return nil
}
