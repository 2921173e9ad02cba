// Package config loads and saves the YAML configuration of vaultcal.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultRefresh     = "*/15 * * * *"
	defaultHorizonDays = 14
	defaultEventsDir   = "calendar/events"
	defaultMirrorDir   = "calendar/ics"
	defaultMobileWidth = 500
)

// DefaultCacheDir is where fetched ICS bodies are kept when cache_dir is
// unset.
const DefaultCacheDir = "/var/lib/vaultcal/ics-cache"

// ICSConfig describes a single ICS subscription.
type ICSConfig struct {
	// ID namespaces the feed's event ids; it must be unique across feeds.
	ID   string `yaml:"id" json:"id"`
	URL  string `yaml:"url" json:"url"`
	Name string `yaml:"name" json:"name"`
}

// VaultConfig points at the note store.
type VaultConfig struct {
	// Root is the vault directory on disk.
	Root string `yaml:"root" json:"root"`
	// EventsDir is the vault-relative directory holding event notes. New
	// notes created by selection land here too.
	EventsDir string `yaml:"events_dir" json:"events_dir"`
}

// GoogleConfig enables the hosted calendar source.
type GoogleConfig struct {
	APIKey    string   `yaml:"api_key" json:"-"`
	Calendars []string `yaml:"calendars" json:"calendars"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display zone (e.g. "Europe/London"). Empty means
	// the process local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a five-field cron schedule for reloading all sources.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays and BackfillDays bound the loaded window around today.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	Vault VaultConfig `yaml:"vault" json:"vault"`

	// MirrorDir is the vault-relative directory searched for mirror notes of
	// read-only events.
	MirrorDir string `yaml:"mirror_dir" json:"mirror_dir"`

	// CacheDir holds the last good body of each ICS feed. It lives outside
	// the vault.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// MobileWidth is the viewport width below which the condensed layout is
	// used.
	MobileWidth int `yaml:"mobile_width" json:"mobile_width"`

	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// Google, if non-nil with an API key, adds one source per calendar id.
	Google *GoogleConfig `yaml:"google,omitempty" json:"google,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		WeekStart:    "monday",
		RefreshCron:  defaultRefresh,
		HorizonDays:  defaultHorizonDays,
		BackfillDays: 1,
		Vault: VaultConfig{
			Root:      ".",
			EventsDir: defaultEventsDir,
		},
		MirrorDir:   defaultMirrorDir,
		CacheDir:    DefaultCacheDir,
		MobileWidth: defaultMobileWidth,
		ICS:         []ICSConfig{},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch strings.ToLower(c.WeekStart) {
	case "sunday":
		c.WeekStart = "sunday"
	default:
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.Vault.Root == "" {
		c.Vault.Root = "."
	}
	c.Vault.EventsDir = trimDir(c.Vault.EventsDir, defaultEventsDir)
	c.MirrorDir = trimDir(c.MirrorDir, defaultMirrorDir)
	c.CacheDir = strings.TrimSpace(c.CacheDir)
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.MobileWidth <= 0 {
		c.MobileWidth = defaultMobileWidth
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("feed%d", i+1)
		}
	}
}

func trimDir(dir, def string) string {
	dir = strings.Trim(strings.TrimSpace(dir), "/")
	if dir == "" {
		return def
	}
	return dir
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.ICS))
	for _, feed := range c.ICS {
		if feed.URL == "" {
			return fmt.Errorf("config: ics feed %q has no url", feed.ID)
		}
		if seen[feed.ID] {
			return fmt.Errorf("config: duplicate ics feed id %q", feed.ID)
		}
		seen[feed.ID] = true
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// FirstDay maps WeekStart to a weekday.
func (c *Config) FirstDay() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// GoogleEnabled reports whether the hosted calendar source is configured.
func (c *Config) GoogleEnabled() bool {
	return c.Google != nil && c.Google.APIKey != "" && len(c.Google.Calendars) > 0
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with 0600
// permissions on the result.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".vaultcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
