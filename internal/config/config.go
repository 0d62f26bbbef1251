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

	"github.com/antonio-leblanc/working-hours/internal/ics"
)

const (
	defaultTimezone         = "America/Sao_Paulo"
	defaultPersonalCategory = "Pessoal"
	defaultListen           = "127.0.0.1:8080"
	defaultSchedule         = "0 18 * * 5"
	defaultOutputDir        = "./reports"
	defaultCacheDir         = "./var/ics-cache"
)

// SourceConfig describes a single calendar export or subscription.
type SourceConfig struct {
	// ID is an internal identifier used in logs.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Path is a local .ics file.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// URL is an ICS subscription endpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone every event is analyzed in (e.g. "America/Sao_Paulo").
	Timezone string `yaml:"timezone" json:"timezone"`

	// PersonalCategory marks events that are excluded from work accounting.
	PersonalCategory string `yaml:"personal_category" json:"personal_category"`

	// WeekStart controls which weekday opens a "current week" period.
	// Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// IncludeAllDay keeps all-day events in the analysis.
	IncludeAllDay bool `yaml:"include_all_day" json:"include_all_day"`

	// Listen is the HTTP listen address for the report API.
	Listen string `yaml:"listen" json:"listen"`

	// Schedule is a cron-style spec (e.g. "0 18 * * 5") for recurring
	// report exports in serve mode.
	Schedule string `yaml:"schedule" json:"schedule"`

	// SchedulePeriod is the period exported on each scheduled tick: a bare
	// kind ("week", "month") or the /api/report query form, e.g.
	// "period=monthof&year=2024&month=3".
	SchedulePeriod string `yaml:"schedule_period" json:"schedule_period"`

	// OutputDir receives exported workbooks and snapshots.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// CacheDir holds the HTTP cache for subscribed calendars.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Sources is the list of calendars to analyze.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:         defaultTimezone,
		PersonalCategory: defaultPersonalCategory,
		WeekStart:        "monday",
		IncludeAllDay:    false,
		Listen:           defaultListen,
		Schedule:         defaultSchedule,
		SchedulePeriod:   "week",
		OutputDir:        defaultOutputDir,
		CacheDir:         defaultCacheDir,
		LogLevel:         "info",
		Sources:          []SourceConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.PersonalCategory = strings.TrimSpace(c.PersonalCategory)
	if c.PersonalCategory == "" {
		c.PersonalCategory = defaultPersonalCategory
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		// Unknown value; fall back to monday.
		c.WeekStart = "monday"
	}
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Schedule == "" {
		c.Schedule = defaultSchedule
	}
	if c.SchedulePeriod == "" {
		c.SchedulePeriod = "week"
	}
	if c.OutputDir == "" {
		c.OutputDir = defaultOutputDir
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		if c.Sources[i].ID == "" {
			c.Sources[i].ID = firstNonEmpty(c.Sources[i].Name, c.Sources[i].Path, c.Sources[i].URL)
		}
	}
}

// Validate reports configuration errors that must abort a run.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	for i, s := range c.Sources {
		if s.Path == "" && s.URL == "" {
			return fmt.Errorf("config: source %d (%s) has neither path nor url", i, s.ID)
		}
	}
	return nil
}

// WeekStartDay maps WeekStart onto a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// ICSSources converts the configured sources for the ics loader.
func (c *Config) ICSSources() []ics.Source {
	out := make([]ics.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, ics.Source{ID: s.ID, Path: s.Path, URL: s.URL})
	}
	return out
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
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

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
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

	tmp, err := os.CreateTemp(dir, ".workhours-config-*.tmp")
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
