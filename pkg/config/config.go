// Package config handles loading and saving civicmap configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/civicmap/config.yaml
//   - Data:   ~/.local/share/civicmap/ (dataset database, snapshots)
//   - State:  ~/.local/state/civicmap/ (log file)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const appName = "civicmap"

// APIConfig points the client at a civic data service.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"` // 0 waits indefinitely
}

// SearchConfig tunes the entity resolver.
type SearchConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	MaxSuggestions int           `yaml:"max_suggestions"`
}

// MapConfig locates the county polygons.
type MapConfig struct {
	// GeoJSON is a path on the data service (e.g. /data/counties.geojson),
	// an absolute URL, or a local file.
	GeoJSON string `yaml:"geojson"`
	// Watch reloads a local GeoJSON file when it changes.
	Watch bool `yaml:"watch,omitempty"`
}

// SlotStyle is the base look of one slot's polygon and bars.
type SlotStyle struct {
	Color       string  `yaml:"color"`
	Weight      float64 `yaml:"weight"`
	FillOpacity float64 `yaml:"fill_opacity"`
}

// SlotsConfig holds the base styles keyed by slot name, plus hover emphasis.
type SlotsConfig struct {
	Styles   map[string]SlotStyle `yaml:"styles"`
	Emphasis SlotStyle            `yaml:"emphasis"` // color is ignored; the slot keeps its own
}

// QuestConfig holds XP awarded at each milestone.
type QuestConfig struct {
	HomeCountyXP int `yaml:"home_county_xp"`
	StateXP      int `yaml:"state_xp"`
	ChallengeXP  int `yaml:"challenge_xp"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"` // empty means StateDir()/civicmap.log for the TUI
}

// ServerConfig configures the bundled data service.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database,omitempty"`
	GeoJSON  string `yaml:"geojson,omitempty"`
	Dataset  string `yaml:"dataset,omitempty"` // civic_quest_data.json imported on first start
}

// Config is the top-level configuration.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Search SearchConfig `yaml:"search"`
	Map    MapConfig    `yaml:"map"`
	Slots  SlotsConfig  `yaml:"slots"`
	Quest  QuestConfig  `yaml:"quest"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

// DefaultConfig returns the built-in defaults: the local data service, a 200ms
// search debounce and the blue/green slot colours.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:5000",
		},
		Search: SearchConfig{
			Debounce:       200 * time.Millisecond,
			MaxSuggestions: 12,
		},
		Map: MapConfig{
			GeoJSON: "/data/counties.geojson",
		},
		Slots: SlotsConfig{
			Styles: map[string]SlotStyle{
				"A":     {Color: "#1f78b4", Weight: 2, FillOpacity: 0.2},
				"B":     {Color: "#33a02c", Weight: 2, FillOpacity: 0.2},
				"mine":  {Color: "#1f78b4", Weight: 2, FillOpacity: 0.2},
				"other": {Color: "#e31a1c", Weight: 2, FillOpacity: 0.2},
			},
			Emphasis: SlotStyle{Weight: 5, FillOpacity: 0.35},
		},
		Quest: QuestConfig{
			HomeCountyXP: 20,
			StateXP:      30,
			ChallengeXP:  50,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:     "127.0.0.1:5000",
			Database: filepath.Join(DataDir(), "civicmap.db"),
		},
	}
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...)
}

// ConfigDir returns the XDG config directory.
func ConfigDir() string { return xdgDir("XDG_CONFIG_HOME", ".config") }

// DataDir returns the XDG data directory.
func DataDir() string { return xdgDir("XDG_DATA_HOME", ".local", "share") }

// StateDir returns the XDG state directory.
func StateDir() string { return xdgDir("XDG_STATE_HOME", ".local", "state") }

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return applyEnv(DefaultConfig()), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path, then applies environment
// overrides. Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.Slots.Styles == nil {
		cfg.Slots.Styles = defaults.Slots.Styles
	}
	for name, style := range defaults.Slots.Styles {
		if _, ok := cfg.Slots.Styles[name]; !ok {
			cfg.Slots.Styles[name] = style
		}
	}
	if cfg.Search.MaxSuggestions <= 0 {
		cfg.Search.MaxSuggestions = defaults.Search.MaxSuggestions
	}
	if cfg.Search.Debounce < 0 {
		return cfg, fmt.Errorf("parsing config: search.debounce must not be negative")
	}

	cfg.Map.GeoJSON = expandHome(cfg.Map.GeoJSON)
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.Server.Database = expandHome(cfg.Server.Database)
	cfg.Server.GeoJSON = expandHome(cfg.Server.GeoJSON)
	cfg.Server.Dataset = expandHome(cfg.Server.Dataset)

	return applyEnv(cfg), nil
}

func applyEnv(cfg Config) Config {
	if v := os.Getenv("CIVICMAP_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("CIVICMAP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if os.Getenv("CIVICMAP_DEBUG") != "" {
		cfg.Log.Level = "debug"
	}
	return cfg
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SlotStyle returns the base style for a slot, falling back to slot A's.
func (c Config) SlotStyle(name string) SlotStyle {
	if s, ok := c.Slots.Styles[name]; ok {
		return s
	}
	return c.Slots.Styles["A"]
}

// LogFile returns the configured log file, defaulting into StateDir.
func (c Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, appName+".log")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
