package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Storage  StorageConfig  `toml:"storage"`
	Browser  BrowserConfig  `toml:"browser"`
	Maps     MapsConfig     `toml:"maps"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Ingest   IngestConfig   `toml:"ingest"`
	Export   ExportConfig   `toml:"export"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host"`
}

// AuthConfig holds HTTP basic auth credentials for the control surface
type AuthConfig struct {
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type StorageConfig struct {
	Backend string       `toml:"backend" validate:"oneof=sqlite badger"` // "sqlite" (default) or "badger"
	SQLite  SQLiteConfig `toml:"sqlite"`
	Badger  BadgerConfig `toml:"badger"`
}

// SQLiteConfig represents SQLite-specific configuration
type SQLiteConfig struct {
	Path          string `toml:"path"`
	WALMode       bool   `toml:"wal_mode"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path string `toml:"path"`
}

// BrowserConfig controls the chromedp sessions owned by the pipeline workers
type BrowserConfig struct {
	Headless    bool   `toml:"headless"`
	ProfilesDir string `toml:"profiles_dir"` // Per-worker Chrome profile directories live under here
	UserAgent   string `toml:"user_agent"`
	Lang        string `toml:"lang"`
}

// MapsConfig contains the map-service scraping parameters
type MapsConfig struct {
	DomainPref       string        `toml:"domain_pref"`        // Preferred service domain suffix, "auto" defers to domain_default
	DomainDefault    string        `toml:"domain_default"`     // Domain suffix used when a task says "auto"
	CityZoomDefault  string        `toml:"city_zoom_default"`  // Zoom applied when the city URL carries none
	SearchInputWait  time.Duration `toml:"search_input_wait"`  // How long to poll for the search input
	MaxIdlePasses    int           `toml:"max_idle_passes"`    // Harvest stops after this many passes without growth
	MaxHarvestPasses int           `toml:"max_harvest_passes"` // Hard cap on scroll passes
	ScrollStepPx     int           `toml:"scroll_step_px"`
	PanGrid          int           `toml:"pan_grid"`    // Grid dimension for map panning (<=1 disables)
	PanStepPx        int           `toml:"pan_step_px"` // Drag distance per panning gesture
	PanAlways        bool          `toml:"pan_always"`  // Enable panning on every generated task
	PageRatePerSec   float64       `toml:"page_rate_per_sec"`
}

// PipelineConfig controls the two worker loops
type PipelineConfig struct {
	MaxAttempts     int           `toml:"max_attempts" validate:"gt=0"`
	PollInterval    time.Duration `toml:"poll_interval"`
	CaptchaCooldown time.Duration `toml:"captcha_cooldown"`
	ErrorCooldown   time.Duration `toml:"error_cooldown"`
	StopJoinTimeout time.Duration `toml:"stop_join_timeout"`
	SessionQuitWait time.Duration `toml:"session_quit_wait"`
	DebugDir        string        `toml:"debug_dir"`
	SaveDebug       bool          `toml:"save_debug"`
}

// IngestConfig points at the operator workbook with cities, requests,
// categories and excludes
type IngestConfig struct {
	WorkbookPath string `toml:"workbook_path"`
}

type ExportConfig struct {
	Path  string `toml:"path"`
	Sheet string `toml:"sheet"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings should be exposed in colligo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Auth: AuthConfig{
			User:     "admin",
			Password: "admin",
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			SQLite: SQLiteConfig{
				Path:          "./output/progress.sqlite",
				WALMode:       true,
				BusyTimeoutMS: 30000,
			},
			Badger: BadgerConfig{
				Path: "./output/progress.badger",
			},
		},
		Browser: BrowserConfig{
			Headless:    false,
			ProfilesDir: "./runtime/profiles",
			Lang:        "ru-RU",
		},
		Maps: MapsConfig{
			DomainPref:       "auto",
			DomainDefault:    "by",
			CityZoomDefault:  "11",
			SearchInputWait:  45 * time.Second,
			MaxIdlePasses:    12,
			MaxHarvestPasses: 4000,
			ScrollStepPx:     900,
			PanGrid:          3,
			PanStepPx:        420,
			PanAlways:        true,
			PageRatePerSec:   0.5,
		},
		Pipeline: PipelineConfig{
			MaxAttempts:     30,
			PollInterval:    time.Second,
			CaptchaCooldown: 8 * time.Second,
			ErrorCooldown:   2 * time.Second,
			StopJoinTimeout: 12 * time.Second,
			SessionQuitWait: 4 * time.Second,
			DebugDir:        "./runtime/debug",
			SaveDebug:       true,
		},
		Ingest: IngestConfig{
			WorkbookPath: "./config.xlsx",
		},
		Export: ExportConfig{
			Path:  "./output/results.xlsx",
			Sheet: "Results",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFile loads configuration with priority: defaults -> file -> env -> flags.
// An empty path skips the file stage.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("COLLIGO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("COLLIGO_HOST"); host != "" {
		config.Server.Host = host
	}
	if user := os.Getenv("COLLIGO_ADMIN_USER"); user != "" {
		config.Auth.User = user
	}
	if pass := os.Getenv("COLLIGO_ADMIN_PASS"); pass != "" {
		config.Auth.Password = pass
	}
	if backend := os.Getenv("COLLIGO_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if path := os.Getenv("COLLIGO_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if headless := os.Getenv("COLLIGO_HEADLESS"); headless != "" {
		config.Browser.Headless = headless == "1" || headless == "true" || headless == "yes"
	}
	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if attempts := os.Getenv("COLLIGO_TASK_MAX_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil && a > 0 {
			config.Pipeline.MaxAttempts = a
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
