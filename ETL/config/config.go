package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors
var (
	ErrMissingInputDir      = errors.New("input.dir is required")
	ErrInvalidWorkers       = errors.New("workers must be at least 1")
	ErrInvalidRunInterval   = errors.New("run_interval must be positive")
	ErrInvalidRunTimeout    = errors.New("run_timeout must be positive")
	ErrInvalidLockTimeout   = errors.New("lock_timeout must be at least 1s")
	ErrInvalidMinDate       = errors.New("validation.min_date must be YYYY-MM-DD")
	ErrInvalidMaxDaysAhead  = errors.New("validation.max_days_ahead must be non-negative")
	ErrInvalidCeiling       = errors.New("validation.ceilings must all be positive")
	ErrInvalidZonePattern   = errors.New("zones pattern does not compile")
	ErrInvalidZoneLookup    = errors.New("zones.lookup entries need a code")
	ErrInvalidLogLevel      = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat     = errors.New("logging.format must be 'text' or 'json'")
	ErrMissingDatabaseName  = errors.New("database.dbname is required")
	ErrInvalidAliasOverride = errors.New("aliases entries need at least one synonym")
)

// ETLConfig holds everything a run needs
type ETLConfig struct {
	Database DatabaseConfig `yaml:"database"`
	Input    InputConfig    `yaml:"input"`

	// How often scheduled and serve modes start a run
	RunInterval time.Duration `yaml:"run_interval"`

	// Upper bound for one run, publication included
	RunTimeout time.Duration `yaml:"run_timeout"`

	// How long to wait for the store's run lock
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// Normalize/validate parallelism
	Workers int `yaml:"workers"`

	Validation ValidationConfig `yaml:"validation"`
	Zones      ZoneConfig       `yaml:"zones"`
	Aliases    AliasConfig      `yaml:"aliases"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
}

// DatabaseConfig holds the analytical store connection settings
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// InputConfig points at the batch directory
type InputConfig struct {
	Dir string `yaml:"dir"`
}

// ValidationConfig holds the plausibility thresholds of the gate
type ValidationConfig struct {
	MinDate      string         `yaml:"min_date"`
	MaxDaysAhead int            `yaml:"max_days_ahead"`
	Ceilings     CeilingsConfig `yaml:"ceilings"`
}

// CeilingsConfig is the sanity ceiling of each measure
type CeilingsConfig struct {
	Income          float64 `yaml:"income"`
	Tips            float64 `yaml:"tips"`
	DistanceKm      float64 `yaml:"distance_km"`
	OrderCount      float64 `yaml:"order_count"`
	DurationMinutes float64 `yaml:"duration_minutes"`
}

// ZoneConfig describes recognized zone codes and their names
type ZoneConfig struct {
	DefaultCity   string      `yaml:"default_city"`
	PostalPattern string      `yaml:"postal_pattern"`
	TokenPattern  string      `yaml:"token_pattern"`
	Known         []string    `yaml:"known"`
	Lookup        []ZoneEntry `yaml:"lookup"`
}

// ZoneEntry names a zone and lists free-text spellings that map to it
type ZoneEntry struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	City    string   `yaml:"city"`
	Aliases []string `yaml:"aliases"`
}

// AliasConfig adds field-name synonyms on top of the built-in tables,
// keyed by canonical field name
type AliasConfig struct {
	Spreadsheet map[string][]string `yaml:"spreadsheet"`
	OCR         map[string][]string `yaml:"ocr"`
}

// LoggingConfig holds the logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// APIConfig holds the operator API settings
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultDatabaseConfig is used when the config file has no database section
var DefaultDatabaseConfig = DatabaseConfig{
	Host:            "localhost",
	Port:            3306,
	User:            "root",
	DBName:          "delivery_analytics",
	MaxOpenConns:    10,
	MaxIdleConns:    5,
	ConnMaxLifetime: 5 * time.Minute,
}

// GetConfig returns the default configuration
func GetConfig() ETLConfig {
	return ETLConfig{
		Database:    DefaultDatabaseConfig,
		Input:       InputConfig{Dir: "./input"},
		RunInterval: 1 * time.Hour,
		RunTimeout:  10 * time.Minute,
		LockTimeout: 30 * time.Second,
		Workers:     4,
		Validation: ValidationConfig{
			MinDate:      "2015-01-01",
			MaxDaysAhead: 1,
			Ceilings: CeilingsConfig{
				Income:          1_000_000,
				Tips:            200_000,
				DistanceKm:      1_000,
				OrderCount:      200,
				DurationMinutes: 24 * 60,
			},
		},
		Zones: ZoneConfig{
			DefaultCity:   "Buenos Aires",
			PostalPattern: `^[1-9]\d{3}$`,
			TokenPattern:  `^Z-\d{1,5}$`,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		API: APIConfig{Addr: ":8090"},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the defaults.
// ETL_DB_PASSWORD and ETL_DB_HOST override the file.
func Load(path string) (*ETLConfig, error) {
	cfg := GetConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	if v := os.Getenv("ETL_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("ETL_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for errors
func (c *ETLConfig) Validate() error {
	if c.Input.Dir == "" {
		return ErrMissingInputDir
	}
	if c.Database.DBName == "" {
		return ErrMissingDatabaseName
	}
	if c.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.RunInterval <= 0 {
		return ErrInvalidRunInterval
	}
	if c.RunTimeout <= 0 {
		return ErrInvalidRunTimeout
	}
	if c.LockTimeout < time.Second {
		return ErrInvalidLockTimeout
	}
	if err := c.Validation.validate(); err != nil {
		return err
	}
	if err := c.Zones.validate(); err != nil {
		return err
	}
	if err := c.Aliases.validate(); err != nil {
		return err
	}
	return c.Logging.validate()
}

func (v *ValidationConfig) validate() error {
	if _, err := v.MinDateValue(); err != nil {
		return err
	}
	if v.MaxDaysAhead < 0 {
		return ErrInvalidMaxDaysAhead
	}
	c := v.Ceilings
	if c.Income <= 0 || c.Tips <= 0 || c.DistanceKm <= 0 || c.OrderCount <= 0 || c.DurationMinutes <= 0 {
		return ErrInvalidCeiling
	}
	return nil
}

// MinDateValue parses MinDate as a UTC calendar date
func (v *ValidationConfig) MinDateValue() (time.Time, error) {
	t, err := time.Parse("2006-01-02", v.MinDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMinDate, v.MinDate)
	}
	return t, nil
}

func (z *ZoneConfig) validate() error {
	for _, pattern := range []string{z.PostalPattern, z.TokenPattern} {
		if pattern == "" {
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidZonePattern, pattern, err)
		}
	}
	for _, entry := range z.Lookup {
		if strings.TrimSpace(entry.Code) == "" {
			return ErrInvalidZoneLookup
		}
	}
	return nil
}

func (a *AliasConfig) validate() error {
	for _, table := range []map[string][]string{a.Spreadsheet, a.OCR} {
		for field, synonyms := range table {
			if len(synonyms) == 0 {
				return fmt.Errorf("%w: %s", ErrInvalidAliasOverride, field)
			}
		}
	}
	return nil
}

func (l *LoggingConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}
