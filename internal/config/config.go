package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cyp0633/eventcal/eventlist"
	"github.com/cyp0633/eventcal/internal/validate"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// StorageConfig selects where event definitions live.
type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory mysql"`
	// MySQLDSN is a go-sql-driver/mysql DSN, e.g.
	// "user:pass@tcp(127.0.0.1:3306)/eventcal".
	MySQLDSN    string `yaml:"mysql_dsn" validate:"required_if=Driver mysql"`
	TablePrefix string `yaml:"table_prefix"`
}

// CacheConfig selects the event-list cache.
type CacheConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=memory redis"`
	RedisAddr string `yaml:"redis_addr" validate:"required_if=Backend redis"`
	// TTL is a Go duration; lists are also keyed by the rounded time, so
	// it only bounds how long stale keys linger.
	TTL             string `yaml:"ttl" validate:"duration"`
	MaxEntries      int    `yaml:"max_entries" validate:"gte=1"`
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// ListConfig holds the default display arguments of the CLI.
type ListConfig struct {
	Order   string   `yaml:"order"`
	Number  int      `yaml:"number"`
	Display []string `yaml:"display"`
	Spread  string   `yaml:"spread"`
	Expires string   `yaml:"expires"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the site display zone: "UTC", an IANA name or a manual
	// offset such as "UTC+5.5".
	Timezone string `yaml:"timezone" validate:"tzspec"`

	// StartOfWeek is 0 for Sunday through 6 for Saturday.
	StartOfWeek int `yaml:"start_of_week" validate:"gte=0,lte=6"`

	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	List    ListConfig    `yaml:"list"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	def := eventlist.DefaultDisplayArgs()
	return &Config{
		Timezone:    "UTC",
		StartOfWeek: 1,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Driver:      DriverMemory,
			TablePrefix: "wp_sc_",
		},
		Cache: CacheConfig{
			Backend:         BackendMemory,
			TTL:             "24h",
			MaxEntries:      1000,
			CleanupSchedule: "@every 5m",
		},
		List: ListConfig{
			Order:   def.Order,
			Number:  def.Number,
			Display: def.Display,
			Spread:  def.Spread,
			Expires: def.Expires,
		},
	}
}

// Normalize fills in missing/zero values with defaults so partially
// filled files still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = def.Storage.Driver
	}
	if c.Storage.TablePrefix == "" {
		c.Storage.TablePrefix = def.Storage.TablePrefix
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = def.Cache.Backend
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = def.Cache.MaxEntries
	}
	if c.Cache.CleanupSchedule == "" {
		c.Cache.CleanupSchedule = def.Cache.CleanupSchedule
	}
	if c.List.Order == "" {
		c.List.Order = def.List.Order
	}
	if c.List.Number <= 0 {
		c.List.Number = def.List.Number
	}
	if len(c.List.Display) == 0 {
		c.List.Display = def.List.Display
	}
	if c.List.Spread == "" {
		c.List.Spread = def.List.Spread
	}
	if c.List.Expires == "" {
		c.List.Expires = def.List.Expires
	}
}

// Validate checks the normalized config.
func (c *Config) Validate() error {
	if err := validate.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.DisplayArgs().Validate(); err != nil {
		return fmt.Errorf("invalid list defaults: %w", err)
	}
	return nil
}

// CacheTTL parses Cache.TTL; Validate has already checked it.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TTL)
	return d
}

// DisplayArgs turns the list defaults and site preferences into list
// arguments.
func (c *Config) DisplayArgs() eventlist.DisplayArgs {
	return eventlist.DisplayArgs{
		Order:       c.List.Order,
		Number:      c.List.Number,
		Display:     c.List.Display,
		Spread:      c.List.Spread,
		Expires:     c.List.Expires,
		StartOfWeek: c.StartOfWeek,
		Timezone:    c.Timezone,
	}.Normalize()
}

// LoadEnv reads a .env file into the process environment when present.
// Variables already set win over the file.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides file values with EVENTCAL_* variables.
func (c *Config) ApplyEnv() error {
	overrides := map[string]*string{
		"EVENTCAL_TIMEZONE":       &c.Timezone,
		"EVENTCAL_LOG_LEVEL":      &c.Log.Level,
		"EVENTCAL_LOG_FORMAT":     &c.Log.Format,
		"EVENTCAL_STORAGE_DRIVER": &c.Storage.Driver,
		"EVENTCAL_MYSQL_DSN":      &c.Storage.MySQLDSN,
		"EVENTCAL_CACHE_BACKEND":  &c.Cache.Backend,
		"EVENTCAL_REDIS_ADDR":     &c.Cache.RedisAddr,
	}
	for name, field := range overrides {
		if v, ok := os.LookupEnv(name); ok {
			*field = v
		}
	}
	if v, ok := os.LookupEnv("EVENTCAL_START_OF_WEEK"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EVENTCAL_START_OF_WEEK: %w", err)
		}
		c.StartOfWeek = n
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
//
// Environment overrides are applied last, then the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	tmp, err := os.CreateTemp(dir, ".eventcal-config-*.tmp")
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
