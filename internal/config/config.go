// Package config loads settings from defaults, an optional config file, a
// .env file and COURSEFINDER_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/FranksOps/coursefinder/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COURSEFINDER"

// Store drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	SerpAPI   SerpAPIConfig   `mapstructure:"serpapi"`
	Search    SearchConfig    `mapstructure:"search"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       logging.Config  `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

type SerpAPIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Endpoint    string        `mapstructure:"endpoint"`
	Timeout     time.Duration `mapstructure:"timeout"`
	QPS         float64       `mapstructure:"qps"`
	Burst       int           `mapstructure:"burst"`
	Fingerprint string        `mapstructure:"fingerprint"`
	UserAgents  []string      `mapstructure:"user_agents"`
}

type SearchConfig struct {
	DefaultCap int `mapstructure:"default_cap"`
	PageSize   int `mapstructure:"page_size"`
}

type RateLimitConfig struct {
	Limit    int           `mapstructure:"limit"`
	Window   time.Duration `mapstructure:"window"`
	FailOpen bool          `mapstructure:"fail_open"`
}

// StoreConfig selects the durable backend for rate windows and history.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig enables a shared rate window when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type ProgressConfig struct {
	Pace   time.Duration `mapstructure:"pace"`
	Buffer int           `mapstructure:"buffer"`
}

type SessionConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serpapi.api_key", "")
	v.SetDefault("serpapi.endpoint", "https://serpapi.com/search")
	v.SetDefault("serpapi.timeout", 30*time.Second)
	v.SetDefault("serpapi.qps", 0.0)
	v.SetDefault("serpapi.burst", 1)
	v.SetDefault("serpapi.fingerprint", "")
	v.SetDefault("serpapi.user_agents", []string{})

	v.SetDefault("search.default_cap", 5)
	v.SetDefault("search.page_size", 5)

	v.SetDefault("ratelimit.limit", 10)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.fail_open", true)

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.dsn", "coursefinder.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "coursefinder:rate:")

	v.SetDefault("progress.pace", 300*time.Millisecond)
	v.SetDefault("progress.buffer", 8)

	v.SetDefault("session.max_entries", 1000)
	v.SetDefault("session.ttl", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 45*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
}

// LoadDotEnv loads variables from the given files (".env" when none are
// named) without overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration. path may be empty; its format follows the file
// extension.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("serpapi.api_key", EnvPrefix+"_SERPAPI_API_KEY", "SERPAPI_KEY"); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting. requireKey demands a provider
// API key, which only commands that search need.
func (c *Config) Validate(requireKey bool) error {
	var errs []error
	if requireKey && c.SerpAPI.APIKey == "" {
		errs = append(errs, errors.New("serpapi.api_key is required (or set SERPAPI_KEY)"))
	}
	if c.SerpAPI.Timeout <= 0 {
		errs = append(errs, errors.New("serpapi.timeout must be positive"))
	}
	if c.SerpAPI.QPS < 0 {
		errs = append(errs, errors.New("serpapi.qps must not be negative"))
	}
	if c.Search.DefaultCap <= 0 {
		errs = append(errs, errors.New("search.default_cap must be positive"))
	}
	if c.RateLimit.Limit <= 0 {
		errs = append(errs, errors.New("ratelimit.limit must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be positive"))
	}
	switch c.Store.Driver {
	case DriverNone:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of none, sqlite, postgres", c.Store.Driver))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Errorf("metrics.port %d is out of range", c.Metrics.Port))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}
