package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// Config holds the settings of a dialtone server.
	Config struct {
		// HTTP
		Addr            string        `yaml:"addr"`
		BaseURL         string        `yaml:"base_url"`
		StepTimeout     time.Duration `yaml:"step_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

		// Flows are loaded from this directory at startup.
		FlowsDir string `yaml:"flows"`

		// Stores
		SessionStore string        `yaml:"session_store"`
		SessionDir   string        `yaml:"session_dir"`
		RouteStore   string        `yaml:"route_store"`
		Redis        RedisConfig   `yaml:"redis"`
		SQLiteDSN    string        `yaml:"sqlite_dsn"`
		RouteTTL     time.Duration `yaml:"route_cache_ttl"`

		// Sessions
		IdleTimeout   time.Duration `yaml:"idle_timeout"`
		SweepInterval time.Duration `yaml:"sweep_interval"`

		// SessionKey is a base64 AES-256 key. When set, stored sessions are
		// encrypted; PreviousSessionKey still opens sessions sealed before a rotation.
		SessionKey         string   `yaml:"session_key"`
		PreviousSessionKey string   `yaml:"previous_session_key"`
		MaskVariables      []string `yaml:"mask_variables"`

		// Realtime
		MonitorURL  string `yaml:"monitor_url"`
		EventWindow int    `yaml:"event_window"`

		// Logging
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	}

	// RedisConfig locates the shared redis used by the redis stores.
	RedisConfig struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	}
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

const (
	DefaultAddr            = ":8080"
	DefaultBaseURL         = "http://localhost:8080"
	DefaultStepTimeout     = 5 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultIdleTimeout     = 2 * time.Hour
	DefaultSweepInterval   = 5 * time.Minute
	DefaultRouteTTL        = 30 * time.Second
	DefaultEventWindow     = 100
	DefaultRedisAddr       = "localhost:6379"
	DefaultRedisPrefix     = "dialtone:"

	MaxEventWindow = 100_000
)

var (
	ErrInvalidAddr          = errors.New("listen address is required")
	ErrInvalidStepTimeout   = errors.New("step timeout must be positive")
	ErrInvalidIdleTimeout   = errors.New("idle timeout must be positive")
	ErrInvalidSweepInterval = errors.New("sweep interval must be positive")
	ErrInvalidSessionStore  = errors.New("invalid session store")
	ErrInvalidRouteStore    = errors.New("invalid route store")
	ErrMissingSQLiteDSN     = errors.New("sqlite route store requires a DSN")
	ErrMissingRedisAddr     = errors.New("redis store requires an address")
	ErrInvalidEventWindow   = errors.New("event window must be positive")
	ErrInvalidLogFormat     = errors.New("invalid log format")
	ErrInvalidSessionKey    = errors.New("session key must be 32 base64-encoded bytes")
	ErrInvalidMaskPattern   = errors.New("invalid mask pattern")
)

// NewDefaultConfig returns a single-instance, in-memory configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Addr:            DefaultAddr,
		BaseURL:         DefaultBaseURL,
		StepTimeout:     DefaultStepTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		SessionStore:    StoreMemory,
		RouteStore:      StoreMemory,
		Redis: RedisConfig{
			Addr:   DefaultRedisAddr,
			Prefix: DefaultRedisPrefix,
		},
		RouteTTL:      DefaultRouteTTL,
		IdleTimeout:   DefaultIdleTimeout,
		SweepInterval: DefaultSweepInterval,
		EventWindow:   DefaultEventWindow,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// LoadDotEnv loads KEY=VALUE files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFile overlays values from a YAML file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv populates configuration values from DIALTONE_* environment
// variables. Returns an error if any variable cannot be parsed.
func (c *Config) LoadFromEnv() error {
	loadEnvString("DIALTONE_ADDR", &c.Addr)
	loadEnvString("DIALTONE_BASE_URL", &c.BaseURL)
	loadEnvString("DIALTONE_FLOWS", &c.FlowsDir)
	loadEnvString("DIALTONE_SESSION_STORE", &c.SessionStore)
	loadEnvString("DIALTONE_SESSION_DIR", &c.SessionDir)
	loadEnvString("DIALTONE_ROUTE_STORE", &c.RouteStore)
	loadEnvString("DIALTONE_REDIS_ADDR", &c.Redis.Addr)
	loadEnvString("DIALTONE_REDIS_PASSWORD", &c.Redis.Password)
	loadEnvString("DIALTONE_REDIS_PREFIX", &c.Redis.Prefix)
	loadEnvString("DIALTONE_SQLITE_DSN", &c.SQLiteDSN)
	loadEnvString("DIALTONE_MONITOR_URL", &c.MonitorURL)
	loadEnvString("DIALTONE_LOG_LEVEL", &c.LogLevel)
	loadEnvString("DIALTONE_LOG_FORMAT", &c.LogFormat)
	loadEnvString("DIALTONE_SESSION_KEY", &c.SessionKey)
	loadEnvString("DIALTONE_PREVIOUS_SESSION_KEY", &c.PreviousSessionKey)
	if v := strings.TrimSpace(os.Getenv("DIALTONE_MASK_VARIABLES")); v != "" {
		c.MaskVariables = splitList(v)
	}

	if err := loadEnvInt("DIALTONE_REDIS_DB", &c.Redis.DB, -1, 15); err != nil {
		return err
	}
	if err := loadEnvInt("DIALTONE_EVENT_WINDOW", &c.EventWindow, 0, MaxEventWindow); err != nil {
		return err
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DIALTONE_STEP_TIMEOUT", &c.StepTimeout},
		{"DIALTONE_SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
		{"DIALTONE_IDLE_TIMEOUT", &c.IdleTimeout},
		{"DIALTONE_SWEEP_INTERVAL", &c.SweepInterval},
		{"DIALTONE_ROUTE_CACHE_TTL", &c.RouteTTL},
	}
	for _, d := range durations {
		if err := loadEnvDuration(d.key, d.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return ErrInvalidAddr
	}
	if c.StepTimeout <= 0 {
		return ErrInvalidStepTimeout
	}
	if c.IdleTimeout <= 0 {
		return ErrInvalidIdleTimeout
	}
	if c.SweepInterval <= 0 {
		return ErrInvalidSweepInterval
	}
	if c.EventWindow <= 0 {
		return ErrInvalidEventWindow
	}

	switch c.SessionStore {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSessionStore, c.SessionStore)
	}
	switch c.RouteStore {
	case StoreMemory, StoreRedis:
	case StoreSQLite:
		if c.SQLiteDSN == "" {
			return ErrMissingSQLiteDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRouteStore, c.RouteStore)
	}
	if (c.SessionStore == StoreRedis || c.RouteStore == StoreRedis) && c.Redis.Addr == "" {
		return ErrMissingRedisAddr
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}

	if _, _, err := c.SessionKeys(); err != nil {
		return err
	}
	for _, p := range c.MaskVariables {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidMaskPattern, p, err)
		}
	}
	return nil
}

// SessionKeys decodes the session encryption keys. Both are nil when
// encryption is disabled.
func (c *Config) SessionKeys() (active []byte, previous []byte, err error) {
	if c.SessionKey == "" {
		if c.PreviousSessionKey != "" {
			return nil, nil, fmt.Errorf("%w: previous key set without an active key", ErrInvalidSessionKey)
		}
		return nil, nil, nil
	}
	if active, err = decodeKey(c.SessionKey); err != nil {
		return nil, nil, err
	}
	if c.PreviousSessionKey != "" {
		if previous, err = decodeKey(c.PreviousSessionKey); err != nil {
			return nil, nil, err
		}
	}
	return active, previous, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidSessionKey
	}
	return key, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadEnvString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// loadEnvInt reads key from the environment and sets *dst if the value is in
// the range (min, max].
func loadEnvInt(key string, dst *int, min, max int) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	if v <= min || v > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]", key, v, min+1, max)
	}
	*dst = v
	return nil
}

// loadEnvDuration accepts Go durations ("90s", "2m") or whole seconds.
func loadEnvDuration(key string, dst *time.Duration) error {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = d
	return nil
}
