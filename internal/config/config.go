// Package config loads process configuration from .env files, the environment and an
// optional YAML tuning file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"stealthcompany.com/symptomcheck/internal/ratelimit"
)

// Store drivers
const (
	DriverSQLite    = "sqlite"
	DriverCouchbase = "couchbase"
)

const providerRateLimitKey = "priaid"

type Config struct {
	APIPort          string
	LogLevel         string
	ElasticsearchURL string

	StoreDriver string
	SQLiteDSN   string
	SQLDebug    bool

	CouchbaseURL      string
	CouchbaseUsername string
	CouchbasePassword string
	CouchbaseBucket   string
	CouchbaseScope    string

	PriaidAuthURI   string
	PriaidAPIURI    string
	PriaidAPIKey    string
	PriaidSecretKey string
	PriaidLanguage  string
	PriaidTimeout   time.Duration

	JWTSecret string

	PersistWorkers    int
	PersistQueueSize  int
	PersistJobTimeout time.Duration

	EnableBusinessMetrics bool
	EnableSystemMetrics   bool

	ProviderRateLimit ratelimit.Config
}

// fileConfig is the optional YAML document named by CONFIG_FILE. Values set there
// override the environment.
type fileConfig struct {
	Persist struct {
		Workers    int           `yaml:"workers"`
		QueueSize  int           `yaml:"queue_size"`
		JobTimeout time.Duration `yaml:"job_timeout"`
	} `yaml:"persist"`
	Priaid struct {
		Language string        `yaml:"language"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"priaid"`
}

// LoadDotEnv loads ../.env then .env, whichever exists first.
func LoadDotEnv() {
	if err := godotenv.Load("../.env"); err == nil {
		return
	}
	log.Info().Msg("Not found .env file in parent directory, trying current directory")
	if err := godotenv.Load(".env"); err != nil {
		log.Info().Msg("Not found .env file in current directory, assuming environment variables are set")
	}
}

// Load reads the environment, then the YAML file named by CONFIG_FILE if any.
func Load() (*Config, error) {
	cfg := &Config{
		APIPort:          getEnvOrDefault("API_PORT", "8080"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		ElasticsearchURL: os.Getenv("ELASTICSEARCH_URL"),

		StoreDriver: strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverSQLite)),
		SQLiteDSN:   getEnvOrDefault("SQLITE_DSN", "file:symptomcheck.db?cache=shared"),
		SQLDebug:    getEnvBool("SQL_DEBUG", false),

		CouchbaseURL:      getEnvOrDefault("COUCHBASE_URL", "couchbase://localhost"),
		CouchbaseUsername: os.Getenv("COUCHBASE_USERNAME"),
		CouchbasePassword: os.Getenv("COUCHBASE_PASSWORD"),
		CouchbaseBucket:   getEnvOrDefault("COUCHBASE_BUCKET", "symptomcheck"),
		CouchbaseScope:    getEnvOrDefault("COUCHBASE_SCOPE", "_default"),

		PriaidAuthURI:   os.Getenv("PRIAID_AUTH_URI"),
		PriaidAPIURI:    strings.TrimRight(os.Getenv("PRIAID_API_URI"), "/"),
		PriaidAPIKey:    os.Getenv("PRIAID_API_KEY"),
		PriaidSecretKey: os.Getenv("PRIAID_SECRET_KEY"),
		PriaidLanguage:  getEnvOrDefault("PRIAID_LANGUAGE", "en-gb"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		EnableBusinessMetrics: getEnvBool("ENABLE_BUSINESS_METRICS", false),
		EnableSystemMetrics:   getEnvBool("ENABLE_SYSTEM_METRICS", false),

		ProviderRateLimit: ratelimit.DefaultConfig(),
	}

	var err error
	if cfg.PriaidTimeout, err = getEnvDuration("PRIAID_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.PersistWorkers, err = getEnvInt("PERSIST_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.PersistQueueSize, err = getEnvInt("PERSIST_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	if cfg.PersistJobTimeout, err = getEnvDuration("PERSIST_JOB_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyYAML(data); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) applyYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.Persist.Workers > 0 {
		c.PersistWorkers = fc.Persist.Workers
	}
	if fc.Persist.QueueSize > 0 {
		c.PersistQueueSize = fc.Persist.QueueSize
	}
	if fc.Persist.JobTimeout > 0 {
		c.PersistJobTimeout = fc.Persist.JobTimeout
	}
	if fc.Priaid.Language != "" {
		c.PriaidLanguage = fc.Priaid.Language
	}
	if fc.Priaid.Timeout > 0 {
		c.PriaidTimeout = fc.Priaid.Timeout
	}

	limits, err := ratelimit.LoadSourceConfigs(data)
	if err != nil {
		return err
	}
	c.ProviderRateLimit = limits.Get(providerRateLimitKey)
	return nil
}

// Validate checks what the API process cannot start without
func (c *Config) Validate() error {
	var errs []error

	if c.PriaidAuthURI == "" || c.PriaidAPIURI == "" {
		errs = append(errs, errors.New("PRIAID_AUTH_URI and PRIAID_API_URI are required"))
	}
	if c.PriaidAPIKey == "" || c.PriaidSecretKey == "" {
		errs = append(errs, errors.New("PRIAID_API_KEY and PRIAID_SECRET_KEY are required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLiteDSN == "" {
			errs = append(errs, errors.New("SQLITE_DSN is required for the sqlite driver"))
		}
	case DriverCouchbase:
		if c.CouchbaseUsername == "" || c.CouchbasePassword == "" {
			errs = append(errs, errors.New("COUCHBASE_USERNAME and COUCHBASE_PASSWORD are required for the couchbase driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid boolean, using default")
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
