// Package config loads process configuration from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every setting the server needs at startup.
type Config struct {
	Port     int
	AppEnv   string
	LogLevel string

	DatabaseURL string

	GeminiAPIKey            string
	GeminiModel             string
	GeminiRequestsPerMinute int

	ClassifierURL       string
	ClassifierToken     string
	ClassifierThreshold float64

	ICD9CodesPath string
	ICD9LookupURL string
}

var (
	once   sync.Once
	cached *Config
	errCfg error
)

// Load reads the environment once and caches the result.
func Load() (*Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msg("Could not read .env file")
		}
		cached, errCfg = FromEnv(os.Getenv)
	})
	return cached, errCfg
}

// FromEnv builds a Config from a lookup function, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:                    8080,
		AppEnv:                  valueOr(getenv("APP_ENV"), "development"),
		LogLevel:                valueOr(getenv("LOG_LEVEL"), "info"),
		DatabaseURL:             getenv("DATABASE_URL"),
		GeminiAPIKey:            getenv("GEMINI_API_KEY"),
		GeminiModel:             valueOr(getenv("GEMINI_MODEL"), "gemini-2.0-flash-001"),
		GeminiRequestsPerMinute: 60,
		ClassifierURL:           getenv("CLASSIFIER_URL"),
		ClassifierToken:         getenv("CLASSIFIER_TOKEN"),
		ClassifierThreshold:     0.3,
		ICD9CodesPath:           valueOr(getenv("ICD9_CODES_PATH"), "data/codes.json"),
		ICD9LookupURL:           valueOr(getenv("ICD9_LOOKUP_URL"), "https://clinicaltables.nlm.nih.gov/api/icd9cm_dx/v3/search"),
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}

	if v := getenv("GEMINI_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid GEMINI_REQUESTS_PER_MINUTE %q", v)
		}
		cfg.GeminiRequestsPerMinute = n
	}

	if v := getenv("CLASSIFIER_THRESHOLD"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t <= 0 || t >= 1 {
			return nil, fmt.Errorf("invalid CLASSIFIER_THRESHOLD %q", v)
		}
		cfg.ClassifierThreshold = t
	}

	// Fall back to the discrete BLUEPRINT_DB_* variables.
	if cfg.DatabaseURL == "" {
		if host := getenv("BLUEPRINT_DB_HOST"); host != "" {
			cfg.DatabaseURL = blueprintDSN(getenv, host)
		}
	}

	return cfg, nil
}

// blueprintDSN builds a postgres URL with the credentials escaped.
func blueprintDSN(getenv func(string) string, host string) string {
	q := url.Values{}
	q.Set("sslmode", valueOr(getenv("BLUEPRINT_DB_SSLMODE"), "disable"))
	q.Set("search_path", valueOr(getenv("BLUEPRINT_DB_SCHEMA"), "public"))

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getenv("BLUEPRINT_DB_USERNAME"), getenv("BLUEPRINT_DB_PASSWORD")),
		Host:     net.JoinHostPort(host, valueOr(getenv("BLUEPRINT_DB_PORT"), "5432")),
		Path:     "/" + getenv("BLUEPRINT_DB_DATABASE"),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Validate reports settings that are required to serve traffic.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL (or BLUEPRINT_DB_HOST) is not set")
	}
	return nil
}

// IsDevelopment reports whether the process runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "local"
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
