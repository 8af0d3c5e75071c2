// Package config loads the YAML configuration, applies .env and environment
// overrides, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/warp/custody-engine/generic"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "CUSTODY_"

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the engine API.
	Listen string `yaml:"listen" validate:"required"`

	// BackendURL is the base URL of the custody-records backend.
	BackendURL string `yaml:"backend_url" validate:"required,url"`

	// HTTPTimeout bounds one backend request (retries are on top of this).
	HTTPTimeout time.Duration `yaml:"http_timeout" validate:"gt=0"`

	// Timezone is the IANA zone cutovers and "today" are evaluated in.
	Timezone string `yaml:"timezone" validate:"required"`

	// Family holds the two custodians; A owns the Sat-Mon default.
	Family generic.Family `yaml:"family"`

	// SyncMonthsBefore/After define the window range fetched on startup.
	SyncMonthsBefore int `yaml:"sync_months_before" validate:"gte=0,lte=24"`
	SyncMonthsAfter  int `yaml:"sync_months_after" validate:"gte=0,lte=24"`

	// FetchConcurrency caps parallel window fetches; 0 means no cap.
	FetchConcurrency int `yaml:"fetch_concurrency" validate:"gte=0"`

	Log LogConfig `yaml:"log"`

	// DatabasePath is used by the reference backend only.
	DatabasePath string `yaml:"database_path"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Listen:           "127.0.0.1:8080",
		BackendURL:       "http://127.0.0.1:8081",
		HTTPTimeout:      15 * time.Second,
		Timezone:         "UTC",
		SyncMonthsBefore: 1,
		SyncMonthsAfter:  1,
		FetchConcurrency: 4,
		Log:              LogConfig{Level: "info", Format: "console"},
		DatabasePath:     "custody.db",
	}
}

// Load reads path (missing file means defaults), then .env, then
// CUSTODY_* variables, and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from CUSTODY_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := get("BACKEND_URL"); ok {
		c.BackendURL = v
	}
	if v, ok := get("HTTP_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_TIMEOUT: %w", EnvPrefix, err)
		}
		c.HTTPTimeout = d
	}
	if v, ok := get("TIMEZONE"); ok {
		c.Timezone = v
	}
	if v, ok := get("CUSTODIAN_A_ID"); ok {
		c.Family.A.ID = generic.CustodianID(v)
	}
	if v, ok := get("CUSTODIAN_A_NAME"); ok {
		c.Family.A.DisplayName = v
	}
	if v, ok := get("CUSTODIAN_B_ID"); ok {
		c.Family.B.ID = generic.CustodianID(v)
	}
	if v, ok := get("CUSTODIAN_B_NAME"); ok {
		c.Family.B.DisplayName = v
	}
	if v, ok := get("FETCH_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sFETCH_CONCURRENCY: %w", EnvPrefix, err)
		}
		c.FetchConcurrency = n
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.Log.Format = strings.ToLower(v)
	}
	if v, ok := get("DATABASE_PATH"); ok {
		c.DatabasePath = v
	}
	return nil
}

// Validate checks struct tags, the timezone, and that the two custodians
// are distinct.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	if c.Family.A.ID == c.Family.B.ID {
		return fmt.Errorf("invalid config: custodians must have distinct ids (%q)", c.Family.A.ID)
	}
	return nil
}

// Location returns the configured timezone; Validate has checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SyncPeriod is the range fetched on startup, relative to today.
func (c *Config) SyncPeriod(today generic.Date) generic.Period {
	start := generic.StartOfMonth(today.Year(), today.Month()).AddMonths(-c.SyncMonthsBefore)
	end := generic.StartOfMonth(today.Year(), today.Month()).AddMonths(c.SyncMonthsAfter + 1)
	return generic.Period{Start: start, End: end}
}
