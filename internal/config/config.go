// Package config loads the ingestion configuration from a yaml file with
// .env and environment-variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/utility-ingest/internal/octopus"
	"github.com/ignite/utility-ingest/internal/tado"
)

// Config holds all configuration for the application
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Octopus  OctopusConfig  `yaml:"octopus"`
	Tado     TadoConfig     `yaml:"tado"`
	Backfill BackfillConfig `yaml:"backfill"`
	LogLevel string         `yaml:"log_level"`
}

// StorageConfig holds S3 object-store configuration. ConsumptionPrefix and
// HeatingPrefix are the two key namespaces; each carries its own cursor
// document.
type StorageConfig struct {
	S3Bucket          string `yaml:"s3_bucket"`
	AWSRegion         string `yaml:"aws_region"`
	AWSProfile        string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	ConsumptionPrefix string `yaml:"consumption_prefix"`
	HeatingPrefix     string `yaml:"heating_prefix"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return "" // Use default credential chain (IAM role)
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// OctopusConfig holds Octopus Energy API configuration
type OctopusConfig struct {
	Enabled        bool            `yaml:"enabled"`
	APIKey         string          `yaml:"api_key"`
	AccountNumber  string          `yaml:"account_number"`
	BaseURL        string          `yaml:"base_url"`
	TimeoutSeconds int             `yaml:"timeout_seconds"`
	Meters         []octopus.Meter `yaml:"meters"`
}

// Timeout returns the configured timeout as a duration
func (c OctopusConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TadoConfig holds Tado API configuration
type TadoConfig struct {
	Enabled        bool          `yaml:"enabled"`
	HomeID         string        `yaml:"home_id"`
	ClientID       string        `yaml:"client_id"`
	BaseURL        string        `yaml:"base_url"`
	TokenURL       string        `yaml:"token_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Devices        []tado.Device `yaml:"devices"`
}

// Timeout returns the configured timeout as a duration
func (c TadoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackfillConfig holds historical backfill configuration
type BackfillConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "eu-west-2"
	}
	if cfg.Storage.ConsumptionPrefix == "" {
		cfg.Storage.ConsumptionPrefix = "consumption"
	}
	if cfg.Storage.HeatingPrefix == "" {
		cfg.Storage.HeatingPrefix = "heating"
	}
	if cfg.Octopus.TimeoutSeconds == 0 {
		cfg.Octopus.TimeoutSeconds = 30
	}
	if cfg.Tado.TimeoutSeconds == 0 {
		cfg.Tado.TimeoutSeconds = 30
	}
	if cfg.Backfill.MaxWorkers == 0 {
		cfg.Backfill.MaxWorkers = 7
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if v := os.Getenv("OCTOPUS_API_KEY"); v != "" {
		cfg.Octopus.APIKey = v
	}
	if v := os.Getenv("OCTOPUS_ACCOUNT_NUMBER"); v != "" {
		cfg.Octopus.AccountNumber = v
	}
	if v := os.Getenv("OCTOPUS_BASE_URL"); v != "" {
		cfg.Octopus.BaseURL = v
	}
	if v := os.Getenv("TADO_HOME_ID"); v != "" {
		cfg.Tado.HomeID = v
	}
	if v := os.Getenv("TADO_CLIENT_ID"); v != "" {
		cfg.Tado.ClientID = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("AWS_REGION_OVERRIDE"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Source kill switches for degraded runs
	if boolEnv("SKIP_OCTOPUS") {
		cfg.Octopus.Enabled = false
	}
	if boolEnv("SKIP_TADO") {
		cfg.Tado.Enabled = false
	}

	// Stream definitions as JSON. Parsing is strict: a malformed document
	// fails the load rather than guessing at the intended keys.
	if v := os.Getenv("METERS_JSON"); v != "" {
		var meters []octopus.Meter
		if err := json.Unmarshal([]byte(v), &meters); err != nil {
			return nil, fmt.Errorf("parsing METERS_JSON: %w", err)
		}
		cfg.Octopus.Meters = meters
	}
	if v := os.Getenv("TADO_DEVICES_JSON"); v != "" {
		var devices []tado.Device
		if err := json.Unmarshal([]byte(v), &devices); err != nil {
			return nil, fmt.Errorf("parsing TADO_DEVICES_JSON: %w", err)
		}
		cfg.Tado.Devices = devices
	}

	return cfg, nil
}

func boolEnv(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes", "YES":
		return true
	}
	return false
}
