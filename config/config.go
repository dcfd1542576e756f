package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// Config holds all application configuration
type Config struct {
	// HTTP Server
	HTTPAddr       string
	MaxUploadSize  int64         // Largest accepted upload body in bytes
	UploadTokens   bool          // Require a single-use token for uploads
	UploadTokenTTL time.Duration // Default lifetime of upload tokens

	// Storage
	StorageType   string // "local" or "gcs"
	StorageDir    string
	GCSProjectID  string
	GCSBucketName string
	GCSBaseDir    string
	SignedURLTTL  time.Duration // Lifetime of signed URLs handed to ffprobe

	// Probe
	FFprobePath         string
	ProbeTimeout        time.Duration
	MaxConcurrentProbes int

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"
}

// fileConfig mirrors Config for the optional YAML file. Durations are
// strings in Go duration syntax, e.g. "90s".
type fileConfig struct {
	HTTPAddr            string `yaml:"http_addr"`
	MaxUploadSize       int64  `yaml:"max_upload_size"`
	UploadTokens        *bool  `yaml:"upload_tokens"`
	UploadTokenTTL      string `yaml:"upload_token_ttl"`
	StorageType         string `yaml:"storage_type"`
	StorageDir          string `yaml:"storage_dir"`
	GCSProjectID        string `yaml:"gcs_project_id"`
	GCSBucketName       string `yaml:"gcs_bucket_name"`
	GCSBaseDir          string `yaml:"gcs_base_dir"`
	SignedURLTTL        string `yaml:"signed_url_ttl"`
	FFprobePath         string `yaml:"ffprobe_path"`
	ProbeTimeout        string `yaml:"probe_timeout"`
	MaxConcurrentProbes int    `yaml:"max_concurrent_probes"`
	LogLevel            string `yaml:"log_level"`
	LogFormat           string `yaml:"log_format"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		HTTPAddr:            ":8080",
		MaxUploadSize:       2 << 30, // 2 GiB
		UploadTokenTTL:      15 * time.Minute,
		StorageType:         "local",
		StorageDir:          "./data/media",
		GCSBaseDir:          "media",
		SignedURLTTL:        15 * time.Minute,
		FFprobePath:         "ffprobe",
		ProbeTimeout:        5 * time.Minute,
		MaxConcurrentProbes: 4,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if set, then environment variables
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	switch c.StorageType {
	case "local":
		if c.StorageDir == "" {
			return fmt.Errorf("STORAGE_DIR must be set when STORAGE_TYPE=local")
		}
	case "gcs":
		if c.GCSProjectID == "" || c.GCSBucketName == "" {
			return fmt.Errorf("GCS_PROJECT_ID and GCS_BUCKET_NAME must be set when STORAGE_TYPE=gcs")
		}
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q", c.StorageType)
	}

	if c.MaxConcurrentProbes <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_PROBES must be positive, got %d", c.MaxConcurrentProbes)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	if c.UploadTokens && c.UploadTokenTTL <= 0 {
		return fmt.Errorf("UPLOAD_TOKEN_TTL must be positive when UPLOAD_TOKENS is enabled")
	}
	if c.ProbeTimeout < 0 {
		return fmt.Errorf("PROBE_TIMEOUT must not be negative")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}

	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.UnmarshalWithOptions(data, &fc, yaml.Strict()); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.StorageType, fc.StorageType)
	setString(&c.StorageDir, fc.StorageDir)
	setString(&c.GCSProjectID, fc.GCSProjectID)
	setString(&c.GCSBucketName, fc.GCSBucketName)
	setString(&c.GCSBaseDir, fc.GCSBaseDir)
	setString(&c.FFprobePath, fc.FFprobePath)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)

	if fc.MaxUploadSize != 0 {
		c.MaxUploadSize = fc.MaxUploadSize
	}
	if fc.MaxConcurrentProbes != 0 {
		c.MaxConcurrentProbes = fc.MaxConcurrentProbes
	}
	if fc.UploadTokens != nil {
		c.UploadTokens = *fc.UploadTokens
	}

	durations := []struct {
		raw string
		dst *time.Duration
	}{
		{fc.SignedURLTTL, &c.SignedURLTTL},
		{fc.ProbeTimeout, &c.ProbeTimeout},
		{fc.UploadTokenTTL, &c.UploadTokenTTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		*d.dst = parsed
	}

	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.MaxUploadSize = getInt64Env("MAX_UPLOAD_SIZE", c.MaxUploadSize)
	c.UploadTokens = getBoolEnv("UPLOAD_TOKENS", c.UploadTokens)
	c.UploadTokenTTL = getDurationEnv("UPLOAD_TOKEN_TTL", c.UploadTokenTTL)
	c.StorageType = strings.ToLower(getEnv("STORAGE_TYPE", c.StorageType))
	c.StorageDir = getEnv("STORAGE_DIR", c.StorageDir)
	c.GCSProjectID = getEnv("GCS_PROJECT_ID", c.GCSProjectID)
	c.GCSBucketName = getEnv("GCS_BUCKET_NAME", c.GCSBucketName)
	c.GCSBaseDir = getEnv("GCS_BASE_DIR", c.GCSBaseDir)
	c.SignedURLTTL = getDurationEnv("SIGNED_URL_TTL", c.SignedURLTTL)
	c.FFprobePath = getEnv("FFPROBE_PATH", c.FFprobePath)
	c.ProbeTimeout = getDurationEnv("PROBE_TIMEOUT", c.ProbeTimeout)
	c.MaxConcurrentProbes = getIntEnv("MAX_CONCURRENT_PROBES", c.MaxConcurrentProbes)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", c.LogFormat))
}

// Helper functions to get environment variables with defaults

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
