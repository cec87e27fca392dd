package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Drivers accepted in DB_DRIVER.
var validDrivers = []string{"mysql", "postgres", "sqlite"}

type Config struct {
	// Destination database.
	DatabaseURL string
	Driver      string // "mysql" (default), "postgres" or "sqlite"

	// Inference and loading.
	ConfigDir             string  // directory holding <table>.json configs
	PolicyFile            string  // optional path to policy YAML
	BatchSize             int     // rows per transaction, default 1000
	SampleSize            int     // values sampled per column for special type detection
	SpecialTypeThreshold  float64 // fraction of samples that must match, (0, 1]
	SinglePrecisionFloats bool

	// Query surface.
	MaxRows      int
	QueryTimeout time.Duration
	MaskPII      bool

	// Logging.
	LogLevel  slog.Level
	LogFormat string // "json" (default) or "text"

	// Transport for `serve`.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http

	// Observability.
	OTelEnabled     bool
	OTelSampleRatio float64 // root span sampling, (0, 1]
	AuditLog        string  // path to NDJSON audit log file

	// Export sink.
	Bitable Bitable
}

// Bitable holds credentials for the spreadsheet-table export sink.
type Bitable struct {
	AppID     string
	AppSecret string
	AppToken  string
	BaseURL   string
}

// Configured reports whether export credentials are present.
func (b Bitable) Configured() bool {
	return b.AppID != "" && b.AppSecret != "" && b.AppToken != ""
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL     *string
	Driver          *string
	ConfigDir       *string
	PolicyFile      *string
	BatchSize       *int
	SampleSize      *int
	Threshold       *float64
	MaxRows         *int
	QueryTimeout    *time.Duration
	LogLevel        *string
	LogFormat       *string
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	OTelEnabled     bool
	MaskPII         bool
	AuditLog        string

	// Offline is set by commands that never open the destination store;
	// DATABASE_URL is then optional.
	Offline bool

	// EnvFile is loaded before the process environment is read. Empty means
	// ".env" in the working directory, skipped when absent.
	EnvFile string
}

// Load builds a Config from an optional .env file and environment variables,
// then applies CLI overrides, then validates the result.
func Load(overrides Overrides) (*Config, error) {
	if err := loadEnvFile(overrides.EnvFile); err != nil {
		return nil, err
	}

	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg, overrides.Offline); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads KEY=value pairs without overriding variables already set.
func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	switch {
	case err == nil:
		return nil
	case !explicit && errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		Driver:               "mysql",
		ConfigDir:            "configs",
		BatchSize:            1000,
		SampleSize:           1000,
		SpecialTypeThreshold: 1.0,
		MaxRows:              100,
		QueryTimeout:         30 * time.Second,
		LogLevel:             slog.LevelInfo,
		LogFormat:            "json",
		Transport:            "stdio",
		HTTPAddr:             ":8080",
		OTelSampleRatio:      1,
		Bitable: Bitable{
			BaseURL: "https://open.feishu.cn",
		},
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("CONFIG_DIR"); v != "" {
		cfg.ConfigDir = v
	}
	cfg.PolicyFile = os.Getenv("POLICY_FILE")

	var err error
	if cfg.BatchSize, err = envPositiveInt("BATCH_SIZE", cfg.BatchSize); err != nil {
		return err
	}
	if cfg.SampleSize, err = envPositiveInt("SAMPLE_SIZE", cfg.SampleSize); err != nil {
		return err
	}
	if cfg.MaxRows, err = envPositiveInt("MAX_ROWS", cfg.MaxRows); err != nil {
		return err
	}

	if v := os.Getenv("SPECIAL_TYPE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SPECIAL_TYPE_THRESHOLD value %q: %w", v, err)
		}
		cfg.SpecialTypeThreshold = f
	}

	if cfg.SinglePrecisionFloats, err = envBool("SINGLE_PRECISION_FLOATS", cfg.SinglePrecisionFloats); err != nil {
		return err
	}
	if cfg.MaskPII, err = envBool("MASK_PII", cfg.MaskPII); err != nil {
		return err
	}
	if cfg.OTelEnabled, err = envBool("OTEL_ENABLED", cfg.OTelEnabled); err != nil {
		return err
	}

	if v := os.Getenv("OTEL_SAMPLE_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid OTEL_SAMPLE_RATIO value %q: %w", v, err)
		}
		cfg.OTelSampleRatio = f
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.HTTPBearerToken = os.Getenv("HTTP_BEARER_TOKEN")
	cfg.AuditLog = os.Getenv("AUDIT_LOG")

	loadBitableEnvVars(cfg)
	return nil
}

func loadBitableEnvVars(cfg *Config) {
	cfg.Bitable.AppID = os.Getenv("BITABLE_APP_ID")
	cfg.Bitable.AppSecret = os.Getenv("BITABLE_APP_SECRET")
	cfg.Bitable.AppToken = os.Getenv("BITABLE_APP_TOKEN")
	if v := os.Getenv("BITABLE_BASE_URL"); v != "" {
		cfg.Bitable.BaseURL = strings.TrimRight(v, "/")
	}
}

func envPositiveInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be a positive integer", name, v)
	}
	return n, nil
}

func envBool(name string, fallback bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	return b, nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.Driver != nil {
		cfg.Driver = strings.ToLower(*o.Driver)
	}
	if o.ConfigDir != nil {
		cfg.ConfigDir = *o.ConfigDir
	}
	if o.PolicyFile != nil {
		cfg.PolicyFile = *o.PolicyFile
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.LogFormat != nil {
		cfg.LogFormat = strings.ToLower(*o.LogFormat)
	}

	if err := applyLimitOverrides(cfg, o); err != nil {
		return err
	}

	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}
	if o.AuditLog != "" {
		cfg.AuditLog = o.AuditLog
	}
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled
	cfg.MaskPII = cfg.MaskPII || o.MaskPII

	return nil
}

// applyLimitOverrides applies the numeric CLI flags.
func applyLimitOverrides(cfg *Config, o Overrides) error {
	if o.BatchSize != nil {
		if *o.BatchSize <= 0 {
			return fmt.Errorf("invalid --batch-size value: must be a positive integer")
		}
		cfg.BatchSize = *o.BatchSize
	}
	if o.SampleSize != nil {
		if *o.SampleSize <= 0 {
			return fmt.Errorf("invalid --sample-size value: must be a positive integer")
		}
		cfg.SampleSize = *o.SampleSize
	}
	if o.Threshold != nil {
		cfg.SpecialTypeThreshold = *o.Threshold
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("invalid --max-rows value: must be a positive integer")
		}
		cfg.MaxRows = *o.MaxRows
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config, offline bool) error {
	if cfg.DatabaseURL == "" && !offline {
		return fmt.Errorf("DATABASE_URL is required (set via env var or --database-url flag)")
	}

	if !isValidDriver(cfg.Driver) {
		return fmt.Errorf("invalid DB_DRIVER value %q: must be one of %s", cfg.Driver, strings.Join(validDrivers, ", "))
	}

	if cfg.SpecialTypeThreshold <= 0 || cfg.SpecialTypeThreshold > 1 {
		return fmt.Errorf("invalid SPECIAL_TYPE_THRESHOLD value %v: must be in (0, 1]", cfg.SpecialTypeThreshold)
	}

	if cfg.OTelSampleRatio <= 0 || cfg.OTelSampleRatio > 1 {
		return fmt.Errorf("invalid OTEL_SAMPLE_RATIO value %v: must be in (0, 1]", cfg.OTelSampleRatio)
	}

	if cfg.QueryTimeout <= 0 {
		return fmt.Errorf("invalid QUERY_TIMEOUT value %s: must be positive", cfg.QueryTimeout)
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT value %q: must be \"json\" or \"text\"", cfg.LogFormat)
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	return nil
}

func isValidDriver(d string) bool {
	for _, v := range validDrivers {
		if d == v {
			return true
		}
	}
	return false
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
