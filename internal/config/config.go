// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/onnwee/fizzrank/internal/validate"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port        int      `koanf:"port"`
	Env         string   `koanf:"env"`
	SiteBaseURL string   `koanf:"site_base_url"`
	CORSOrigins []string `koanf:"cors_allowed_origins"`

	// Storage. Both are optional; empty values select in-memory implementations.
	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"`

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Ranking
	RankingCalibrationPath string  `koanf:"ranking_calibration_path"`
	RatingBaselineFallback float64 `koanf:"rating_baseline_fallback"`

	// News
	NewsSearchTerms         []string `koanf:"news_search_terms"`
	NewsFreshnessSeconds    int      `koanf:"news_freshness_seconds"`
	NewsMaxItems            int      `koanf:"news_max_items"`
	NewsFetchTimeoutSeconds int      `koanf:"news_fetch_timeout_seconds"`
	NewsSimilarityThreshold float64  `koanf:"news_similarity_threshold"`
	NewsRetryBackoffSeconds int      `koanf:"news_retry_backoff_seconds"`
	NewsWarmEnabled         bool     `koanf:"news_warm_enabled"`
	NewsLocaleHL            string   `koanf:"news_locale_hl"`
	NewsLocaleGL            string   `koanf:"news_locale_gl"`
	NewsLocaleCEID          string   `koanf:"news_locale_ceid"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingEndpoint     string  `koanf:"tracing_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`

	// S3-compatible object storage for product images
	S3Bucket          string `koanf:"s3_bucket"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3PublicBaseURL   string `koanf:"s3_public_base_url"`
	S3MaxUploadSizeMB int    `koanf:"s3_max_upload_size_mb"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret         = errors.New("JWT_SECRET is required")
	ErrMissingS3Bucket          = errors.New("S3_BUCKET is required")
	ErrMissingS3AccessKeyID     = errors.New("S3_ACCESS_KEY_ID is required")
	ErrMissingS3SecretAccessKey = errors.New("S3_SECRET_ACCESS_KEY is required")
	ErrMissingS3Endpoint        = errors.New("S3_ENDPOINT is required")
	ErrInvalidPort              = errors.New("PORT must be a valid integer between 1 and 65535")
	ErrInvalidNumber            = errors.New("value must be a valid number")
	ErrInvalidThreshold         = errors.New("NEWS_SIMILARITY_THRESHOLD must be in (0, 1]")
	ErrInvalidSamplingRate      = errors.New("TRACING_SAMPLING_RATE must be in [0, 1]")
	ErrInvalidExporter          = errors.New("TRACING_EXPORTER must be otlp-http or otlp-grpc")
	ErrInvalidSiteBaseURL       = errors.New("SITE_BASE_URL is invalid")
	ErrInvalidNewsSetting       = errors.New("news durations and item count must be positive")
)

// Default values for non-secret configuration.
const (
	DefaultPort                    = 8080
	DefaultEnv                     = "development"
	DefaultSiteBaseURL             = "http://localhost:8080"
	DefaultRatingBaselineFallback  = 3.5
	DefaultNewsFreshnessSeconds    = 1800
	DefaultNewsMaxItems            = 10
	DefaultNewsFetchTimeoutSeconds = 10
	DefaultNewsSimilarityThreshold = 0.35
	DefaultNewsRetryBackoffSeconds = 60
	DefaultNewsWarmEnabled         = true
	DefaultNewsLocaleHL            = "en-US"
	DefaultNewsLocaleGL            = "US"
	DefaultNewsLocaleCEID          = "US:en"
	DefaultTracingExporter         = "otlp-http"
	DefaultTracingSamplingRate     = 0.1
	DefaultS3MaxUploadSizeMB       = 10
)

// DefaultNewsSearchTerms are queried when no terms are configured.
func DefaultNewsSearchTerms() []string {
	return []string{
		"sparkling water",
		"seltzer",
		"mineral water brand",
		"flavored sparkling water",
	}
}

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	intVal := func(envKeys []string, key string, def int) int {
		v, err := getEnvIntOrDefaultMulti(envKeys, k.Int(key), def)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}
	floatVal := func(envKey, key string, def float64) float64 {
		v, err := getEnvFloatOrDefault(envKey, k.Float64(key), def)
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"FIZZRANK_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, fmt.Errorf("%w: %v", ErrInvalidPort, portErr))
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:        port,
		Env:         getEnvOrDefaultMulti([]string{"FIZZRANK_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		SiteBaseURL: getEnvOrDefault("SITE_BASE_URL", k.String("site_base_url"), DefaultSiteBaseURL),
		CORSOrigins: getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins", nil),

		DatabaseURL: getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:    getEnvOrKoanf("REDIS_URL", k, "redis_url"),

		JWTSecret:         getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret: getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),

		RankingCalibrationPath: getEnvOrKoanf("RANKING_CALIBRATION_PATH", k, "ranking_calibration_path"),
		RatingBaselineFallback: floatVal("RATING_BASELINE_FALLBACK", "rating_baseline_fallback", DefaultRatingBaselineFallback),

		NewsSearchTerms:         getEnvListOrKoanf("NEWS_SEARCH_TERMS", k, "news_search_terms", DefaultNewsSearchTerms()),
		NewsFreshnessSeconds:    intVal([]string{"NEWS_FRESHNESS_SECONDS"}, "news_freshness_seconds", DefaultNewsFreshnessSeconds),
		NewsMaxItems:            intVal([]string{"NEWS_MAX_ITEMS"}, "news_max_items", DefaultNewsMaxItems),
		NewsFetchTimeoutSeconds: intVal([]string{"NEWS_FETCH_TIMEOUT_SECONDS"}, "news_fetch_timeout_seconds", DefaultNewsFetchTimeoutSeconds),
		NewsSimilarityThreshold: floatVal("NEWS_SIMILARITY_THRESHOLD", "news_similarity_threshold", DefaultNewsSimilarityThreshold),
		NewsRetryBackoffSeconds: intVal([]string{"NEWS_RETRY_BACKOFF_SECONDS"}, "news_retry_backoff_seconds", DefaultNewsRetryBackoffSeconds),
		NewsWarmEnabled:         getEnvBoolOrKoanf("NEWS_WARM_ENABLED", k, "news_warm_enabled", DefaultNewsWarmEnabled),
		NewsLocaleHL:            getEnvOrDefault("NEWS_LOCALE_HL", k.String("news_locale_hl"), DefaultNewsLocaleHL),
		NewsLocaleGL:            getEnvOrDefault("NEWS_LOCALE_GL", k.String("news_locale_gl"), DefaultNewsLocaleGL),
		NewsLocaleCEID:          getEnvOrDefault("NEWS_LOCALE_CEID", k.String("news_locale_ceid"), DefaultNewsLocaleCEID),

		TracingEnabled:      getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:     getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingEndpoint:     getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSamplingRate: floatVal("TRACING_SAMPLING_RATE", "tracing_sampling_rate", DefaultTracingSamplingRate),
		TracingInsecure:     getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure", false),

		S3Bucket:          getEnvOrKoanf("S3_BUCKET", k, "s3_bucket"),
		S3AccessKeyID:     getEnvOrKoanf("S3_ACCESS_KEY_ID", k, "s3_access_key_id"),
		S3SecretAccessKey: getEnvOrKoanf("S3_SECRET_ACCESS_KEY", k, "s3_secret_access_key"),
		S3Endpoint:        getEnvOrKoanf("S3_ENDPOINT", k, "s3_endpoint"),
		S3PublicBaseURL:   getEnvOrKoanf("S3_PUBLIC_BASE_URL", k, "s3_public_base_url"),
		S3MaxUploadSizeMB: intVal([]string{"S3_MAX_UPLOAD_SIZE_MB"}, "s3_max_upload_size_mb", DefaultS3MaxUploadSizeMB),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// NewsFreshness returns the news snapshot freshness window.
func (c *Config) NewsFreshness() time.Duration {
	return time.Duration(c.NewsFreshnessSeconds) * time.Second
}

// NewsFetchTimeout returns the per-feed fetch timeout.
func (c *Config) NewsFetchTimeout() time.Duration {
	return time.Duration(c.NewsFetchTimeoutSeconds) * time.Second
}

// NewsRetryBackoff returns how long a failed refresh suppresses retries.
func (c *Config) NewsRetryBackoff() time.Duration {
	return time.Duration(c.NewsRetryBackoffSeconds) * time.Second
}

// UploadsEnabled reports whether object storage is configured.
func (c *Config) UploadsEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != "" && c.S3Endpoint != ""
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvListOrKoanf reads a comma-separated env var, falling back to a YAML
// list, then to defaultVal. Blank entries are dropped.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string, defaultVal []string) []string {
	var raw []string
	if val := os.Getenv(envKey); val != "" {
		raw = strings.Split(val, ",")
	} else if k.Exists(koanfKey) {
		raw = k.Strings(koanfKey)
	}

	var out []string
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

// getEnvBoolOrKoanf parses a boolean env var (true/1/yes/on, false/0/no/off).
// Unrecognized values are ignored.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	result := defaultVal
	if k.Exists(koanfKey) {
		result = k.Bool(koanfKey)
	}
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			result = true
		case "false", "0", "no", "off":
			result = false
		}
	}
	return result
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
// A zero from a YAML file falls back to the default.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return defaultVal, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidNumber)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return defaultVal, fmt.Errorf("%s must be a valid float: %w", envKey, ErrInvalidNumber)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present and
// in range. Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if _, err := validate.SiteBaseURL(c.SiteBaseURL); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidSiteBaseURL, err))
	}

	if c.NewsSimilarityThreshold <= 0 || c.NewsSimilarityThreshold > 1 {
		errs = append(errs, ErrInvalidThreshold)
	}
	if c.NewsFreshnessSeconds <= 0 || c.NewsMaxItems <= 0 || c.NewsFetchTimeoutSeconds <= 0 || c.NewsRetryBackoffSeconds <= 0 {
		errs = append(errs, ErrInvalidNewsSetting)
	}

	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}
	if c.TracingExporter != "otlp-http" && c.TracingExporter != "otlp-grpc" {
		errs = append(errs, ErrInvalidExporter)
	}

	// S3 configuration is optional. Only validate fields if any S3 value is set.
	if c.S3Bucket != "" || c.S3AccessKeyID != "" || c.S3SecretAccessKey != "" || c.S3Endpoint != "" {
		if c.S3Bucket == "" {
			errs = append(errs, ErrMissingS3Bucket)
		}
		if c.S3AccessKeyID == "" {
			errs = append(errs, ErrMissingS3AccessKeyID)
		}
		if c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3SecretAccessKey)
		}
		if c.S3Endpoint == "" {
			errs = append(errs, ErrMissingS3Endpoint)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                     strconv.Itoa(c.Port),
		"env":                      c.Env,
		"site_base_url":            c.SiteBaseURL,
		"cors_allowed_origins":     strings.Join(c.CORSOrigins, ","),
		"database_url":             maskDatabaseURL(c.DatabaseURL),
		"redis_url":                maskDatabaseURL(c.RedisURL),
		"jwt_secret":               maskSecret(c.JWTSecret),
		"jwt_previous_secret":      maskSecret(c.JWTPreviousSecret),
		"ranking_calibration_path": c.RankingCalibrationPath,
		"rating_baseline_fallback": strconv.FormatFloat(c.RatingBaselineFallback, 'f', -1, 64),
		"news_search_terms":        strings.Join(c.NewsSearchTerms, ","),
		"news_freshness_seconds":   strconv.Itoa(c.NewsFreshnessSeconds),
		"news_max_items":           strconv.Itoa(c.NewsMaxItems),
		"news_similarity":          strconv.FormatFloat(c.NewsSimilarityThreshold, 'f', -1, 64),
		"news_warm_enabled":        strconv.FormatBool(c.NewsWarmEnabled),
		"tracing_enabled":          strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":         c.TracingExporter,
		"tracing_endpoint":         c.TracingEndpoint,
		"s3_bucket":                c.S3Bucket,
		"s3_access_key_id":         maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key":     maskSecret(c.S3SecretAccessKey),
		"s3_endpoint":              c.S3Endpoint,
		"s3_max_upload_size_mb":    strconv.Itoa(c.S3MaxUploadSizeMB),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL (postgres://, redis://).
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
