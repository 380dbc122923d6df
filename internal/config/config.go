package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teemow/drivedesk/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DRIVEDESK"

// Configuration keys. Flags use the same names.
const (
	KeyConfigFile         = "config"
	KeyAddr               = "addr"
	KeyBaseURL            = "base-url"
	KeyGoogleClientID     = "google-client-id"
	KeyGoogleClientSecret = "google-client-secret"
	KeyScopes             = "scopes"
	KeySessionTimeout     = "session-timeout"
	KeyMaxUploadSize      = "max-upload-size"
	KeyRateLimit          = "rate-limit"
	KeyRateBurst          = "rate-burst"
	KeyAllowInsecureHTTP  = "allow-insecure-http"
	KeyOpenBrowser        = "open-browser"
	KeyMetricsEnabled     = "metrics-enabled"
	KeyMetricsAddr        = "metrics-addr"
	KeyLogLevel           = "log-level"
	KeyLogFormat          = "log-format"
	KeyDriveEndpoint      = "drive-endpoint"
	KeyUploadEndpoint     = "upload-endpoint"
	KeyRevokeEndpoint     = "revoke-endpoint"
)

// Defaults.
const (
	DefaultAddr           = ":8080"
	DefaultBaseURL        = "http://localhost:8080"
	DefaultSessionTimeout = 24 * time.Hour
	DefaultMaxUploadSize  = "32MB"
	DefaultRateLimit      = 10.0
	DefaultRateBurst      = 20
	DefaultMetricsAddr    = ":9090"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = logging.FormatText
)

// Config is the complete server configuration.
type Config struct {
	Addr    string
	BaseURL string

	GoogleClientID     string
	GoogleClientSecret string
	Scopes             []string

	SessionTimeout time.Duration
	MaxUploadSize  int64

	// RateLimit is the sustained requests per second allowed per client IP
	RateLimit float64
	RateBurst int

	// AllowInsecureHTTP permits a plain-http base URL on a non-loopback host
	AllowInsecureHTTP bool

	OpenBrowser bool

	MetricsEnabled bool
	MetricsAddr    string

	LogLevel  string
	LogFormat string

	// Endpoint overrides, empty for the Google defaults
	DriveEndpoint  string
	UploadEndpoint string
	RevokeEndpoint string
}

// RedirectURL is the OAuth callback URL registered with Google.
func (c *Config) RedirectURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/auth/callback"
}

// SecureCookies reports whether session cookies must carry the Secure flag.
func (c *Config) SecureCookies() bool {
	u, err := url.Parse(c.BaseURL)
	return err == nil && u.Scheme == "https"
}

// RegisterFlags adds the server flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfigFile, "", "Path to a YAML config file")
	fs.String(KeyAddr, DefaultAddr, "HTTP listen address")
	fs.String(KeyBaseURL, DefaultBaseURL, "Public base URL; the OAuth redirect is <base-url>/auth/callback")
	fs.String(KeyGoogleClientID, "", "Google OAuth client ID. Can also use GOOGLE_CLIENT_ID env var.")
	fs.String(KeyGoogleClientSecret, "", "Google OAuth client secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	fs.StringSlice(KeyScopes, nil, "OAuth scopes to request (default: full Drive access)")
	fs.Duration(KeySessionTimeout, DefaultSessionTimeout, "Idle time after which a browser session is discarded")
	fs.String(KeyMaxUploadSize, DefaultMaxUploadSize, "Largest accepted upload, e.g. 32MB")
	fs.Float64(KeyRateLimit, DefaultRateLimit, "Requests per second allowed per client IP (0 disables rate limiting)")
	fs.Int(KeyRateBurst, DefaultRateBurst, "Burst size for the per-IP rate limit")
	fs.Bool(KeyAllowInsecureHTTP, false, "WARNING: Allow a plain-http base URL on a non-loopback host")
	fs.Bool(KeyOpenBrowser, false, "Open the base URL in the default browser once the server is listening")
	fs.Bool(KeyMetricsEnabled, true, "Enable the metrics server on a dedicated port")
	fs.String(KeyMetricsAddr, DefaultMetricsAddr, "Metrics server address")
	fs.String(KeyLogLevel, DefaultLogLevel, "Log level: debug, info, warn, error")
	fs.String(KeyLogFormat, DefaultLogFormat, "Log format: text or json")
	fs.String(KeyDriveEndpoint, "", "Override the Drive API base URL")
	fs.String(KeyUploadEndpoint, "", "Override the Drive multipart upload URL")
	fs.String(KeyRevokeEndpoint, "", "Override the OAuth token revocation URL")
}

// Load reads the configuration into a Config. flags may be nil.
func Load(v *viper.Viper, flags *pflag.FlagSet) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, envs := range map[string][]string{
		KeyGoogleClientID:     {"DRIVEDESK_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID"},
		KeyGoogleClientSecret: {"DRIVEDESK_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET"},
		KeyMetricsEnabled:     {"DRIVEDESK_METRICS_ENABLED", "METRICS_ENABLED"},
		KeyMetricsAddr:        {"DRIVEDESK_METRICS_ADDR", "METRICS_ADDR"},
	} {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		Addr:               v.GetString(KeyAddr),
		BaseURL:            strings.TrimRight(v.GetString(KeyBaseURL), "/"),
		GoogleClientID:     v.GetString(KeyGoogleClientID),
		GoogleClientSecret: v.GetString(KeyGoogleClientSecret),
		Scopes:             v.GetStringSlice(KeyScopes),
		SessionTimeout:     v.GetDuration(KeySessionTimeout),
		MaxUploadSize:      int64(v.GetSizeInBytes(KeyMaxUploadSize)),
		RateLimit:          v.GetFloat64(KeyRateLimit),
		RateBurst:          v.GetInt(KeyRateBurst),
		AllowInsecureHTTP:  v.GetBool(KeyAllowInsecureHTTP),
		OpenBrowser:        v.GetBool(KeyOpenBrowser),
		MetricsEnabled:     v.GetBool(KeyMetricsEnabled),
		MetricsAddr:        v.GetString(KeyMetricsAddr),
		LogLevel:           v.GetString(KeyLogLevel),
		LogFormat:          v.GetString(KeyLogFormat),
		DriveEndpoint:      v.GetString(KeyDriveEndpoint),
		UploadEndpoint:     v.GetString(KeyUploadEndpoint),
		RevokeEndpoint:     v.GetString(KeyRevokeEndpoint),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, DefaultAddr)
	v.SetDefault(KeyBaseURL, DefaultBaseURL)
	v.SetDefault(KeySessionTimeout, DefaultSessionTimeout)
	v.SetDefault(KeyMaxUploadSize, DefaultMaxUploadSize)
	v.SetDefault(KeyRateLimit, DefaultRateLimit)
	v.SetDefault(KeyRateBurst, DefaultRateBurst)
	v.SetDefault(KeyMetricsEnabled, true)
	v.SetDefault(KeyMetricsAddr, DefaultMetricsAddr)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
}

// Validate checks the configuration. A missing Google client ID is not an
// error: the server starts with sign-in disabled.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr cannot be empty"))
	}
	if c.AllowInsecureHTTP {
		if err := validateURL(c.BaseURL); err != nil {
			errs = append(errs, err)
		}
	} else if err := ValidateHTTPSRequirement(c.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.GoogleClientID != "" && c.GoogleClientSecret == "" {
		errs = append(errs, errors.New("google-client-secret is required when google-client-id is set"))
	}
	if c.SessionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session-timeout must be positive (got %s)", c.SessionTimeout))
	}
	if c.MaxUploadSize <= 0 {
		errs = append(errs, errors.New("max-upload-size must be positive"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate-limit cannot be negative (got %v)", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("rate-burst must be at least 1 (got %d)", c.RateBurst))
	}
	if c.MetricsEnabled && c.MetricsAddr == "" {
		errs = append(errs, errors.New("metrics-addr cannot be empty when metrics are enabled"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("invalid log-format %q, must be one of: json, text", c.LogFormat))
	}

	return errors.Join(errs...)
}

// ValidateHTTPSRequirement checks that baseURL is https, or http on a
// loopback host. OAuth redirects to a non-local plain-http URL leak the
// authorization code.
func ValidateHTTPSRequirement(baseURL string) error {
	if err := validateURL(baseURL); err != nil {
		return err
	}

	u, _ := url.Parse(baseURL)
	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	}

	return nil
}

func validateURL(baseURL string) error {
	if baseURL == "" {
		return errors.New("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %q. Must be http (localhost only) or https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}

	return nil
}
