// config/config.go
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every key when reading environment variables,
// e.g. http_port → MAILCHECK_HTTP_PORT.
const EnvPrefix = "MAILCHECK"

// HTTPConfig groups listener, TLS and timeout settings.
type HTTPConfig struct {
	HTTPPort  int    `mapstructure:"http_port"`
	HTTPSPort int    `mapstructure:"https_port"`
	UseHTTPS  bool   `mapstructure:"use_https"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`

	ReadTimeout       time.Duration `mapstructure:"-"`
	ReadHeaderTimeout time.Duration `mapstructure:"-"`
	WriteTimeout      time.Duration `mapstructure:"-"`
	IdleTimeout       time.Duration `mapstructure:"-"`
	ShutdownTimeout   time.Duration `mapstructure:"-"`
}

// CORSConfig groups all CORS behavior and lists.
type CORSConfig struct {
	EnableCORS           bool     `mapstructure:"enable_cors"`
	CORSAllowedOrigins   []string `mapstructure:"cors_allowed_origins"`
	CORSAllowedMethods   []string `mapstructure:"cors_allowed_methods"`
	CORSAllowedHeaders   []string `mapstructure:"cors_allowed_headers"`
	CORSExposedHeaders   []string `mapstructure:"cors_exposed_headers"`
	CORSAllowCredentials bool     `mapstructure:"cors_allow_credentials"`
	CORSMaxAge           int      `mapstructure:"cors_max_age"`
}

// CoreConfig holds everything the mailcheck service reads at startup.
type CoreConfig struct {
	// runtime
	Env      string `mapstructure:"env"`       // "dev" | "prod"
	LogLevel string `mapstructure:"log_level"` // debug, info, warn, error …

	HTTP HTTPConfig `mapstructure:",squash"`
	CORS CORSConfig `mapstructure:",squash"`

	// HTTP behavior
	MaxRequestBodyBytes int64 `mapstructure:"max_request_body_bytes"`
	MaxBatchSize        int   `mapstructure:"max_batch_size"`
	EnableCompression   bool  `mapstructure:"enable_compression"`

	// per-client rate limiting on /v1; 0 disables
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	// metrics
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	MetricsPath   string `mapstructure:"metrics_path"`

	// profiling (/debug/pprof), guarded by AdminAPIKey
	EnablePprof bool   `mapstructure:"enable_pprof"`
	AdminAPIKey string `mapstructure:"admin_api_key" json:"-"`
}

// Dump returns a pretty JSON string of the config for debugging.
// AdminAPIKey is never included.
func (c CoreConfig) Dump() string {
	b, _ := json.MarshalIndent(c, "", "  ")
	return string(b)
}

// durationKeys maps each duration key to its default.
var durationKeys = []struct {
	key string
	def time.Duration
	set func(*HTTPConfig, time.Duration)
}{
	{"read_timeout", 15 * time.Second, func(h *HTTPConfig, d time.Duration) { h.ReadTimeout = d }},
	{"read_header_timeout", 10 * time.Second, func(h *HTTPConfig, d time.Duration) { h.ReadHeaderTimeout = d }},
	{"write_timeout", 30 * time.Second, func(h *HTTPConfig, d time.Duration) { h.WriteTimeout = d }},
	{"idle_timeout", 60 * time.Second, func(h *HTTPConfig, d time.Duration) { h.IdleTimeout = d }},
	{"shutdown_timeout", 15 * time.Second, func(h *HTTPConfig, d time.Duration) { h.ShutdownTimeout = d }},
}

// RegisterFlags defines every config key as a flag on fs. Call it before
// fs is parsed; Load only honors flags the user set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env", "dev", `Runtime environment "dev"|"prod"`)
	fs.String("log_level", "info", "Log level")

	fs.Int("http_port", 8080, "HTTP port")
	fs.Int("https_port", 443, "HTTPS port")
	fs.Bool("use_https", false, "Serve HTTPS with cert_file/key_file")
	fs.String("cert_file", "", "TLS cert file")
	fs.String("key_file", "", "TLS key file")

	for _, d := range durationKeys {
		fs.String(d.key, d.def.String(), "HTTP "+strings.ReplaceAll(d.key, "_", " ")+` (e.g. "30s", "2m")`)
	}

	fs.Int64("max_request_body_bytes", 1<<20, "Max HTTP request body size in bytes (0 = unlimited)")
	fs.Int("max_batch_size", 1000, "Max number of addresses accepted by /v1/check/batch")
	fs.Bool("enable_compression", true, "Compress JSON responses")
	fs.Float64("rate_limit", 0, "Requests per second allowed per client IP on /v1 (0 = unlimited)")
	fs.Int("rate_limit_burst", 20, "Burst size for rate_limit")

	fs.Bool("enable_metrics", true, "Expose Prometheus metrics")
	fs.String("metrics_path", "/metrics", "Path of the Prometheus endpoint")
	fs.Bool("enable_pprof", false, "Mount /debug/pprof (requires admin_api_key)")
	fs.String("admin_api_key", "", "API key for admin routes such as /debug/pprof")

	fs.Bool("enable_cors", false, "Enable CORS")
	fs.String("cors_allowed_origins", "", `JSON array of origins, e.g. '["https://a.example","https://b.example"]'`)
	fs.String("cors_allowed_methods", "", `JSON array of methods, e.g. '["GET","POST"]'`)
	fs.String("cors_allowed_headers", "", `JSON array of headers, e.g. '["Accept","Content-Type"]'`)
	fs.String("cors_exposed_headers", "", `JSON array of headers, e.g. '["Link"]'`)
	fs.Bool("cors_allow_credentials", false, "CORS: allow credentials")
	fs.Int("cors_max_age", 0, "CORS: max age seconds (0 disables cache)")
}

// Load merges defaults → config.* file(s) → env vars → explicit flags into one CoreConfig.
// Final precedence (highest wins): flags(explicit) > env > config > defaults.
// fs must already be parsed; it may be nil when there are no flags.
func Load(logger *zap.Logger, fs *pflag.FlagSet) (*CoreConfig, error) {
	return loadFrom(logger, fs, ".")
}

func loadFrom(logger *zap.Logger, fs *pflag.FlagSet, dir string) (*CoreConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// 0) Optionally load .env (real env still wins over .env)
	if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
		logger.Info("Loaded .env file")
	}

	// 1) Viper + env
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, k := range allKeys() {
		_ = v.BindEnv(k)
	}

	// 2) Optional config.* files (yaml|yml|json|toml)
	for _, ext := range [...]string{"yaml", "yml", "json", "toml"} {
		file := filepath.Join(dir, "config."+ext)
		if _, err := os.Stat(file); err != nil {
			continue
		}
		b, err := os.ReadFile(file)
		if err != nil {
			logger.Warn("cannot read config file", zap.String("file", file), zap.Error(err))
			continue
		}
		v.SetConfigType(ext)
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			logger.Warn("cannot decode config file", zap.String("file", file), zap.Error(err))
			continue
		}
		logger.Info("Loaded config file", zap.String("file", file))
	}

	// 3) Defaults (lowest precedence)
	setDefaults(v)

	// 4) Apply *explicit* flags (highest precedence)
	if fs != nil {
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				_ = v.BindPFlag(f.Name, f)
			}
		})
	}

	// 5) Normalize list keys (accept JSON strings → []string)
	if err := normalizeListKeys(logger, v,
		"cors_allowed_origins",
		"cors_allowed_methods",
		"cors_allowed_headers",
		"cors_exposed_headers",
	); err != nil {
		return nil, err
	}

	// 6) Build struct
	var cfg CoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode core config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))

	var durErrs []string
	for _, d := range durationKeys {
		dur, err := parseDurationFlexible(v.Get(d.key), d.def)
		if err != nil {
			durErrs = append(durErrs, fmt.Sprintf("%s: %v", d.key, err))
		}
		d.set(&cfg.HTTP, dur)
	}

	// 7) Validate
	if err := validateCoreConfig(cfg, durErrs); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func allKeys() []string {
	keys := []string{
		"env", "log_level",
		"http_port", "https_port", "use_https", "cert_file", "key_file",
		"max_request_body_bytes", "max_batch_size", "enable_compression",
		"rate_limit", "rate_limit_burst",
		"enable_metrics", "metrics_path", "enable_pprof", "admin_api_key",
		"enable_cors",
		"cors_allowed_origins", "cors_allowed_methods", "cors_allowed_headers",
		"cors_exposed_headers", "cors_allow_credentials", "cors_max_age",
	}
	for _, d := range durationKeys {
		keys = append(keys, d.key)
	}
	return keys
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")

	v.SetDefault("http_port", 8080)
	v.SetDefault("https_port", 443)
	v.SetDefault("use_https", false)
	v.SetDefault("cert_file", "")
	v.SetDefault("key_file", "")

	for _, d := range durationKeys {
		v.SetDefault(d.key, d.def.String())
	}

	v.SetDefault("max_request_body_bytes", int64(1<<20))
	v.SetDefault("max_batch_size", 1000)
	v.SetDefault("enable_compression", true)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("rate_limit_burst", 20)

	v.SetDefault("enable_metrics", true)
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("enable_pprof", false)
	v.SetDefault("admin_api_key", "")

	// Neutral CORS defaults
	v.SetDefault("enable_cors", false)
	v.SetDefault("cors_allowed_origins", []string{})
	v.SetDefault("cors_allowed_methods", []string{})
	v.SetDefault("cors_allowed_headers", []string{})
	v.SetDefault("cors_exposed_headers", []string{})
	v.SetDefault("cors_allow_credentials", false)
	v.SetDefault("cors_max_age", 0)
}

// normalizeListKeys coerces JSON-string values into []string for the given keys.
func normalizeListKeys(logger *zap.Logger, v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		val := v.Get(key)
		switch t := val.(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				v.Set(key, []string{})
				continue
			}
			var arr []string
			if err := json.Unmarshal([]byte(s), &arr); err != nil {
				return fmt.Errorf("config key %q expects a JSON array string, got %q: %w", key, s, err)
			}
			v.Set(key, arr)
		case []interface{}:
			arr := make([]string, 0, len(t))
			for _, e := range t {
				arr = append(arr, fmt.Sprint(e))
			}
			v.Set(key, arr)
		case []string, nil:
			// already correct or unset
		default:
			logger.Warn("unexpected type for list key; expected JSON array/string",
				zap.String("key", key), zap.Any("value", t))
		}
	}
	return nil
}

func validateCoreConfig(cfg CoreConfig, durErrs []string) error {
	var missing []string
	invalid := append([]string(nil), durErrs...)

	if cfg.Env != "dev" && cfg.Env != "prod" {
		invalid = append(invalid, `env must be "dev" or "prod"`)
	}

	// Port sanity
	if cfg.HTTP.HTTPPort <= 0 || cfg.HTTP.HTTPPort > 65535 {
		invalid = append(invalid, "http_port must be in 1..65535")
	}
	if cfg.HTTP.UseHTTPS {
		if cfg.HTTP.HTTPSPort <= 0 || cfg.HTTP.HTTPSPort > 65535 {
			invalid = append(invalid, "https_port must be in 1..65535")
		}
		if cfg.HTTP.HTTPPort == cfg.HTTP.HTTPSPort {
			invalid = append(invalid, "http_port and https_port cannot be equal when use_https=true")
		}
		if strings.TrimSpace(cfg.HTTP.CertFile) == "" || strings.TrimSpace(cfg.HTTP.KeyFile) == "" {
			missing = append(missing, "MAILCHECK_CERT_FILE and MAILCHECK_KEY_FILE (or --cert_file/--key_file) for use_https")
		}
	}

	// Request limits
	if cfg.MaxRequestBodyBytes < 0 {
		invalid = append(invalid, "max_request_body_bytes must be >= 0")
	}
	if cfg.MaxBatchSize <= 0 {
		invalid = append(invalid, "max_batch_size must be > 0")
	}
	if cfg.RateLimit < 0 {
		invalid = append(invalid, "rate_limit must be >= 0")
	}
	if cfg.RateLimit > 0 && cfg.RateLimitBurst < 1 {
		invalid = append(invalid, "rate_limit_burst must be >= 1 when rate_limit is set")
	}

	if cfg.EnablePprof && strings.TrimSpace(cfg.AdminAPIKey) == "" {
		missing = append(missing, "MAILCHECK_ADMIN_API_KEY (or --admin_api_key) for enable_pprof")
	}

	if cfg.EnableMetrics && !strings.HasPrefix(cfg.MetricsPath, "/") {
		invalid = append(invalid, `metrics_path must start with "/"`)
	}

	// CORS sanity
	if cfg.CORS.EnableCORS {
		if len(cfg.CORS.CORSAllowedOrigins) == 0 {
			missing = append(missing, "CORS: cors_allowed_origins (JSON array) required when enable_cors=true")
		}
		if len(cfg.CORS.CORSAllowedMethods) == 0 {
			missing = append(missing, "CORS: cors_allowed_methods (JSON array) required when enable_cors=true")
		}
		for _, o := range cfg.CORS.CORSAllowedOrigins {
			if o == "*" && cfg.CORS.CORSAllowCredentials {
				invalid = append(invalid, `CORS: cannot use "*" in cors_allowed_origins when cors_allow_credentials=true`)
				break
			}
		}
		if cfg.CORS.CORSMaxAge < 0 {
			invalid = append(invalid, "CORS: cors_max_age must be >= 0")
		}
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("core configuration errors: %s", strings.Join(parts, " | "))
}
