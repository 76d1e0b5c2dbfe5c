// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, provider quota, result caching, generator backends, and
// observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-compare-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// QuotaConfig bounds outbound generator calls in two rolling windows.
type QuotaConfig struct {
	PerMinute int // QUOTA_PER_MINUTE
	PerDay    int // QUOTA_PER_DAY
}

// CacheConfig selects and tunes the result cache.
type CacheConfig struct {
	Backend       string        // memory|redis
	TTL           time.Duration // lifetime of a generated payload
	SweepInterval time.Duration // 0 disables the background sweep (memory only)

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// GeneratorConfig selects the generative text backend.
type GeneratorConfig struct {
	Provider    string        // openai|anthropic|static
	Model       string        // provider model id; empty uses the backend default
	Timeout     time.Duration // per-call deadline
	MaxTokens   int
	Temperature float64

	OpenAIAPIKey    string
	AnthropicAPIKey string
	StaticResponse  string // body returned by the static backend
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 60s (generator calls are slow)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver string // sqlite|postgres
	DBPath   string // SQLite path
	DBDSN    string // Postgres DSN

	// Arbitration
	CatalogPath   string // optional Markdown product catalog used to ground prompts
	MaxQueryRunes int

	// Per-client edge rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	Quota     QuotaConfig
	Cache     CacheConfig
	Generator GeneratorConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DBDriver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:   getenv("DB_PATH", "app.db"),
		DBDSN:    getenv("DB_DSN", ""),

		// Arbitration
		CatalogPath:   getenv("CATALOG_PATH", ""),
		MaxQueryRunes: getint("MAX_QUERY_RUNES", 2000),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		Quota: QuotaConfig{
			PerMinute: getint("QUOTA_PER_MINUTE", 60),
			PerDay:    getint("QUOTA_PER_DAY", 1500),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(getenv("CACHE_BACKEND", "memory")),
			TTL:           getdur("CACHE_TTL", 10*time.Minute),
			SweepInterval: getdur("CACHE_SWEEP_INTERVAL", 0),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getint("REDIS_DB", 0),
			RedisPrefix:   getenv("REDIS_PREFIX", "compare:"),
		},
		Generator: GeneratorConfig{
			Provider:        strings.ToLower(getenv("GENERATOR_PROVIDER", "static")),
			Model:           getenv("GENERATOR_MODEL", ""),
			Timeout:         getdur("GENERATOR_TIMEOUT", 45*time.Second),
			MaxTokens:       getint("GENERATOR_MAX_TOKENS", 2048),
			Temperature:     getfloat("GENERATOR_TEMPERATURE", 0.7),
			OpenAIAPIKey:    getenv("OPENAI_API_KEY", ""),
			AnthropicAPIKey: getenv("ANTHROPIC_API_KEY", ""),
			StaticResponse:  getenv("STATIC_RESPONSE", ""),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-compare-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	if c.DBDriver == "postgresql" {
		c.DBDriver = "postgres"
	}
}

// Validate reports every invalid setting at once, joined into one error.
func (c Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		check(true, "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	check(strings.TrimSpace(c.Port) == "", "PORT must not be empty")
	check(c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(c.DBPath) == "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DBDSN) == "", "DB_DSN is required when DB_DRIVER=postgres")
	default:
		check(true, "DB_DRIVER must be one of: sqlite, postgres")
	}
	check(c.MaxQueryRunes <= 0, "MAX_QUERY_RUNES must be > 0")
	check(c.RateRPS < 0, "RATE_RPS must be >= 0")
	check(c.RateBurst < 1, "RATE_BURST must be >= 1")
	check(c.Quota.PerMinute < 1 || c.Quota.PerDay < 1, "QUOTA_PER_MINUTE and QUOTA_PER_DAY must be >= 1")

	errs = append(errs, c.Cache.validate(), c.Generator.validate())

	check(c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errors.Join(errs...)
}

func (c CacheConfig) validate() error {
	var errs []error
	switch c.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when CACHE_BACKEND=redis"))
		}
	default:
		errs = append(errs, errors.New("CACHE_BACKEND must be one of: memory, redis"))
	}
	if c.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be > 0"))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, errors.New("CACHE_SWEEP_INTERVAL must be >= 0"))
	}
	return errors.Join(errs...)
}

func (g GeneratorConfig) validate() error {
	var errs []error
	switch g.Provider {
	case "static":
	case "openai":
		if g.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when GENERATOR_PROVIDER=openai"))
		}
	case "anthropic":
		if g.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when GENERATOR_PROVIDER=anthropic"))
		}
	default:
		errs = append(errs, errors.New("GENERATOR_PROVIDER must be one of: openai, anthropic, static"))
	}
	if g.Timeout <= 0 {
		errs = append(errs, errors.New("GENERATOR_TIMEOUT must be > 0"))
	}
	if g.MaxTokens <= 0 {
		errs = append(errs, errors.New("GENERATOR_MAX_TOKENS must be > 0"))
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		errs = append(errs, errors.New("GENERATOR_TEMPERATURE must be between 0 and 2"))
	}
	return errors.Join(errs...)
}


func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
