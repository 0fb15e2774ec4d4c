package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	httpapi "github.com/aussiebroadwan/gatehouse/internal/auth/http"
	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
)

const (
	// BusyTimeout is how long a SQLite writer waits for the write lock.
	BusyTimeout = 5 * time.Second

	// DefaultUpstreamTimeout stays under BusyTimeout because the OIDC code
	// exchange runs inside the callback's write transaction.
	DefaultUpstreamTimeout = 4 * time.Second
)

type Config struct {
	BaseURL      string // Externally visible URL, used to build callback URLs (default: http://localhost:8080)
	DatabaseFile string // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)
	SeedFile     string // Optional: YAML file provisioned into an empty database

	RedisAddr     string // Optional: when set, authorization states live in Redis
	RedisPassword string
	RedisDB       int

	StateTTL        time.Duration // Lifetime of a parked authorization request (default: 10m)
	CodeTTL         time.Duration // Default authorization code lifetime (default: 10m)
	AccessTTL       time.Duration // Default access token lifetime (default: 1h)
	RefreshTTL      time.Duration // Default refresh token lifetime (default: 720h)
	UpstreamTimeout time.Duration // Timeout for calls to OIDC providers (default: 4s)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	RateLimits httpapi.RateLimits
}

// LoadConfig reads the environment, after loading a .env file from the
// working directory when one exists.
func LoadConfig() Config {
	_ = godotenv.Load()

	port := getEnvIntOrDefault("PORT", 8080)
	cfg := Config{
		BaseURL:      getEnvOrDefault("AUTH_BASE_URL", "http://localhost:"+strconv.Itoa(port)),
		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		SeedFile:     os.Getenv("AUTH_SEED_FILE"),

		RedisAddr:     os.Getenv("AUTH_REDIS_ADDR"),
		RedisPassword: os.Getenv("AUTH_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("AUTH_REDIS_DB", 0),

		StateTTL:        getEnvDurationOrDefault("AUTH_STATE_TTL", service.DefaultStateTTL),
		CodeTTL:         getEnvDurationOrDefault("AUTH_CODE_TTL", service.DefaultCodeTTL),
		AccessTTL:       getEnvDurationOrDefault("AUTH_ACCESS_TTL", service.DefaultAccessTTL),
		RefreshTTL:      getEnvDurationOrDefault("AUTH_REFRESH_TTL", service.DefaultRefreshTTL),
		UpstreamTimeout: getEnvDurationOrDefault("AUTH_UPSTREAM_TIMEOUT", DefaultUpstreamTimeout),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 port,
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		RateLimits: httpapi.RateLimits{
			Strict:   getRateLimitOrDefault("STRICT", httpx.StrictLimit),
			Moderate: getRateLimitOrDefault("MODERATE", httpx.ModerateLimit),
			Lenient:  getRateLimitOrDefault("LENIENT", httpx.LenientLimit),
		},
	}

	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

// getRateLimitOrDefault reads RATELIMIT_<profile>_REQUESTS, _WINDOW_SEC and
// _BURST. Setting REQUESTS to 0 disables the profile.
func getRateLimitOrDefault(profile string, defaultValue httpx.RateLimitConfig) httpx.RateLimitConfig {
	prefix := "RATELIMIT_" + profile + "_"

	cfg := httpx.RateLimitConfig{
		Requests: getEnvIntOrDefault(prefix+"REQUESTS", defaultValue.Requests),
		Window:   defaultValue.Window,
		Burst:    getEnvIntOrDefault(prefix+"BURST", defaultValue.Burst),
	}
	if sec := getEnvIntOrDefault(prefix+"WINDOW_SEC", 0); sec > 0 {
		cfg.Window = time.Duration(sec) * time.Second
	}
	return cfg
}
