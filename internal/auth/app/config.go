package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Issuer   string   // Optional: required iss claim on bearers (default: none)
	Audience []string // Optional: accepted aud values, comma separated (default: none)

	JWTAlgorithm     string // Optional: bearer algorithm (HS256, EdDSA) (default: HS256)
	JWTSecret        string // Required for HS256: shared secret, at least 32 bytes
	JWTPublicKeyFile string // Required for EdDSA: PEM file of accepted public keys

	DatabaseFile   string // Optional: path to SQLite database file (default: ./warden.db)
	SecretKeyPath  string // Optional: key file for sealed verification codes (default: WARDEN_SECRET_KEY or ephemeral)
	RedisURL       string // Optional: shared rate limiter backend (default: in-memory)
	LoginPath      string // Optional: where the route gate sends anonymous visitors (default: /login)
	LandingPath    string // Optional: where the route gate sends non-admins (default: /)
	CookieSecure   bool   // Optional: mark the CSRF cookie Secure (default: true outside dev)
	SessionCookie  string // Optional: cookie carrying the session bearer (default: warden_session)
	BootstrapEmail string // Optional: first admin created when the user table is empty
	BootstrapPass  string // Optional: first admin's password

	RoleCacheTTL        time.Duration // Optional: role cache staleness bound (default: 30s)
	RoleCacheSize       int           // Optional: role cache entry budget (default: 10000)
	VerificationCodeTTL time.Duration // Optional: lifetime of issued codes (default: 15m)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:           os.Getenv("AUTH_ISSUER"),
		Audience:         splitList(os.Getenv("AUTH_AUDIENCE")),
		JWTAlgorithm:     getEnvOrDefault("AUTH_JWT_ALGORITHM", "HS256"),
		JWTSecret:        os.Getenv("AUTH_JWT_SECRET"),
		JWTPublicKeyFile: os.Getenv("AUTH_JWT_PUBLIC_KEY_FILE"),

		DatabaseFile:   getEnvOrDefault("WARDEN_DATABASE_FILE", "warden.db"),
		SecretKeyPath:  os.Getenv("WARDEN_SECRET_KEY_PATH"),
		RedisURL:       os.Getenv("REDIS_URL"),
		LoginPath:      getEnvOrDefault("LOGIN_PATH", "/login"),
		LandingPath:    getEnvOrDefault("LANDING_PATH", "/"),
		SessionCookie:  getEnvOrDefault("SESSION_COOKIE", "warden_session"),
		BootstrapEmail: os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapPass:  os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),

		RoleCacheTTL:        getEnvDurationOrDefault("ROLE_CACHE_TTL", 30*time.Second),
		RoleCacheSize:       getEnvIntOrDefault("ROLE_CACHE_SIZE", 10_000),
		VerificationCodeTTL: getEnvDurationOrDefault("VERIFICATION_CODE_TTL", 15*time.Minute),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	// Plain HTTP is only expected on a developer machine
	cfg.CookieSecure = getEnvBoolOrDefault("COOKIE_SECURE", cfg.Env != "dev" && cfg.Env != "test")

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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
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

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
