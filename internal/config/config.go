package config // package config loads application configuration from environment variables

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// MinSigningKeyBytes is the smallest HS256 key accepted at startup.
const MinSigningKeyBytes = 32

// MaxBcryptCost bounds the password hashing cost so that a single login
// cannot hold a request worker for seconds.
const MaxBcryptCost = 14

// Refresh token store backends.
const (
	RefreshStoreMySQL = "mysql"
	RefreshStoreRedis = "redis"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The struct is built once in main and passed by
// value into constructors; business code never reads the environment.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	DBMigrate       bool          // run embedded migrations at startup
	JWTSecret       []byte        // decoded HS256 signing key
	AccessTTL       time.Duration // access token time‑to‑live
	RefreshTTL      time.Duration // refresh token time‑to‑live
	BcryptCost      int           // bcrypt cost for password hashing
	RefreshStore    string        // "mysql" or "redis"
	CleanupInterval time.Duration // how often expired refresh records are purged
	RabbitURL       string        // AMQP url; empty disables event publishing
	LogDir          string        // directory for the rotated log file (optional)
	LogLevel        string        // debug|info|warn|error
	ShutdownTimeout time.Duration // graceful shutdown budget
}

// Load reads configuration values from a local .env file (if present) and
// the process environment. Every problem is collected so that a
// misconfigured deployment reports all of them at once.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env is fine; real env wins over it

	r := &envReader{}
	cfg := Config{
		Env:             r.str("APP_ENV", "dev"),
		Port:            r.must("APP_PORT"),
		DBUser:          r.must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"),
		DBHost:          r.must("DB_HOST"),
		DBPort:          r.must("DB_PORT"),
		DBName:          r.must("DB_NAME"),
		DBMigrate:       r.boolean("DB_MIGRATE", true),
		JWTSecret:       r.signingKey("JWT_SECRET_BASE64"),
		AccessTTL:       r.duration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:      r.duration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		BcryptCost:      r.integer("BCRYPT_COST", bcrypt.DefaultCost+2),
		RefreshStore:    strings.ToLower(r.str("REFRESH_STORE", RefreshStoreMySQL)),
		CleanupInterval: r.duration("REFRESH_CLEANUP_INTERVAL", time.Hour),
		RabbitURL:       os.Getenv("RABBITMQ_URL"),
		LogDir:          os.Getenv("LOG_DIR"),
		LogLevel:        r.str("LOG_LEVEL", "info"),
		ShutdownTimeout: r.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.BcryptCost < bcrypt.MinCost {
		cfg.BcryptCost = bcrypt.MinCost
	}
	if cfg.BcryptCost > MaxBcryptCost {
		cfg.BcryptCost = MaxBcryptCost
	}
	if cfg.AccessTTL <= 0 {
		r.fail(fmt.Errorf("ACCESS_TOKEN_TTL must be positive"))
	}
	if cfg.RefreshTTL <= 0 {
		r.fail(fmt.Errorf("REFRESH_TOKEN_TTL must be positive"))
	}
	if cfg.CleanupInterval <= 0 {
		r.fail(fmt.Errorf("REFRESH_CLEANUP_INTERVAL must be positive"))
	}
	if cfg.ShutdownTimeout <= 0 {
		r.fail(fmt.Errorf("SHUTDOWN_TIMEOUT must be positive"))
	}
	if cfg.RefreshStore != RefreshStoreMySQL && cfg.RefreshStore != RefreshStoreRedis {
		r.fail(fmt.Errorf("REFRESH_STORE must be %q or %q, got %q", RefreshStoreMySQL, RefreshStoreRedis, cfg.RefreshStore))
	}

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envReader accumulates lookup failures instead of exiting on the first one.
type envReader struct {
	errs []error
}

func (r *envReader) fail(err error) { r.errs = append(r.errs, err) }

// must retrieves the value of a required environment variable.
func (r *envReader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		r.fail(fmt.Errorf("missing required env var: %s", key))
		return ""
	}
	return v
}

func (r *envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(fmt.Errorf("invalid int for %s: %q", key, v))
		return def
	}
	return n
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(fmt.Errorf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}

func (r *envReader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(fmt.Errorf("invalid bool for %s: %q", key, v))
		return def
	}
	return b
}

// signingKey decodes a required base64 HMAC secret.
func (r *envReader) signingKey(key string) []byte {
	raw := r.must(key)
	if raw == "" {
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		r.fail(fmt.Errorf("%s is not valid base64: %w", key, err))
		return nil
	}
	if len(b) < MinSigningKeyBytes {
		r.fail(fmt.Errorf("%s must decode to at least %d bytes, got %d", key, MinSigningKeyBytes, len(b)))
		return nil
	}
	return b
}
