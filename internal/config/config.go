package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const devJWTSecret = "lockbox-dev-secret-change-me"

type Config struct {
	HTTPAddr string
	GRPCAddr string // health service; empty disables it

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/lockbox.db"
	// Size of the read-only pool; writes always use one connection.
	DBReadConns int

	LogLevel string
	Timezone string // IANA name used for recurring windows

	// Lockout
	LockoutThreshold int
	LockoutCooldown  time.Duration

	BcryptCost int

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Rate limit on /v1/access_request, per client IP.
	AccessRatePerMinute int
	AccessRateBurst     int
	TrustedProxies      []string

	HealthInterval time.Duration

	// Dev bootstrap. Ignored in prod.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	DevOpenAllHours        bool
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := FromEnv()
	return cfg, cfg.Validate()
}

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("LOCKBOX_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	secret := os.Getenv("LOCKBOX_JWT_SECRET")
	if secret == "" && env == "dev" {
		secret = devJWTSecret
	}

	return Config{
		HTTPAddr: getenvDefault("LOCKBOX_HTTP_ADDR", ":8080"),
		GRPCAddr: os.Getenv("LOCKBOX_GRPC_ADDR"),
		Env:      env,
		DBPath:   getenvDefault("LOCKBOX_DB_PATH", "./data/lockbox.db"),

		DBReadConns: getenvInt("LOCKBOX_DB_READ_CONNS", 4),

		LogLevel: getenvDefault("LOCKBOX_LOG_LEVEL", "info"),
		Timezone: getenvDefault("LOCKBOX_TIMEZONE", "UTC"),

		LockoutThreshold: getenvInt("LOCKBOX_LOCKOUT_THRESHOLD", 5),
		LockoutCooldown:  getenvDuration("LOCKBOX_LOCKOUT_COOLDOWN", 15*time.Minute),

		BcryptCost: getenvInt("LOCKBOX_BCRYPT_COST", 10),

		JWTSecret: secret,
		TokenTTL:  getenvDuration("LOCKBOX_TOKEN_TTL", 12*time.Hour),

		AccessRatePerMinute: getenvInt("LOCKBOX_ACCESS_RATE_PER_MIN", 30),
		AccessRateBurst:     getenvInt("LOCKBOX_ACCESS_RATE_BURST", 10),
		TrustedProxies:      splitCSV(os.Getenv("LOCKBOX_TRUSTED_PROXIES")),

		HealthInterval: getenvDuration("LOCKBOX_HEALTH_INTERVAL", 15*time.Second),

		BootstrapAdminEmail:    os.Getenv("LOCKBOX_BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword: os.Getenv("LOCKBOX_BOOTSTRAP_ADMIN_PASSWORD"),
		DevOpenAllHours:        getenvBool("LOCKBOX_DEV_OPEN_ALL_HOURS"),
	}
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("LOCKBOX_JWT_SECRET is required in prod")
	}
	if c.Env == "prod" && c.JWTSecret == devJWTSecret {
		return errors.New("LOCKBOX_JWT_SECRET must not be the dev default in prod")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("LOCKBOX_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getenvBool(key string) bool {
	v := os.Getenv(key)
	return strings.EqualFold(v, "true") || v == "1"
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
