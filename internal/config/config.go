package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	SQLitePath     string
	LogLevel       slog.Level
	JWTSecret      string
	JWTTTL         time.Duration
	Users          map[string]string
	AdminEmails    []string
	IdempotencyTTL time.Duration
	AllowedOrigins []string

	// ReconcileInterval paces the background roster refresh and cache sweep.
	ReconcileInterval time.Duration
}

// UsePostgres reports whether a Postgres DSN is configured; otherwise the
// local sqlite store is used.
func (c *Config) UsePostgres() bool { return c.DatabaseURL != "" }

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ttlMinutes, err := getEnvAsInt("JWT_TTL_MINUTES", 720)
	if err != nil {
		return nil, err
	}
	idemSeconds, err := getEnvAsInt("IDEMPOTENCY_TTL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	reconcileSeconds, err := getEnvAsInt("RECONCILE_INTERVAL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	users, err := parseUsers(os.Getenv("AUTH_USERS"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", "agent-queue.db"),
		LogLevel:       level,
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         time.Duration(ttlMinutes) * time.Minute,
		Users:          users,
		AdminEmails:    splitList(getEnv("ADMIN_EMAILS", "admin@admin.com")),
		IdempotencyTTL: time.Duration(idemSeconds) * time.Second,
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),

		ReconcileInterval: time.Duration(reconcileSeconds) * time.Second,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, val)
	}
	return parsed, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return l, nil
}

// parseUsers reads "email:bcrypt-hash,email:bcrypt-hash". Hashes contain '$'
// but never ':' so the first colon splits.
func parseUsers(s string) (map[string]string, error) {
	users := map[string]string{}
	for _, entry := range splitList(s) {
		email, hash, ok := strings.Cut(entry, ":")
		if !ok || email == "" || hash == "" {
			return nil, fmt.Errorf("invalid AUTH_USERS entry %q", entry)
		}
		users[email] = hash
	}
	return users, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
