package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DATABASE_URL", "SQLITE_PATH", "LOG_LEVEL", "JWT_SECRET",
		"JWT_TTL_MINUTES", "AUTH_USERS", "ADMIN_EMAILS", "IDEMPOTENCY_TTL_SECONDS", "ALLOWED_ORIGINS", "RECONCILE_INTERVAL_SECONDS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.UsePostgres())
	assert.Equal(t, "agent-queue.db", cfg.SQLitePath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 720*time.Minute, cfg.JWTTTL)
	assert.Equal(t, time.Minute, cfg.IdempotencyTTL)
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, []string{"admin@admin.com"}, cfg.AdminEmails)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.Users)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/queue")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AUTH_USERS", "ana@call.com:$2a$10$abc, bia@call.com:$2a$10$def")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:5173, https://painel.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, map[string]string{"ana@call.com": "$2a$10$abc", "bia@call.com": "$2a$10$def"}, cfg.Users)
	assert.Equal(t, []string{"http://localhost:5173", "https://painel.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "ttl not a number", key: "JWT_TTL_MINUTES", val: "soon"},
		{name: "negative idempotency ttl", key: "IDEMPOTENCY_TTL_SECONDS", val: "-5"},
		{name: "unknown log level", key: "LOG_LEVEL", val: "loud"},
		{name: "zero reconcile interval", key: "RECONCILE_INTERVAL_SECONDS", val: "0"},
		{name: "user without hash", key: "AUTH_USERS", val: "ana@call.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
