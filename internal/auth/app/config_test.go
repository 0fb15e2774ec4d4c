package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/service"
	"github.com/aussiebroadwan/gatehouse/pkg/httpx"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env
	for _, k := range []string{"PORT", "AUTH_BASE_URL", "AUTH_REDIS_ADDR", "AUTH_ACCESS_TTL", "AUTH_UPSTREAM_TIMEOUT", "RATELIMIT_STRICT_REQUESTS"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "http://localhost:8080", cfg.BaseURL)
	require.Equal(t, "auth.db", cfg.DatabaseFile)
	require.Empty(t, cfg.RedisAddr)
	require.Equal(t, service.DefaultAccessTTL, cfg.AccessTTL)
	require.Equal(t, service.DefaultStateTTL, cfg.StateTTL)
	require.Equal(t, httpx.StrictLimit, cfg.RateLimits.Strict)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
	require.Equal(t, DefaultUpstreamTimeout, cfg.UpstreamTimeout)
	require.Less(t, cfg.UpstreamTimeout, BusyTimeout)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("AUTH_BASE_URL", "https://auth.example/")
	t.Setenv("AUTH_ACCESS_TTL", "15") // bare minutes
	t.Setenv("AUTH_REFRESH_TTL", "48h")
	t.Setenv("AUTH_REDIS_DB", "not-a-number")
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "1000")
	t.Setenv("RATELIMIT_STRICT_WINDOW_SEC", "30")
	t.Setenv("RATELIMIT_STRICT_BURST", "50")

	cfg := LoadConfig()
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "https://auth.example", cfg.BaseURL)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 48*time.Hour, cfg.RefreshTTL)
	require.Equal(t, 0, cfg.RedisDB)
	require.Equal(t, httpx.RateLimitConfig{Requests: 1000, Window: 30 * time.Second, Burst: 50}, cfg.RateLimits.Strict)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("AUTH_SEED_FILE=/etc/gatehouse/seed.yaml\nPORT=7000\n"), 0o600))
	t.Chdir(dir)

	// Registers restoration, then unsets so .env can fill it in.
	t.Setenv("AUTH_SEED_FILE", "")
	require.NoError(t, os.Unsetenv("AUTH_SEED_FILE"))
	t.Setenv("PORT", "9000")

	cfg := LoadConfig()
	require.Equal(t, "/etc/gatehouse/seed.yaml", cfg.SeedFile)
	require.Equal(t, 9000, cfg.Port, "existing variables win over .env")
}
