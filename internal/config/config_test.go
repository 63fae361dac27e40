package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-saferoute/internal/models"
)

var keys = []string{
	"CONFIG_FILE", "SERVER_HOST", "SERVER_PORT", "GRPC_PORT", "WORKER_COUNT", "WORKER_BUFFER_SIZE",
	"PREDICTION_URL", "PLACES_URL", "DIRECTIONS_URL", "DIRECTIONS_API_KEY",
	"REASONING_URL", "REASONING_API_KEY", "REASONING_MODEL", "REASONING_TIMEOUT", "HTTP_TIMEOUT",
	"SEARCH_RADIUS_METERS", "MAX_FACILITIES", "ROUTING_PROFILE",
	"SESSION_TTL", "SESSION_SWEEP_INTERVAL", "MAX_SESSIONS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every key so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50051, cfg.GRPC.Port)
	assert.Equal(t, 1500, cfg.Search.RadiusMeters)
	assert.Equal(t, 20, cfg.Search.MaxFacilities)
	assert.Equal(t, models.ProfileDriving, cfg.Search.Profile)
	assert.Equal(t, ":memory:", cfg.DB.Path)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.DemoMode())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SEARCH_RADIUS_METERS", "3000")
	t.Setenv("ROUTING_PROFILE", "walking")
	t.Setenv("REASONING_API_KEY", "secret")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3000, cfg.Search.RadiusMeters)
	assert.Equal(t, models.ProfileWalking, cfg.Search.Profile)
	assert.Equal(t, 2*time.Hour, cfg.Sessions.TTL)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.False(t, cfg.DemoMode())
}

func TestLoad_MaxFacilitiesClamped(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_FACILITIES", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Search.MaxFacilities)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, val string
	}{
		{"SERVER_PORT", "70000"},
		{"LOG_LEVEL", "verbose"},
		{"LOG_FORMAT", "xml"},
		{"ROUTING_PROFILE", "flying"},
		{"SEARCH_RADIUS_METERS", "-5"},
		{"SESSION_TTL", "10s"},
		{"RATE_LIMIT_RPS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saferoute.yaml")
	content := `
server_port: 7070
search_radius_meters: 2500
routing_profile: cycling
log_level: debug
rate_limit_rps: 4.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	clearEnv(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SEARCH_RADIUS_METERS", "900")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 900, cfg.Search.RadiusMeters, "environment wins over the file")
	assert.Equal(t, models.ProfileCycling, cfg.Search.Profile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4.5, cfg.RateLimit.RPS)
}

func TestLoad_FileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server_port: [unterminated"), 0o600))
	t.Setenv("CONFIG_FILE", bad)
	_, err = Load()
	assert.Error(t, err)
}
