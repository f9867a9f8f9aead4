package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 256, cfg.NotifyQueueSize)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Len(t, cfg.AllowedOrigins, 2)
	assert.Equal(t, SettlementPolicy{}, cfg.Policy)
}

func TestLoad_Production(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com , https://b.example.com ,")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DATABASE_DRIVER", "mysql"},
		{"STORAGE_DRIVER", "redis"},
		{"GATEWAY_TIMEOUT", "soon"},
		{"NOTIFY_WORKERS", "many"},
		{"DEFAULT_CURRENCY", "EURO"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv("APP_ENV", "development")
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_DatabaseURLFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")
	t.Setenv("POSTGRESQL_HOST", "db")
	t.Setenv("POSTGRESQL_USER", "app")
	t.Setenv("POSTGRESQL_PASSWORD", "p@ss")
	t.Setenv("POSTGRESQL_DBNAME", "settlement")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app:p%40ss@db:5432/settlement?sslmode=disable", cfg.DatabaseURL)
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_revisions: 3\nmax_proof_rejections: 2\nescalate_on_limit: true\n"), 0o600))

	t.Setenv("SETTLEMENT_POLICY_FILE", path)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SettlementPolicy{MaxRevisions: 3, MaxProofRejections: 2, EscalateOnLimit: true}, cfg.Policy)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("max_revisions: -1\n"), 0o600))
	_, err = LoadPolicy(bad)
	assert.Error(t, err)

	_, err = LoadPolicy(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
