package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8000/api/", cfg.API.URL)
	require.Equal(t, "token/refresh/", cfg.API.RefreshPath)
	require.Equal(t, "file", cfg.Store.Backend)
	require.Equal(t, 5*time.Minute, cfg.DevAPI.AccessTokenTTL)
	require.Equal(t, 5*time.Minute, cfg.Console.KeepaliveInterval)
}

func TestLoad_EnvOverridesAndNormalizes(t *testing.T) {
	t.Setenv("CONDO_API_URL", "https://condo.example.com/api///")
	t.Setenv("CONDO_STORE_BACKEND", "memory")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "https://condo.example.com/api/", cfg.API.URL)
	require.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  url: http://10.0.0.5:8000/api
  refresh_path: auth/token/refresh/
store:
  backend: redis
  prefix: "console:"
devapi:
  access_token_ttl: 30s
  rotate_refresh: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "http://10.0.0.5:8000/api/", cfg.API.URL)
	require.Equal(t, "auth/token/refresh/", cfg.API.RefreshPath)
	require.Equal(t, "redis", cfg.Store.Backend)
	require.Equal(t, "console:", cfg.Store.Prefix)
	require.Equal(t, 30*time.Second, cfg.DevAPI.AccessTokenTTL)
	require.True(t, cfg.DevAPI.RotateRefresh)
}

func TestLoad_Rejects(t *testing.T) {
	t.Run("bad url", func(t *testing.T) {
		t.Setenv("CONDO_API_URL", "localhost")
		_, err := Load(t.TempDir())
		require.Error(t, err)
	})
	t.Run("bad backend", func(t *testing.T) {
		t.Setenv("CONDO_STORE_BACKEND", "sqlite")
		_, err := Load(t.TempDir())
		require.Error(t, err)
	})
}
