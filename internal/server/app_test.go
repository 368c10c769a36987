package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-cms/internal/config"
)

func loadTestConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return &cfg
}

func TestBuildInMemory(t *testing.T) {
	cfg := loadTestConfig(t, `
site:
  base_url: https://magazine.example.com
storage:
  backend: memory
`)
	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/articles", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBuildWithSignatureFileAndLocalStorage(t *testing.T) {
	dir := t.TempDir()
	sigPath := filepath.Join(dir, "crawlers.yaml")
	require.NoError(t, os.WriteFile(sigPath, []byte("version: \"2025-01\"\nsignatures: [MastodonBot]\n"), 0o600))

	cfg := loadTestConfig(t, `
crawlers:
  file: `+sigPath+`
storage:
  backend: local
  local:
    base_dir: `+filepath.Join(dir, "uploads")+`
`)
	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	req := httptest.NewRequest(http.MethodGet, "/api/articles/1", nil)
	req.Header.Set("User-Agent", "MastodonBot/4.2")
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
}

func TestBuildRejectsBadSignatureFile(t *testing.T) {
	cfg := loadTestConfig(t, "crawlers:\n  file: "+filepath.Join(t.TempDir(), "missing.yaml")+"\n")
	_, err := Build(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestSetupAuth(t *testing.T) {
	cfg := loadTestConfig(t, `
auth:
  enabled: true
  supabase_url: https://project.supabase.co
  anon_key: anon
  jwt_secret: secret
`)
	app := NewApp(cfg, zap.NewNop())
	client, verifier, err := setupAuth(app)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.NotNil(t, verifier)

	app.cfg.Auth.Enabled = false
	client, verifier, err = setupAuth(app)
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.Nil(t, verifier)
}

func TestMigrateRequiresDSN(t *testing.T) {
	cfg := loadTestConfig(t, "")
	err := Migrate(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "database.dsn")
}
