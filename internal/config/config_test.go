package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "hrflow", cfg.Database.DBName)
	assert.Equal(t, "dev-secret", cfg.Auth.Secret)
	assert.Equal(t, []string{"hr_admin", "system_admin"}, cfg.Permission.AdminRoles)
	assert.Equal(t, 3, cfg.Permission.OrgMaxDepth)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
env: production
server:
  port: 9090
  rate_limit_rps: 50
database:
  dbname: hrflow_prod
auth:
  secret: super-secret
permission:
  admin_roles:
    - hr_admin
  org_max_depth: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.True(t, IsProduction(cfg))
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, float64(50), cfg.Server.RateLimitRPS)
	assert.Equal(t, "hrflow_prod", cfg.Database.DBName)
	assert.Equal(t, "super-secret", cfg.Auth.Secret)
	assert.Equal(t, []string{"hr_admin"}, cfg.Permission.AdminRoles)
	assert.Equal(t, 5, cfg.Permission.OrgMaxDepth)
	// 未覆盖的字段保留默认值
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "7070")
	t.Setenv("APP_AUTH_SECRET", "env-secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Auth.Secret)
}

func TestIsProductionNil(t *testing.T) {
	assert.False(t, IsProduction(nil))
}
