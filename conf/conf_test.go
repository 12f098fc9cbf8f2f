package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/internal/store"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.APIServer.Host)
	require.Equal(t, 8090, cfg.APIServer.Port)
	require.Equal(t, "arbiter", cfg.APIServer.Name)
	require.Equal(t, 30*time.Second, cfg.APIServer.RequestTimeout)

	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, store.BackendMemory, cfg.Store.Backend)

	require.Equal(t, 8, cfg.Check.Shards)
	require.Equal(t, 5*time.Second, cfg.Check.QueryTimeout)
	require.Equal(t, 8, cfg.Check.ShardWorkers)

	require.Equal(t, 256, cfg.Traces.BufferSize)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	config := `
server:
  port: 9090
  debug: true
policy:
  path: /etc/arbiter/policy.yml
  rules_dir: /etc/arbiter/rules
check:
  shards: 16
  query_timeout: 250ms
  default_tenant: acme
  tenant_assignments:
    heavy-tenant: 3
auth:
  api_keys:
    - name: frontend
      key: ak-frontend
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arbiter.yml"), []byte(config), 0o600))

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.APIServer.Port)
	require.True(t, cfg.APIServer.Debug)

	require.Equal(t, "/etc/arbiter/policy.yml", cfg.Policy.Path)
	require.Equal(t, "/etc/arbiter/rules", cfg.Policy.RulesDir)

	require.Equal(t, 16, cfg.Check.Shards)
	require.Equal(t, 250*time.Millisecond, cfg.Check.QueryTimeout)
	require.Equal(t, "acme", cfg.Check.DefaultTenant)
	require.Equal(t, map[string]int{"heavy-tenant": 3}, cfg.Check.TenantAssignments)

	require.Len(t, cfg.Auth.APIKeys, 1)
	require.Equal(t, "frontend", cfg.Auth.APIKeys[0].Name)
	require.Equal(t, "ak-frontend", cfg.Auth.APIKeys[0].Key)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("ARBITER_SERVER_PORT", "9000")
	t.Setenv("ARBITER_CHECK_QUERY_TIMEOUT", "100ms")
	t.Setenv("ARBITER_STORE_BACKEND", store.BackendRedis)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9000, cfg.APIServer.Port)
	require.Equal(t, 100*time.Millisecond, cfg.Check.QueryTimeout)
	require.Equal(t, store.BackendRedis, cfg.Store.Backend)
}

func TestLoad_BadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "arbiter.yml"), []byte("server: [not a map"), 0o600))

	_, err := Load()
	require.Error(t, err)
}
