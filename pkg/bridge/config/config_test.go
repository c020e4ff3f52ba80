package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestYAMLLoader_Load_MinimalAnonymous(t *testing.T) {
	t.Parallel()

	path := writeTemp(t, `
backends:
  gh:
    transport: stdio
    connect:
      command: gh-mcp-server
conflict_resolution:
  strategy: prefix
incoming_auth:
  type: anonymous
`)

	cfg, err := NewYAMLLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, bridge.ConflictPrefix, cfg.ConflictResolution.Strategy)
	assert.Equal(t, DefaultSeparator, cfg.ConflictResolution.Separator)
	assert.Equal(t, DefaultHealthInterval, cfg.Health.Interval)
	assert.Equal(t, "deny", cfg.Authorization.DefaultEffect)
}

func TestYAMLLoader_Load_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewYAMLLoader("/nonexistent/path.yaml").Load()
	assert.Error(t, err)
}

func TestValidate_RejectsManualStrategy(t *testing.T) {
	t.Parallel()

	cfg := &Config{ConflictResolution: ConflictResolutionConfig{Strategy: "manual"}}
	ApplyDefaults(cfg)
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict_resolution.strategy")
}

func TestValidate_RejectsBadBackendName(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Backends: map[string]BackendConfig{
			"bad name!": {Transport: bridge.TransportStdio, Connect: ConnectConfig{Command: "x"}},
		},
		ConflictResolution: ConflictResolutionConfig{Strategy: bridge.ConflictFirstWins},
	}
	ApplyDefaults(cfg)
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name must match")
}

func TestValidate_PriorityRequiresOrder(t *testing.T) {
	t.Parallel()

	cfg := &Config{ConflictResolution: ConflictResolutionConfig{Strategy: bridge.ConflictPriority}}
	ApplyDefaults(cfg)
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict_resolution.order")
}

func TestConfig_ToDescriptors_Sorted(t *testing.T) {
	t.Parallel()

	cfg := &Config{Backends: map[string]BackendConfig{
		"zeta":  {Transport: bridge.TransportStdio},
		"alpha": {Transport: bridge.TransportStdio},
	}}
	out := cfg.ToDescriptors()
	require.Len(t, out, 2)
	assert.Equal(t, "alpha", out[0].Name)
	assert.Equal(t, "zeta", out[1].Name)
}
