package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"menu-health-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bundledRegistry = filepath.Join("..", "..", "..", "configs", "activity-registry.json")
	bundledConfig   = filepath.Join("..", "..", "..", "configs", "config.yaml")
)

func copyRegistry(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(bundledRegistry)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "activity-registry.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestUsage(t *testing.T) {
	assert.False(t, strings.HasSuffix(usage, "\n"))
	for _, cmd := range []string{"add", "update", "validate", "check"} {
		assert.Contains(t, usage, "  "+cmd+" ")
	}
}

func TestRunValidate_BundledRegistry(t *testing.T) {
	assert.NoError(t, runValidate([]string{"-path", bundledRegistry}))
}

func TestRunCheck_BundledFilesAgree(t *testing.T) {
	assert.NoError(t, runCheck([]string{"-path", bundledRegistry, "-config", bundledConfig}))
}

func TestRunCheck_ReportsDrift(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
workers:
  segment-menu:
    enabled: true
  translate-menu:
    enabled: true
`), 0o600))

	err := runCheck([]string{"-path", bundledRegistry, "-config", cfg})
	require.Error(t, err)
	// translate-menu is unregistered, three completed activities lack config
	assert.Contains(t, err.Error(), "4 registry/config mismatches")
}

func TestRunUpdate(t *testing.T) {
	path := copyRegistry(t)

	require.NoError(t, runUpdate([]string{"-path", path, "-id", "segment-menu", "-field", "status", "-value", registry.StatusVerified}))
	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	a, err := reg.Find("segment-menu")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusVerified, a.ImplementationStatus)

	err = runUpdate([]string{"-path", path, "-id", "segment-menu", "-field", "timeout", "-value", "soon"})
	assert.ErrorContains(t, err, "invalid")

	assert.Error(t, runUpdate([]string{"-path", path, "-id", "missing", "-field", "status", "-value", "planned"}))
}

func TestRunAdd(t *testing.T) {
	path := copyRegistry(t)

	require.NoError(t, runAdd([]string{"-path", path, "-id", "translate-menu", "-displayName", "Translate Menu", "-description", "Translates menu text"}))
	reg, err := registry.LoadRegistry(path)
	require.NoError(t, err)
	a, err := reg.Find("translate-menu")
	require.NoError(t, err)
	assert.Equal(t, registry.StatusPlanned, a.ImplementationStatus)

	assert.ErrorContains(t,
		runAdd([]string{"-path", path, "-id", "translate-menu", "-displayName", "Again", "-description", "dup"}),
		"already exists")
}
