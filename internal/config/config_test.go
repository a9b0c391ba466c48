package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[station]
default_airport_code = "KDEN"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 8, cfg.Agent.MaxLoops)
	assert.Equal(t, 3.0, cfg.Guardrail.ThresholdKt)
	assert.Equal(t, "pattern", cfg.AI.Backend)
	assert.Equal(t, "KDEN", cfg.Station.DefaultAirportCode)
	assert.True(t, cfg.Guardrail.MagneticCorrection(), "magnetic_correction_enabled must default to true")
}

func TestLoadPreservesExplicitMagneticCorrectionFalse(t *testing.T) {
	path := writeConfig(t, `
[guardrail]
magnetic_correction_enabled = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Guardrail.MagneticCorrection())
}

func TestLoadParsesRunwayCatalog(t *testing.T) {
	path := writeConfig(t, `
[station]
default_airport_code = "KDEN"

[station.runway_catalog]
KDEN = ["8", "26", "34L", "34R", "25", "16L", "16R", "7"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"8", "26", "34L", "34R", "25", "16L", "16R", "7"}, cfg.Station.RunwayCatalog["KDEN"])
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidLoggingLevel(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "verbose"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidAIBackend(t *testing.T) {
	path := writeConfig(t, `
[ai]
backend = "chatgpt"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadWithFallbackTriesPreferredPathFirst(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090
`)
	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadWithFallbackErrorsWhenNothingFound(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	_, err = LoadWithFallback(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
