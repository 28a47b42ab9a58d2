package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"crewplan/internal/opt"
)

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, 3600, c.CacheTTLSeconds)
	assert.Equal(t, opt.DefaultOptions(), c.Options)
}

func TestLoad_WithConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "crewplan.yaml")
	cfg := "logLevel: debug\noptions:\n  seed: 9\n  workers: 2\n  wVehicleRotation: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, int64(9), c.Options.Seed)
	assert.Equal(t, 2, c.Options.Workers)
	assert.Zero(t, c.Options.WVehicleRotation)
	assert.Equal(t, opt.DefaultOptions().WPilotFairness, c.Options.WPilotFairness)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("CREWPLAN_OPTIONS_SEED", "123")
	t.Setenv("CREWPLAN_LOGFORMAT", "console")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(123), c.Options.Seed)
	assert.Equal(t, "console", c.LogFormat)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	_, err := Load("/nonexistent/crewplan.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("options.workers", 0)
	_, err := Current()
	require.ErrorIs(t, err, opt.ErrValidation)

	viper.Set("options.workers", 1)
	viper.Set("logFormat", "xml")
	_, err = Current()
	require.ErrorIs(t, err, opt.ErrValidation)
}

func TestYAMLRoundTrip(t *testing.T) {
	t.Cleanup(viper.Reset)
	c, err := Load("")
	require.NoError(t, err)
	out, err := c.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "wPilotFairness: 10")

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, *c, back)
}
