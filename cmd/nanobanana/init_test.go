package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/germanamz/nanobanana/pkg/appdir"
	"github.com/germanamz/nanobanana/pkg/engine"
	"github.com/germanamz/nanobanana/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigYAML(t *testing.T) {
	a := defaultInitAnswers()
	a.KeyEnv = "MY_KEY"
	a.Settings.Resolution = settings.Resolution2K
	a.Settings.Grounding = true

	data, err := initConfigYAML(a)
	require.NoError(t, err)
	assert.Contains(t, string(data), "${MY_KEY}")

	t.Setenv("MY_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := engine.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
	assert.Equal(t, settings.Resolution2K, cfg.Settings.Resolution)
	assert.True(t, cfg.Settings.Grounding)
}

func TestInitConfigYAML_InvalidEnvName(t *testing.T) {
	a := defaultInitAnswers()
	a.KeyEnv = "1-bad"

	_, err := initConfigYAML(a)
	assert.ErrorContains(t, err, "not a valid environment variable name")
}

func TestRunInit_Defaults(t *testing.T) {
	root := filepath.Join(t.TempDir(), appdir.DefaultRoot)

	require.NoError(t, runInit(root, true))

	d := appdir.New(root)
	data, err := os.ReadFile(d.ConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "${GEMINI_API_KEY}")

	_, err = os.Stat(d.GitignorePath())
	assert.NoError(t, err)
}
