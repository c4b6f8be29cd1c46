package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithoutFile(t *testing.T) {
	v, err := Load(t.TempDir(), "missing")
	require.NoError(t, err)

	v.SetDefault("server.port", 8080)
	assert.Equal(t, 8080, v.GetInt("server.port"))
}

func TestLoadExplicitFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rooms.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 9000\ntoken:\n  api_key: from-file\n"), 0o600))

	t.Setenv(EnvConfigFile, file)
	t.Setenv("ROOMS_TOKEN_KEY", "from-env")

	v, err := Load(dir, "ignored")
	require.NoError(t, err)
	require.NoError(t, BindEnvs(v, map[string]string{"token.api_key": "ROOMS_TOKEN_KEY"}))

	assert.Equal(t, 9000, v.GetInt("server.port"))
	assert.Equal(t, "from-env", v.GetString("token.api_key"))
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ROOMS_TEST_VALUE", "x")
	assert.Equal(t, "x", GetEnv("ROOMS_TEST_VALUE", "y"))
	assert.Equal(t, "y", GetEnv("ROOMS_TEST_UNSET", "y"))
}
