package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvPath, "/tmp/custom-config")

	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-config", p)
}

func TestPath_Default(t *testing.T) {
	t.Setenv(EnvPath, "")

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".sdk-bridge", "config"), p)
}
