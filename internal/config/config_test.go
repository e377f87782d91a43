package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `# global
log.level debug
tick-interval 10ms
devsocket.addr   127.0.0.1:7345

[simulator]
fixture ./fixtures/welcome.yaml
latency 5ms
start-success no

[run]
sync-timeout 2s
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	c, err := LoadFromReader(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Empty(t, c.Warnings)

	v, ok := c.GetGlobalOption("log.level")
	assert.True(t, ok)
	assert.Equal(t, "debug", v)
	assert.Equal(t, "127.0.0.1:7345", c.Global[KeyDevSocketAddr])

	assert.Equal(t, SimulatorConfig{
		Fixture: "./fixtures/welcome.yaml",
		Latency: 5 * time.Millisecond,
	}, c.Simulator)

	v, ok = c.GetSectionOption("run", KeySyncTimeout)
	assert.True(t, ok)
	assert.Equal(t, "2s", v)
	v, ok = c.GetSectionOption("run", KeyTickInterval)
	assert.True(t, ok, "falls back to global")
	assert.Equal(t, "10ms", v)
	_, ok = c.GetSectionOption("missing", "nope")
	assert.False(t, ok)
}

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()

	c, err := LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, c.Global)
	assert.True(t, c.Simulator.StartSuccess)
	assert.False(t, c.HasWarnings())
}

func TestLoadFromReader_Warnings(t *testing.T) {
	t.Parallel()

	c, err := LoadFromReader(strings.NewReader("bogus 1\ntick-interval soon\n[run]\nlog.level loud\nwhat ever\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		`global option "tick-interval": expected duration, got "soon"`,
		`option "log.level" in [run]: expected level, got "loud"`,
		`unknown global option: "bogus" (value: "1")`,
		`unknown option in [run]: "what" (value: "ever")`,
	}, c.Warnings)
}

func TestLoadFromReader_BadSimulatorOption(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{
		"[simulator]\nlatency fast\n",
		"[simulator]\nlatency -1s\n",
		"[simulator]\nstart-success maybe\n",
		"[simulator]\nspeed 2\n",
	} {
		_, err := LoadFromReader(strings.NewReader(doc))
		assert.Error(t, err, doc)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	c, err := LoadFromPath(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, c.Global)

	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	c, err = LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Global[KeyLogLevel])

	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(path, link))
	_, err = LoadFromPath(link)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symlink")
}

func TestParseBool(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"true", "1", "YES", "on"} {
		b, err := parseBool(s)
		require.NoError(t, err)
		assert.True(t, b, s)
	}
	for _, s := range []string{"false", "0", "no", "Off"} {
		b, err := parseBool(s)
		require.NoError(t, err)
		assert.False(t, b, s)
	}
	_, err := parseBool("maybe")
	assert.Error(t, err)
}
