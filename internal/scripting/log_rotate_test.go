package scripting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "bridge.log")
	w, err := OpenRotatingFile(path, 1024, 2)
	require.NoError(t, err)

	chunk := func(c string) []byte { return []byte(strings.Repeat(c, 600)) }
	for _, c := range []string{"a", "b", "c", "d"} {
		_, err := w.Write(chunk(c))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	read := func(p string) string {
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		return string(b)
	}
	assert.Equal(t, string(chunk("d")), read(path))
	assert.Equal(t, string(chunk("c")), read(path+".1"))
	assert.Equal(t, string(chunk("b")), read(path+".2"))
	assert.NoFileExists(t, path+".3")

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingFile_NoBackups(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bridge.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("z", 1000)), 0o644))

	w, err := OpenRotatingFile(path, 1024, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	_, err = w.Write([]byte(strings.Repeat("y", 100)))
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("y", 100), string(b))
	assert.NoFileExists(t, path+".1")
}
