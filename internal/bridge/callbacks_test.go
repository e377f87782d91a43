package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbacks_TokensAndAtMostOnce(t *testing.T) {
	t.Parallel()

	var c Callbacks
	runs := map[int]int{}

	t0 := c.Register(func() { runs[0]++ })
	t1 := c.Register(func() { runs[1]++ })
	assert.Equal(t, 0, t0)
	assert.Equal(t, 1, t1)
	assert.Equal(t, 2, c.Pending())

	assert.True(t, c.Complete(t1))
	assert.False(t, c.Complete(t1))
	assert.False(t, c.Complete(42))
	assert.Equal(t, map[int]int{1: 1}, runs)
	assert.Equal(t, 1, c.Pending())

	// tokens are never reused
	assert.Equal(t, 2, c.Register(nil))
	assert.True(t, c.Complete(2))
}

func TestCallbacks_CancelAndPanic(t *testing.T) {
	t.Parallel()

	var c Callbacks
	tok := c.Register(func() { t.Fatal("cancelled callback ran") })
	assert.True(t, c.Cancel(tok))
	assert.False(t, c.Complete(tok))

	tok = c.Register(func() { panic("boom") })
	require.NotPanics(t, func() { assert.True(t, c.Complete(tok)) })
	assert.Zero(t, c.Pending())
}
