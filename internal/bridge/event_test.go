package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_OrderAndCancel(t *testing.T) {
	t.Parallel()

	var e Event[int]
	var got []string

	a := e.Subscribe(func(v int) { got = append(got, "a") })
	e.Subscribe(func(v int) { got = append(got, "b") })
	e.Subscribe(func(v int) { got = append(got, "c") })

	e.Emit(1)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	a.Cancel()
	a.Cancel()
	got = nil
	e.Emit(2)
	assert.Equal(t, []string{"b", "c"}, got)
	assert.Equal(t, 2, e.Len())
}

func TestEvent_NoReplay(t *testing.T) {
	t.Parallel()

	var e Event[bool]
	e.Emit(true)

	calls := 0
	e.Subscribe(func(bool) { calls++ })
	assert.Zero(t, calls)

	e.Emit(false)
	assert.Equal(t, 1, calls)
}

func TestEvent_PanicIsolated(t *testing.T) {
	t.Parallel()

	var e Event[string]
	var after []string
	e.Subscribe(func(string) { panic("boom") })
	e.Subscribe(func(s string) { after = append(after, s) })

	require.NotPanics(t, func() { e.Emit("x") })
	assert.Equal(t, []string{"x"}, after)
}

func TestEvent_CancelDuringEmit(t *testing.T) {
	t.Parallel()

	var e Event[int]
	var second *Subscription
	calls := 0
	e.Subscribe(func(int) { second.Cancel() })
	second = e.Subscribe(func(int) { calls++ })

	// the snapshot taken at emit time still includes the second subscriber
	e.Emit(1)
	assert.Equal(t, 1, calls)

	e.Emit(2)
	assert.Equal(t, 1, calls)
}

func TestSubscription_NilSafe(t *testing.T) {
	t.Parallel()

	var s *Subscription
	assert.NotPanics(t, s.Cancel)

	var e Event[int]
	assert.NotPanics(t, e.Subscribe(nil).Cancel)
}
