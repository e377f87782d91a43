package bridge

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_GetOrCreate(t *testing.T) {
	t.Parallel()

	g := NewGraph(newFakePlatform())
	a := g.GetOrCreate("welcome:42")
	assert.Same(t, a, g.GetOrCreate("welcome:42"))
	assert.Equal(t, "welcome", a.Name())
	assert.Equal(t, "42", a.MessageID())
	assert.Equal(t, "welcome:42", a.Key())

	b := g.GetOrCreate("welcome")
	assert.Equal(t, "", b.MessageID())
	assert.Equal(t, 2, g.Len())

	_, ok := g.Lookup("missing")
	assert.False(t, ok)
}

func TestGraph_TriggerNamedResponder(t *testing.T) {
	t.Parallel()

	g := NewGraph(newFakePlatform())

	// unknown parent: nothing happens, nothing is created
	require.NoError(t, g.TriggerNamedResponder("p:1", "c:2"))
	assert.Zero(t, g.Len())

	parent := g.GetOrCreate("p:1")
	require.NoError(t, g.TriggerNamedResponder("p:1", "c:2"), "no named responder is a no-op")

	var got *ActionContext
	parent.SetNamedResponder(func(child *ActionContext) error {
		got = child
		// re-entering the graph from a responder must not deadlock
		g.GetOrCreate("other:3")
		return nil
	})
	require.NoError(t, g.TriggerNamedResponder("p:1", "c:2"))
	require.NotNil(t, got)
	assert.Equal(t, "c", got.Name())
	assert.Same(t, got, g.GetOrCreate("c:2"))

	boom := errors.New("boom")
	parent.SetNamedResponder(func(*ActionContext) error { return boom })
	require.ErrorIs(t, g.TriggerNamedResponder("p:1", "c:2"), boom)
}

func TestActionContext_Accessors(t *testing.T) {
	t.Parallel()

	p := newFakePlatform()
	p.handle(MethodContextStringNamed, func(args ...any) (string, error) {
		require.Equal(t, []any{"welcome:1", "title"}, args)
		return `"Hi"`, nil
	})
	p.reply(MethodContextNumberNamed, `2.5`)
	p.reply(MethodContextBoolNamed, `true`)
	p.reply(MethodContextObjectNamed, `{"a":[1]}`)

	ctx := NewGraph(p).GetOrCreate("welcome:1")

	s, err := ctx.StringNamed("title")
	require.NoError(t, err)
	assert.Equal(t, "Hi", s)

	n, err := ctx.NumberNamed("n")
	require.NoError(t, err)
	assert.Equal(t, 2.5, n)

	b, err := ctx.BoolNamed("b")
	require.NoError(t, err)
	assert.True(t, b)

	o, err := ctx.ObjectNamed("o")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{int64(1)}}, o)

	require.NoError(t, ctx.RunActionNamed("accept"))
	require.NoError(t, ctx.Track("viewed", 1, map[string]any{"k": "v"}))
	require.NoError(t, ctx.Dismissed())

	assert.Equal(t, []any{"welcome:1", "accept"}, p.callsTo(MethodContextRunActionNamed)[0].Args)
	assert.Equal(t, []any{"welcome:1", "viewed", 1.0, `{"k":"v"}`}, p.callsTo(MethodContextTrack)[0].Args)
	assert.Equal(t, []any{"welcome:1"}, p.callsTo(MethodContextDismissed)[0].Args)

	p.reply(MethodContextNumberNamed, `"abc"`)
	_, err = ctx.NumberNamed("n")
	require.Error(t, err)
}
