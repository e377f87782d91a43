package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/sdk-bridge/internal/bridge"
	"github.com/joeycumines/sdk-bridge/internal/testutil"
)

const testFixture = `
device_id: device-1
user_id: user-1
variables:
  coins: 150
  plans:
    - name: gold
      price: 9.5
variants:
  - id: 7
messages:
  "42":
    action: welcome
    args:
      title: Hello
      count: 3
      accept: confirm
trigger_on_start: ["42"]
`

func newTestPair(t *testing.T, opts ...Option) (*Simulator, *bridge.Bridge) {
	t.Helper()
	sim := New(opts...)
	b, err := bridge.New(sim)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
		_ = sim.Close()
	})
	return sim, b
}

// tickUntil drives the bridge from the test goroutine until cond holds.
func tickUntil(t *testing.T, b *bridge.Bridge, cond func() bool) {
	t.Helper()
	testutil.TickUntil(t, func() { b.Tick() }, cond)
}

func TestParseFixture(t *testing.T) {
	t.Parallel()

	f, err := ParseFixture([]byte(testFixture))
	require.NoError(t, err)
	assert.Equal(t, "device-1", f.DeviceID)
	assert.Equal(t, int64(150), f.Variables["coins"])
	assert.Equal(t, []any{map[string]any{"name": "gold", "price": 9.5}}, f.Variables["plans"])
	assert.Equal(t, "welcome", f.Messages["42"].Action)
	assert.Equal(t, int64(3), f.Messages["42"].Args["count"])
	assert.True(t, f.startSuccess())

	empty, err := ParseFixture(nil)
	require.NoError(t, err)
	assert.True(t, empty.startSuccess())

	for name, doc := range map[string]string{
		"unknown field":   "bogus: 1\n",
		"missing action":  "messages:\n  a: {}\n",
		"unknown trigger": "trigger_on_start: [nope]\n",
	} {
		_, err := ParseFixture([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestSimulator_StartAppliesOverridesAndTriggers(t *testing.T) {
	t.Parallel()

	f, err := ParseFixture([]byte(testFixture))
	require.NoError(t, err)
	sim, b := newTestPair(t, WithFixture(f))

	coins, err := b.Define("coins", bridge.KindInt, 100)
	require.NoError(t, err)
	changes := 0
	coins.OnChange(func(*bridge.Variable) { changes++ })

	var titles []string
	require.NoError(t, b.DefineAction("welcome", bridge.ActionKindMessage, nil, nil, func(ctx *bridge.ActionContext) error {
		title, err := ctx.StringNamed("title")
		if err != nil {
			return err
		}
		titles = append(titles, title)
		return nil
	}))

	var started []bool
	require.NoError(t, b.Start("", nil, func(ok bool) { started = append(started, ok) }))

	tickUntil(t, b, func() bool { return len(started) > 0 && len(titles) > 0 })

	assert.Equal(t, []bool{true}, started)
	assert.Equal(t, int64(150), coins.Value())
	assert.Equal(t, 1, changes)
	assert.Equal(t, []string{"Hello"}, titles)
	assert.True(t, sim.Started())

	uid, err := b.UserID()
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestSimulator_SetOverride(t *testing.T) {
	t.Parallel()

	sim, b := newTestPair(t)
	v, err := b.Define("title", bridge.KindString, "default")
	require.NoError(t, err)

	var changed int
	b.OnVariablesChanged(func() { changed++ })

	require.NoError(t, sim.SetOverride("title", "server"))
	tickUntil(t, b, func() bool { return changed == 1 })
	assert.Equal(t, "server", v.Value())

	vars, err := b.Vars()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "server"}, vars)
}

func TestSimulator_ContentUpdateCallback(t *testing.T) {
	t.Parallel()

	_, b := newTestPair(t)
	done := 0
	require.NoError(t, b.ForceContentUpdateWithCallback(func() { done++ }))
	tickUntil(t, b, func() bool { return done == 1 })
	assert.Zero(t, b.Callbacks().Pending())
}

func TestSimulator_NamedChildAction(t *testing.T) {
	t.Parallel()

	f, err := ParseFixture([]byte(testFixture))
	require.NoError(t, err)
	f.TriggerOnStart = nil
	sim, b := newTestPair(t, WithFixture(f))

	var children []string
	require.NoError(t, b.DefineAction("welcome", bridge.ActionKindMessage, nil, nil, func(ctx *bridge.ActionContext) error {
		ctx.SetNamedResponder(func(child *bridge.ActionContext) error {
			children = append(children, child.Key())
			return nil
		})
		return ctx.RunActionNamed("accept")
	}))

	ok, err := b.TriggerActionForID("42")
	require.NoError(t, err)
	require.True(t, ok)

	tickUntil(t, b, func() bool { return len(children) == 1 })
	assert.Equal(t, []string{"confirm:42"}, children)

	ok, err = b.TriggerActionForID("missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, sim.CallsTo(bridge.MethodTriggerAction), 2)
}

func TestSimulator_Queries(t *testing.T) {
	t.Parallel()

	f, err := ParseFixture([]byte(testFixture))
	require.NoError(t, err)
	sim, b := newTestPair(t, WithFixture(f))

	_, err = b.Define("plans", bridge.KindArray, []any{})
	require.NoError(t, err)

	name, err := b.ObjectForKeyPath("plans", 0, "name")
	require.NoError(t, err)
	assert.Equal(t, "gold", name)

	missing, err := b.ObjectForKeyPath("plans", 5)
	require.NoError(t, err)
	assert.Nil(t, missing)

	variants, err := b.Variants()
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": int64(7)}}, variants)

	meta, err := b.MessageMetadata()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"42": map[string]any{"action": "welcome"}}, meta)

	ctx, err := b.CreateActionContextForID("42")
	require.NoError(t, err)
	assert.Equal(t, "welcome:42", ctx.Key())
	n, err := ctx.NumberNamed("count")
	require.NoError(t, err)
	assert.Equal(t, 3.0, n)
	require.NoError(t, ctx.Track("viewed", 2, nil))
	require.NoError(t, ctx.Dismissed())
	assert.Equal(t, []string{"welcome:42"}, sim.Dismissed())

	_, err = b.CreateActionContextForID("nope")
	require.Error(t, err)

	require.NoError(t, b.SetDeviceID("device-2"))
	id, err := b.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, "device-2", id)

	require.NoError(t, b.Track("purchase", 1.5, "info", map[string]any{"sku": "a"}))
	require.NoError(t, b.TrackPurchase("buy", 2, "USD", nil))
	require.NoError(t, b.AdvanceTo("level-2", "", nil))
	require.NoError(t, b.SetUserAttributes("user-9", map[string]any{"tier": "gold"}))
	require.NoError(t, b.PauseState())

	assert.Equal(t, []TrackedEvent{
		{Kind: "context", Name: "viewed", Value: 2, Info: "welcome:42"},
		{Kind: "track", Name: "purchase", Value: 1.5, Info: "info", Params: map[string]any{"sku": "a"}},
		{Kind: "purchase", Name: "buy", Value: 2, Info: "USD"},
		{Kind: "state", Name: "level-2"},
	}, sim.Events())
	assert.Equal(t, "level-2", sim.State())
	assert.True(t, sim.Paused())
	assert.Equal(t, map[string]any{"tier": "gold"}, sim.Attributes())

	uid, err := b.UserID()
	require.NoError(t, err)
	assert.Equal(t, "user-9", uid)
}

func TestSimulator_UnknownMethodAndDefaults(t *testing.T) {
	t.Parallel()

	sim := New()
	t.Cleanup(func() { _ = sim.Close() })

	_, err := sim.Call("teleport")
	require.ErrorIs(t, err, ErrUnknownMethod)

	id, err := sim.Call(bridge.MethodGetDeviceID)
	require.NoError(t, err)
	assert.Len(t, id, 36, "generated ids are UUIDs")

	calls := sim.Calls()
	require.Len(t, calls, 2)
	assert.ErrorIs(t, calls[0].Err, ErrUnknownMethod)

	require.NoError(t, sim.Close())
	_, err = sim.Call(bridge.MethodGetDeviceID)
	require.ErrorIs(t, err, ErrClosed)
}

func TestSimulator_StartFailure(t *testing.T) {
	t.Parallel()

	no := false
	_, b := newTestPair(t, WithFixture(&Fixture{StartSuccess: &no}), WithLatency(time.Millisecond))

	var got []bool
	require.NoError(t, b.Start("u", map[string]any{"a": 1}, func(ok bool) { got = append(got, ok) }))
	tickUntil(t, b, func() bool { return len(got) == 1 })
	assert.Equal(t, []bool{false}, got)
}
