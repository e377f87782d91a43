package sdk

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/sdk-bridge/internal/bridge"
	"github.com/joeycumines/sdk-bridge/internal/platform/simulator"
	"github.com/joeycumines/sdk-bridge/internal/testutil"
)

const fixture = `
user_id: user-1
variables:
  coins: 150
messages:
  "42":
    action: welcome
    args:
      title: Hello
      count: 3
      accept: confirm
`

type harness struct {
	vm   *goja.Runtime
	b    *bridge.Bridge
	sim  *simulator.Simulator
	exit int
}

func setup(t *testing.T) *harness {
	t.Helper()
	f, err := simulator.ParseFixture([]byte(fixture))
	require.NoError(t, err)
	sim := simulator.New(simulator.WithFixture(f))
	b, err := bridge.New(sim)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
		_ = sim.Close()
	})

	h := &harness{vm: goja.New(), b: b, sim: sim, exit: -1}
	module := h.vm.NewObject()
	_ = module.Set("exports", h.vm.NewObject())
	Require(b, func(code int) { h.exit = code })(h.vm, module)
	_ = h.vm.Set("sdk", module.Get("exports"))
	return h
}

func (h *harness) run(t *testing.T, code string) goja.Value {
	t.Helper()
	v, err := h.vm.RunString(code)
	require.NoError(t, err)
	return v
}

// until ticks the bridge on the test goroutine, which owns the runtime.
func (h *harness) until(t *testing.T, cond func() bool) {
	t.Helper()
	testutil.TickUntil(t, func() { h.b.Tick() }, cond)
}

func TestDefineAndStart(t *testing.T) {
	t.Parallel()
	h := setup(t)

	h.run(t, `
		var coins = sdk.define("coins", 100);
		var seen = [];
		coins.onChange(function (v) { seen.push(v.value()); });
		var started = null;
		sdk.start("user-1", {tier: "gold"}, function (ok) {
			started = ok;
			sdk.exit(ok ? 0 : 1);
		});
	`)
	h.until(t, func() bool { return h.exit != -1 })

	assert.Equal(t, 0, h.exit)
	assert.Equal(t, true, h.run(t, `started`).Export())
	assert.Equal(t, []any{int64(150)}, h.run(t, `seen`).Export())
	assert.Equal(t, "integer", h.run(t, `coins.kind`).Export())
	assert.Equal(t, int64(100), h.run(t, `coins.defaultValue()`).Export())
	assert.Equal(t, true, h.run(t, `sdk.define("coins", 1) === coins`).Export())
	assert.Equal(t, true, h.run(t, `sdk.hasStarted()`).Export())
	assert.Equal(t, true, h.run(t, `sdk.variable("coins") === coins && sdk.variable("nope") === null`).Export())
}

func TestDefineExplicitKindAndAsset(t *testing.T) {
	t.Parallel()
	h := setup(t)

	h.run(t, `
		var ratio = sdk.define("ratio", 1, sdk.kinds.FLOAT);
		var logo = sdk.defineAsset("logo.png", "assets/logo.png");
	`)
	assert.Equal(t, "float", h.run(t, `ratio.kind`).Export())
	assert.Equal(t, bridge.AssetPrefix+"logo.png", h.run(t, `logo.name`).Export())
	assert.Equal(t, "file", h.run(t, `logo.kind`).Export())

	v, ok := h.b.Variables().Lookup("ratio")
	require.True(t, ok)
	assert.Equal(t, bridge.KindFloat, v.Kind())
}

func TestErrorsAreThrown(t *testing.T) {
	t.Parallel()
	h := setup(t)

	h.run(t, `sdk.define("coins", 1)`)
	_, err := h.vm.RunString(`sdk.define("coins", "many")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined as integer")

	msg := h.run(t, `
		var msg = "";
		try { sdk.define("x", 1, "nonsense"); } catch (e) { msg = String(e); }
		msg
	`).String()
	assert.Contains(t, msg, "unknown kind")

	_, err = h.vm.RunString(`sdk.onAction("welcome", 42)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a function")

	_, err = h.vm.RunString(`sdk.defineAction("welcome", "popup")`)
	require.Error(t, err)
}

func TestMissingNamesAreTypeErrors(t *testing.T) {
	t.Parallel()
	h := setup(t)

	for code, want := range map[string]string{
		`sdk.define()`:                                            "define: name must be a string",
		`sdk.define(null, 1)`:                                     "define: name must be a string",
		`sdk.defineAsset("logo")`:                                 "defineAsset: path must be a string",
		`sdk.variable(undefined)`:                                 "variable: name must be a string",
		`sdk.defineAction(undefined, 0)`:                          "defineAction: name must be a string",
		`sdk.defineAction("w", 0, [{default: 1}])`:                "defineAction: args[0].name must be a string",
		`sdk.onAction(undefined, function () {})`:                 "onAction: name must be a string",
		`sdk.track()`:                                             "track: event must be a string",
		`sdk.createActionContextForId()`:                          "createActionContextForId: message id must be a string",
		`sdk.triggerActionForId(null)`:                            "triggerActionForId: message id must be a string",
		`sdk.createActionContextForId("42").stringNamed()`:        "stringNamed: name must be a string",
		`sdk.createActionContextForId("42").runActionNamed(null)`: "runActionNamed: name must be a string",
	} {
		msg := h.run(t, `
			var msg = "";
			try { `+code+`; } catch (e) { msg = (e instanceof TypeError) + ":" + e.message; }
			msg
		`).String()
		assert.Equal(t, "true:"+want, msg, code)
	}

	assert.True(t, goja.IsNull(h.run(t, `sdk.variable("undefined")`)), "nothing was defined under the coerced name")
	assert.False(t, h.b.Actions().HasResponder("undefined"))
}

func TestActionsAndNamedResponder(t *testing.T) {
	t.Parallel()
	h := setup(t)

	h.run(t, `
		var titles = [], children = [], observed = 0;
		sdk.defineAction("welcome", sdk.actionKinds.MESSAGE, [{name: "title", default: "Hi"}, {name: "accept", kind: "action"}], null, function (ctx) {
			titles.push(ctx.stringNamed("title") + ":" + ctx.numberNamed("count") + ":" + ctx.messageId);
			ctx.setNamedResponder(function (child) { children.push(child.key); });
			ctx.runActionNamed("accept");
		});
		var sub = sdk.onAction("welcome", function () { observed++; });
		var triggered = sdk.triggerActionForId("42");
	`)
	assert.Equal(t, true, h.run(t, `triggered`).Export())
	h.until(t, func() bool { return h.run(t, `children.length`).ToInteger() == 1 })

	assert.Equal(t, "Hello:3:42", h.run(t, `titles.join(",")`).String())
	assert.Equal(t, "confirm:42", h.run(t, `children[0]`).String())
	assert.Equal(t, int64(1), h.run(t, `observed`).ToInteger())

	h.run(t, `sub.cancel(); sdk.triggerActionForId("42")`)
	h.until(t, func() bool { return h.run(t, `titles.length`).ToInteger() == 2 })
	assert.Equal(t, int64(1), h.run(t, `observed`).ToInteger())
	assert.Equal(t, int64(0), h.run(t, `sdk.stats().pendingCallbacks`).ToInteger())
}

func TestContextForID(t *testing.T) {
	t.Parallel()
	h := setup(t)

	h.run(t, `
		var ctx = sdk.createActionContextForId("42");
		ctx.track("viewed", 2);
		ctx.dismissed();
	`)
	assert.Equal(t, "welcome:42", h.run(t, `ctx.key`).String())
	assert.Equal(t, "welcome", h.run(t, `ctx.name`).String())
	assert.Equal(t, true, h.run(t, `sdk.createActionContextForId("42") === ctx`).Export())
	assert.Equal(t, []string{"welcome:42"}, h.sim.Dismissed())
}

func TestForceContentUpdate(t *testing.T) {
	t.Parallel()
	h := setup(t)

	h.run(t, `
		var viaCallback = 0, viaPromise = false;
		sdk.forceContentUpdate(function () { viaCallback++; });
		sdk.forceContentUpdate().then(function () { viaPromise = true; });
	`)
	// promise reactions run when the runtime is next entered
	h.until(t, func() bool {
		return h.run(t, `viaCallback === 1 && viaPromise`).ToBoolean()
	})
	assert.Zero(t, h.b.Callbacks().Pending())
}

func TestEventsAndQueries(t *testing.T) {
	t.Parallel()
	h := setup(t)

	h.run(t, `
		var changed = 0, settled = 0;
		sdk.onVariablesChanged(function () { changed++; });
		sdk.onVariablesChangedAndNoDownloadsPending(function () { settled++; });
		var late = null;
		sdk.onStarted(function (ok) { late = ok; });
		sdk.define("coins", 100);
		sdk.start();
	`)
	h.until(t, func() bool { return h.run(t, `late !== null && settled === 1`).ToBoolean() })
	assert.Equal(t, int64(1), h.run(t, `changed`).ToInteger())

	h.run(t, `
		sdk.track("purchase", 1.5, "info", {sku: "a"});
		sdk.trackPurchase("buy", 2, "USD");
		sdk.advanceTo("level-2");
		sdk.setUserAttributes("user-9", {tier: "gold"});
		sdk.setDeviceId("device-9");
	`)
	assert.Equal(t, "level-2", h.sim.State())
	assert.Equal(t, "user-9", h.run(t, `sdk.userId()`).String())
	assert.Equal(t, "device-9", h.run(t, `sdk.deviceId()`).String())
	assert.Equal(t, int64(150), h.run(t, `sdk.vars().coins`).ToInteger())
	assert.Equal(t, true, h.run(t, `sdk.objectForKeyPath("missing") === null`).Export())
	assert.Len(t, h.sim.Events(), 3)
}
