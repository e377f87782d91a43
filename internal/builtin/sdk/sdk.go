// Package sdk exposes a [bridge.Bridge] to scripts as the "bridge:sdk"
// module.
//
//	const sdk = require("bridge:sdk");
//	const coins = sdk.define("coins", 100);
//	coins.onChange(v => log.info("coins", {value: v.value()}));
//	sdk.defineAction("welcome", sdk.actionKinds.MESSAGE, [{name: "title", default: "Hi"}], null, ctx => {
//	    log.info(ctx.stringNamed("title"));
//	});
//	sdk.start("user-1", {tier: "gold"}, ok => sdk.exit(ok ? 0 : 1));
//
// Every callback runs on the event loop, during the bridge tick that
// delivers it. Bridge errors are thrown as GoError.
package sdk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/sdk-bridge/internal/bridge"
)

// ModuleName is the require() name.
const ModuleName = "bridge:sdk"

var kindNames = map[bridge.Kind]string{
	bridge.KindInt:        "INT",
	bridge.KindFloat:      "FLOAT",
	bridge.KindString:     "STRING",
	bridge.KindBool:       "BOOL",
	bridge.KindArray:      "ARRAY",
	bridge.KindDictionary: "DICTIONARY",
	bridge.KindFile:       "FILE",
}

// Require returns the loader for ModuleName. exit is called by sdk.exit(code)
// and may be nil.
func Require(b *bridge.Bridge, exit func(code int)) require.ModuleLoader {
	return func(runtime *goja.Runtime, module *goja.Object) {
		a := &api{
			runtime:  runtime,
			bridge:   b,
			exit:     exit,
			vars:     make(map[*bridge.Variable]*goja.Object),
			contexts: make(map[*bridge.ActionContext]*goja.Object),
		}
		a.export(module.Get("exports").(*goja.Object))
	}
}

// api is bound to one runtime. Its caches are only touched on the loop.
type api struct {
	runtime  *goja.Runtime
	bridge   *bridge.Bridge
	exit     func(code int)
	vars     map[*bridge.Variable]*goja.Object
	contexts map[*bridge.ActionContext]*goja.Object
}

func (a *api) export(exports *goja.Object) {
	kinds := a.runtime.NewObject()
	for _, k := range bridge.Kinds() {
		_ = kinds.Set(kindNames[k], k.String())
	}
	_ = exports.Set("kinds", kinds)

	actionKinds := a.runtime.NewObject()
	_ = actionKinds.Set("MESSAGE", int(bridge.ActionKindMessage))
	_ = actionKinds.Set("ACTION", int(bridge.ActionKindAction))
	_ = exports.Set("actionKinds", actionKinds)

	// define(name, default, kind?) -> Variable
	_ = exports.Set("define", func(call goja.FunctionCall) goja.Value {
		name := a.name(call.Argument(0), "define")
		def := exportValue(call.Argument(1))
		var (
			v   *bridge.Variable
			err error
		)
		if kindArg := call.Argument(2); isNullish(kindArg) {
			v, err = a.bridge.DefineInferred(name, def)
		} else {
			var kind bridge.Kind
			if kind, err = bridge.ParseKind(kindArg.String()); err == nil {
				v, err = a.bridge.Define(name, kind, def)
			}
		}
		a.check(err)
		return a.variable(v)
	})

	// defineAsset(name, path) -> Variable
	_ = exports.Set("defineAsset", func(call goja.FunctionCall) goja.Value {
		v, err := a.bridge.DefineAsset(a.name(call.Argument(0), "defineAsset"), a.str(call.Argument(1), "defineAsset", "path"))
		a.check(err)
		return a.variable(v)
	})

	// variable(name) -> Variable | null
	_ = exports.Set("variable", func(call goja.FunctionCall) goja.Value {
		v, ok := a.bridge.Variables().Lookup(a.name(call.Argument(0), "variable"))
		if !ok {
			return goja.Null()
		}
		return a.variable(v)
	})

	// defineAction(name, kind, args?, options?, responder?)
	_ = exports.Set("defineAction", func(call goja.FunctionCall) goja.Value {
		name := a.name(call.Argument(0), "defineAction")
		kind := a.actionKind(call.Argument(1))
		args := a.actionArgs(call.Argument(2))
		options := a.exportMap(call.Argument(3))
		var responder bridge.Responder
		if fn, ok := goja.AssertFunction(call.Argument(4)); ok {
			responder = a.responder(fn)
		}
		a.check(a.bridge.DefineAction(name, kind, args, options, responder))
		return goja.Undefined()
	})

	// onAction(name, fn) -> {cancel()}
	_ = exports.Set("onAction", func(call goja.FunctionCall) goja.Value {
		fn := a.function(call.Argument(1), "onAction")
		sub, err := a.bridge.OnAction(a.name(call.Argument(0), "onAction"), a.responder(fn))
		a.check(err)
		return a.subscription(sub)
	})

	_ = exports.Set("onStarted", func(call goja.FunctionCall) goja.Value {
		fn := a.function(call.Argument(0), "onStarted")
		return a.subscription(a.bridge.OnStarted(func(ok bool) {
			a.invoke("onStarted", fn, a.runtime.ToValue(ok))
		}))
	})
	_ = exports.Set("onVariablesChanged", func(call goja.FunctionCall) goja.Value {
		fn := a.function(call.Argument(0), "onVariablesChanged")
		return a.subscription(a.bridge.OnVariablesChanged(func() {
			a.invoke("onVariablesChanged", fn)
		}))
	})
	_ = exports.Set("onVariablesChangedAndNoDownloadsPending", func(call goja.FunctionCall) goja.Value {
		fn := a.function(call.Argument(0), "onVariablesChangedAndNoDownloadsPending")
		return a.subscription(a.bridge.OnVariablesChangedAndNoDownloadsPending(func() {
			a.invoke("onVariablesChangedAndNoDownloadsPending", fn)
		}))
	})

	// start(userId?, attributes?, callback?)
	_ = exports.Set("start", func(call goja.FunctionCall) goja.Value {
		args := call.Arguments
		var onStarted func(bool)
		if n := len(args); n > 0 {
			if fn, ok := goja.AssertFunction(args[n-1]); ok {
				onStarted = func(ok bool) { a.invoke("start", fn, a.runtime.ToValue(ok)) }
				args = args[:n-1]
			}
		}
		var userID string
		if len(args) > 0 && !isNullish(args[0]) {
			userID = args[0].String()
		}
		var attrs map[string]any
		if len(args) > 1 {
			attrs = a.exportMap(args[1])
		}
		a.check(a.bridge.Start(userID, attrs, onStarted))
		return goja.Undefined()
	})

	_ = exports.Set("hasStarted", func(goja.FunctionCall) goja.Value {
		ok, err := a.bridge.HasStarted()
		a.check(err)
		return a.runtime.ToValue(ok)
	})

	// forceContentUpdate(callback?) returns a Promise when no callback is
	// given.
	_ = exports.Set("forceContentUpdate", func(call goja.FunctionCall) goja.Value {
		if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
			a.check(a.bridge.ForceContentUpdateWithCallback(func() {
				a.invoke("forceContentUpdate", fn)
			}))
			return goja.Undefined()
		}
		promise, resolve, _ := a.runtime.NewPromise()
		a.check(a.bridge.ForceContentUpdateWithCallback(func() {
			_ = resolve(goja.Undefined())
		}))
		return a.runtime.ToValue(promise)
	})

	// track(event, value?, info?, params?)
	_ = exports.Set("track", func(call goja.FunctionCall) goja.Value {
		a.check(a.bridge.Track(a.str(call.Argument(0), "track", "event"), call.Argument(1).ToFloat(),
			a.optString(call.Argument(2)), a.exportMap(call.Argument(3))))
		return goja.Undefined()
	})
	_ = exports.Set("trackPurchase", func(call goja.FunctionCall) goja.Value {
		a.check(a.bridge.TrackPurchase(a.str(call.Argument(0), "trackPurchase", "event"), call.Argument(1).ToFloat(),
			a.optString(call.Argument(2)), a.exportMap(call.Argument(3))))
		return goja.Undefined()
	})
	_ = exports.Set("advanceTo", func(call goja.FunctionCall) goja.Value {
		a.check(a.bridge.AdvanceTo(a.optString(call.Argument(0)), a.optString(call.Argument(1)), a.exportMap(call.Argument(2))))
		return goja.Undefined()
	})
	_ = exports.Set("setUserAttributes", func(call goja.FunctionCall) goja.Value {
		a.check(a.bridge.SetUserAttributes(a.optString(call.Argument(0)), a.exportMap(call.Argument(1))))
		return goja.Undefined()
	})
	_ = exports.Set("pauseState", func(goja.FunctionCall) goja.Value {
		a.check(a.bridge.PauseState())
		return goja.Undefined()
	})
	_ = exports.Set("resumeState", func(goja.FunctionCall) goja.Value {
		a.check(a.bridge.ResumeState())
		return goja.Undefined()
	})

	_ = exports.Set("vars", func(goja.FunctionCall) goja.Value {
		v, err := a.bridge.Vars()
		a.check(err)
		return a.runtime.ToValue(v)
	})
	_ = exports.Set("variants", func(goja.FunctionCall) goja.Value {
		v, err := a.bridge.Variants()
		a.check(err)
		return a.runtime.ToValue(v)
	})
	_ = exports.Set("messageMetadata", func(goja.FunctionCall) goja.Value {
		v, err := a.bridge.MessageMetadata()
		a.check(err)
		return a.runtime.ToValue(v)
	})
	// objectForKeyPath(...components)
	_ = exports.Set("objectForKeyPath", func(call goja.FunctionCall) goja.Value {
		components := make([]any, len(call.Arguments))
		for i, arg := range call.Arguments {
			components[i] = exportValue(arg)
		}
		v, err := a.bridge.ObjectForKeyPath(components...)
		a.check(err)
		if v == nil {
			return goja.Null()
		}
		return a.runtime.ToValue(v)
	})

	_ = exports.Set("createActionContextForId", func(call goja.FunctionCall) goja.Value {
		ctx, err := a.bridge.CreateActionContextForID(a.str(call.Argument(0), "createActionContextForId", "message id"))
		a.check(err)
		return a.context(ctx)
	})
	_ = exports.Set("triggerActionForId", func(call goja.FunctionCall) goja.Value {
		ok, err := a.bridge.TriggerActionForID(a.str(call.Argument(0), "triggerActionForId", "message id"))
		a.check(err)
		return a.runtime.ToValue(ok)
	})

	_ = exports.Set("setDeviceId", func(call goja.FunctionCall) goja.Value {
		a.check(a.bridge.SetDeviceID(a.str(call.Argument(0), "setDeviceId", "id")))
		return goja.Undefined()
	})
	_ = exports.Set("deviceId", func(goja.FunctionCall) goja.Value {
		id, err := a.bridge.DeviceID()
		a.check(err)
		return a.runtime.ToValue(id)
	})
	_ = exports.Set("userId", func(goja.FunctionCall) goja.Value {
		id, err := a.bridge.UserID()
		a.check(err)
		return a.runtime.ToValue(id)
	})

	_ = exports.Set("stats", func(goja.FunctionCall) goja.Value {
		s := a.bridge.Stats()
		return a.runtime.ToValue(map[string]any{
			"variables":        s.Variables,
			"contexts":         s.Contexts,
			"pendingCallbacks": s.PendingCallbacks,
			"queuedWork":       s.QueuedWork,
			"routed":           s.Routed,
		})
	})

	// exit(code?) ends the script run.
	_ = exports.Set("exit", func(call goja.FunctionCall) goja.Value {
		if a.exit != nil {
			a.exit(int(call.Argument(0).ToInteger()))
		}
		return goja.Undefined()
	})
}

// check throws err as a GoError.
func (a *api) check(err error) {
	if err != nil {
		panic(a.runtime.NewGoError(err))
	}
}

func (a *api) function(v goja.Value, what string) goja.Callable {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(a.runtime.NewTypeError(what + ": callback must be a function"))
	}
	return fn
}

// invoke calls a script callback from an event; a throw is logged, since
// there is no caller to return it to.
func (a *api) invoke(what string, fn goja.Callable, args ...goja.Value) {
	if _, err := fn(goja.Undefined(), args...); err != nil {
		a.bridge.Logger().Error("sdk: callback threw", "callback", what, "error", err)
	}
}

func (a *api) responder(fn goja.Callable) bridge.Responder {
	return func(ctx *bridge.ActionContext) error {
		_, err := fn(goja.Undefined(), a.context(ctx))
		return err
	}
}

func (a *api) subscription(sub *bridge.Subscription) goja.Value {
	obj := a.runtime.NewObject()
	_ = obj.Set("cancel", func(goja.FunctionCall) goja.Value {
		sub.Cancel()
		return goja.Undefined()
	})
	return obj
}

func (a *api) actionKind(v goja.Value) bridge.ActionKind {
	if isNullish(v) {
		return bridge.ActionKindAction
	}
	if s, ok := v.Export().(string); ok {
		switch strings.ToLower(s) {
		case "message":
			return bridge.ActionKindMessage
		case "action":
			return bridge.ActionKindAction
		}
		panic(a.runtime.NewTypeError(fmt.Sprintf("defineAction: unknown action kind %q", s)))
	}
	return bridge.ActionKind(v.ToInteger())
}

// actionArgs reads [{name, default, kind?}, ...]. kind may be "action",
// "color" or "file"; otherwise it is inferred from default.
func (a *api) actionArgs(v goja.Value) *bridge.ActionArgs {
	if isNullish(v) {
		return nil
	}
	list, ok := v.Export().([]any)
	if !ok {
		panic(a.runtime.NewTypeError("defineAction: args must be an array"))
	}
	args := bridge.NewActionArgs()
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			panic(a.runtime.NewTypeError(fmt.Sprintf("defineAction: args[%d] must be an object", i)))
		}
		name, _ := m["name"].(string)
		if name == "" {
			panic(a.runtime.NewTypeError(fmt.Sprintf("defineAction: args[%d].name must be a string", i)))
		}
		def := m["default"]
		kind, _ := m["kind"].(string)
		switch kind {
		case bridge.ArgKindAction:
			s, _ := def.(string)
			args.WithAction(name, s)
		case bridge.ArgKindColor:
			args.WithColor(name, toInt64(def))
		case bridge.KindFile.String():
			s, _ := def.(string)
			args.WithFile(name, s)
		case "":
			args.With(name, def)
		default:
			a.check(errors.New("defineAction: unknown argument kind " + kind))
		}
	}
	return args
}

func (a *api) exportMap(v goja.Value) map[string]any {
	if isNullish(v) {
		return nil
	}
	m, ok := v.Export().(map[string]any)
	if !ok {
		panic(a.runtime.NewTypeError("expected an object"))
	}
	return m
}

// str converts a required string argument; undefined and null throw rather
// than becoming "undefined" or "null".
func (a *api) str(v goja.Value, what, param string) string {
	if isNullish(v) {
		panic(a.runtime.NewTypeError(what + ": " + param + " must be a string"))
	}
	return v.String()
}

func (a *api) name(v goja.Value, what string) string { return a.str(v, what, "name") }

func (a *api) optString(v goja.Value) string {
	if isNullish(v) {
		return ""
	}
	return v.String()
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func exportValue(v goja.Value) any {
	if isNullish(v) {
		return nil
	}
	return v.Export()
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
