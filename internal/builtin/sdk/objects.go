package sdk

import (
	"github.com/dop251/goja"

	"github.com/joeycumines/sdk-bridge/internal/bridge"
)

// variable returns the script object for v, one per variable.
//
//	name, kind        strings
//	value()           current value
//	defaultValue()
//	onChange(fn)      fn(variable) on every change; returns {cancel()}
func (a *api) variable(v *bridge.Variable) goja.Value {
	if obj, ok := a.vars[v]; ok {
		return obj
	}
	obj := a.runtime.NewObject()
	_ = obj.Set("name", v.Name())
	_ = obj.Set("kind", v.Kind().String())
	_ = obj.Set("value", func(goja.FunctionCall) goja.Value {
		return a.toValue(v.Value())
	})
	_ = obj.Set("defaultValue", func(goja.FunctionCall) goja.Value {
		return a.toValue(v.DefaultValue())
	})
	_ = obj.Set("onChange", func(call goja.FunctionCall) goja.Value {
		fn := a.function(call.Argument(0), "onChange")
		return a.subscription(v.OnChange(func(*bridge.Variable) {
			a.invoke("onChange", fn, obj)
		}))
	})
	a.vars[v] = obj
	return obj
}

// context returns the script object for ctx, one per context.
func (a *api) context(ctx *bridge.ActionContext) goja.Value {
	if obj, ok := a.contexts[ctx]; ok {
		return obj
	}
	obj := a.runtime.NewObject()
	_ = obj.Set("key", ctx.Key())
	_ = obj.Set("name", ctx.Name())
	_ = obj.Set("messageId", ctx.MessageID())

	_ = obj.Set("stringNamed", func(call goja.FunctionCall) goja.Value {
		s, err := ctx.StringNamed(a.name(call.Argument(0), "stringNamed"))
		a.check(err)
		return a.runtime.ToValue(s)
	})
	_ = obj.Set("numberNamed", func(call goja.FunctionCall) goja.Value {
		n, err := ctx.NumberNamed(a.name(call.Argument(0), "numberNamed"))
		a.check(err)
		return a.runtime.ToValue(n)
	})
	_ = obj.Set("boolNamed", func(call goja.FunctionCall) goja.Value {
		b, err := ctx.BoolNamed(a.name(call.Argument(0), "boolNamed"))
		a.check(err)
		return a.runtime.ToValue(b)
	})
	_ = obj.Set("objectNamed", func(call goja.FunctionCall) goja.Value {
		v, err := ctx.ObjectNamed(a.name(call.Argument(0), "objectNamed"))
		a.check(err)
		return a.toValue(v)
	})
	_ = obj.Set("runActionNamed", func(call goja.FunctionCall) goja.Value {
		a.check(ctx.RunActionNamed(a.name(call.Argument(0), "runActionNamed")))
		return goja.Undefined()
	})
	_ = obj.Set("runTrackedActionNamed", func(call goja.FunctionCall) goja.Value {
		a.check(ctx.RunTrackedActionNamed(a.name(call.Argument(0), "runTrackedActionNamed")))
		return goja.Undefined()
	})
	_ = obj.Set("track", func(call goja.FunctionCall) goja.Value {
		a.check(ctx.Track(a.str(call.Argument(0), "track", "event"), call.Argument(1).ToFloat(), a.exportMap(call.Argument(2))))
		return goja.Undefined()
	})
	_ = obj.Set("dismissed", func(goja.FunctionCall) goja.Value {
		a.check(ctx.Dismissed())
		return goja.Undefined()
	})
	// setNamedResponder(fn) receives the child context of runActionNamed.
	_ = obj.Set("setNamedResponder", func(call goja.FunctionCall) goja.Value {
		if isNullish(call.Argument(0)) {
			ctx.SetNamedResponder(nil)
		} else {
			ctx.SetNamedResponder(a.responder(a.function(call.Argument(0), "setNamedResponder")))
		}
		return goja.Undefined()
	})
	a.contexts[ctx] = obj
	return obj
}

func (a *api) toValue(v any) goja.Value {
	if v == nil {
		return goja.Null()
	}
	return a.runtime.ToValue(v)
}
