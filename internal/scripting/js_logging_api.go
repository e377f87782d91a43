package scripting

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/dop251/goja"
)

// newLogObject builds the script-facing `log` global:
//
//	log.debug(msg, attrs?) / info / warn / error
//	log.getLogs(count?)    newest count entries, oldest first
//	log.searchLogs(query)
//	log.clear()
func newLogObject(vm *goja.Runtime, logs *RingLogger) *goja.Object {
	obj := vm.NewObject()
	for name, level := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		_ = obj.Set(name, func(call goja.FunctionCall) goja.Value {
			logs.Logger().LogAttrs(context.Background(), level, call.Argument(0).String(), jsAttrs(call.Argument(1))...)
			return goja.Undefined()
		})
	}
	_ = obj.Set("getLogs", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(jsEntries(logs.Recent(int(call.Argument(0).ToInteger()))))
	})
	_ = obj.Set("searchLogs", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(jsEntries(logs.Search(call.Argument(0).String())))
	})
	_ = obj.Set("clear", func(goja.FunctionCall) goja.Value {
		logs.Clear()
		return goja.Undefined()
	})
	return obj
}

func jsAttrs(v goja.Value) []slog.Attr {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	m, ok := v.Export().(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, m[k]))
	}
	return attrs
}

func jsEntries(entries []LogEntry) []any {
	out := make([]any, len(entries))
	for i, e := range entries {
		attrs := make(map[string]any, len(e.Attrs))
		for k, v := range e.Attrs {
			attrs[k] = v
		}
		out[i] = map[string]any{
			"time":    e.Time.Format(time.RFC3339Nano),
			"level":   e.Level.String(),
			"message": e.Message,
			"attrs":   attrs,
		}
	}
	return out
}
