// Package fetch provides the "bridge:http" module: asynchronous HTTP
// requests whose promises settle on the event loop, through the bridge work
// queue.
//
//	const http = require("bridge:http");
//	http.request(url, {form: {action: "start"}, timeout: 5})
//	    .then(resp => resp.json())
//	    .catch(err => log.warn(err.message, {status: err.status}));
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/sdk-bridge/internal/codec"
	"github.com/joeycumines/sdk-bridge/internal/transport"
)

// ModuleName is the require() name.
const ModuleName = "bridge:http"

// Require returns the loader for ModuleName. Completions are enqueued on q,
// which must be drained on the goroutine that owns the runtime.
func Require(ctx context.Context, exec *transport.Executor, q transport.Enqueuer) require.ModuleLoader {
	return func(runtime *goja.Runtime, module *goja.Object) {
		exports := module.Get("exports").(*goja.Object)

		// request(url: string, options?: object): Promise<Response>
		//
		// Options:
		//   form    - object of fields; the request is POSTed url-encoded
		//             when present, otherwise it is a GET
		//   timeout - seconds; defaults to the executor's timeouts
		//   asset   - resolve with the raw body as an ArrayBuffer
		//
		// Response:
		//   status  - HTTP status code
		//   ok      - true for 2xx
		//   text()  - body as a string
		//   json()  - body parsed as JSON
		//   body    - ArrayBuffer, asset requests only
		//
		// Failures reject with an Error carrying a numeric status; 408 for
		// timeouts.
		_ = exports.Set("request", func(call goja.FunctionCall) goja.Value {
			req := transport.Request{URL: call.Argument(0).String()}
			if opts := call.Argument(1); !goja.IsUndefined(opts) && !goja.IsNull(opts) {
				m, ok := opts.Export().(map[string]any)
				if !ok {
					panic(runtime.NewTypeError("request: options must be an object"))
				}
				if err := applyOptions(&req, m); err != nil {
					panic(runtime.NewGoError(err))
				}
			}

			promise, resolve, reject := runtime.NewPromise()
			exec.Go(ctx, req, q, func(resp transport.Response) {
				if resp.Err != nil {
					e := runtime.NewGoError(resp.Err)
					_ = e.Set("status", resp.StatusCode)
					_ = e.Set("body", resp.Text)
					_ = reject(e)
					return
				}
				_ = resolve(newResponse(runtime, resp))
			})
			return runtime.ToValue(promise)
		})
	}
}

func applyOptions(req *transport.Request, opts map[string]any) error {
	if f, ok := opts["form"]; ok && f != nil {
		fields, ok := f.(map[string]any)
		if !ok {
			return errors.New("request: form must be an object")
		}
		req.Form = url.Values{}
		for k, v := range fields {
			switch v := v.(type) {
			case nil:
			case []any:
				for _, item := range v {
					req.Form.Add(k, fmt.Sprint(item))
				}
			default:
				req.Form.Set(k, fmt.Sprint(v))
			}
		}
	}
	switch t := opts["timeout"].(type) {
	case int64:
		req.Timeout = time.Duration(t) * time.Second
	case float64:
		req.Timeout = time.Duration(t * float64(time.Second))
	}
	if a, ok := opts["asset"].(bool); ok {
		req.Asset = a
	}
	return nil
}

func newResponse(runtime *goja.Runtime, resp transport.Response) *goja.Object {
	obj := runtime.NewObject()
	_ = obj.Set("status", resp.StatusCode)
	_ = obj.Set("ok", resp.OK())
	text := resp.Text
	_ = obj.Set("text", func(goja.FunctionCall) goja.Value { return runtime.ToValue(text) })
	_ = obj.Set("json", func(goja.FunctionCall) goja.Value {
		parsed, err := codec.Decode(text)
		if err != nil {
			panic(runtime.NewGoError(err))
		}
		return runtime.ToValue(parsed)
	})
	if resp.Asset != nil {
		_ = obj.Set("body", runtime.NewArrayBuffer(resp.Asset))
	}
	return obj
}
