// Package builtin registers the native modules scripts can require.
package builtin

import (
	"context"

	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/sdk-bridge/internal/bridge"
	"github.com/joeycumines/sdk-bridge/internal/builtin/fetch"
	"github.com/joeycumines/sdk-bridge/internal/builtin/sdk"
	"github.com/joeycumines/sdk-bridge/internal/transport"
)

// Modules are the host collaborators the native modules are bound to.
type Modules struct {
	Bridge   *bridge.Bridge
	Executor *transport.Executor
	// Exit is called by the sdk module's exit(code). May be nil.
	Exit func(code int)
}

// Register binds "bridge:sdk" and "bridge:http" into registry. HTTP
// completions are enqueued on the bridge, so they settle on its driving
// goroutine.
func Register(ctx context.Context, registry *require.Registry, m Modules) {
	registry.RegisterNativeModule(sdk.ModuleName, sdk.Require(m.Bridge, m.Exit))
	registry.RegisterNativeModule(fetch.ModuleName, fetch.Require(ctx, m.Executor, m.Bridge))
}
