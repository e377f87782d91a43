package builtin

import (
	"context"
	"testing"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/stretchr/testify/assert"
	testifyrequire "github.com/stretchr/testify/require"

	"github.com/joeycumines/sdk-bridge/internal/bridge"
	"github.com/joeycumines/sdk-bridge/internal/platform/simulator"
	"github.com/joeycumines/sdk-bridge/internal/transport"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	sim := simulator.New()
	b, err := bridge.New(sim)
	testifyrequire.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
		_ = sim.Close()
	})

	exited := -1
	registry := require.NewRegistry()
	Register(context.Background(), registry, Modules{
		Bridge:   b,
		Executor: transport.NewExecutor(),
		Exit:     func(code int) { exited = code },
	})

	vm := goja.New()
	registry.Enable(vm)

	v, err := vm.RunString(`
		const sdk = require("bridge:sdk");
		const http = require("bridge:http");
		[typeof sdk.define, typeof sdk.start, typeof http.request].join(",")
	`)
	testifyrequire.NoError(t, err)
	assert.Equal(t, "function,function,function", v.String())

	_, err = vm.RunString(`sdk.exit(2)`)
	testifyrequire.NoError(t, err)
	assert.Equal(t, 2, exited)

	_, err = vm.RunString(`require("bridge:fs")`)
	assert.Error(t, err, "only bridge modules are registered")
}
