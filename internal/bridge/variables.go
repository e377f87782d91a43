package bridge

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/joeycumines/sdk-bridge/internal/codec"
)

// AssetPrefix namespaces variables defined through [Bridge.DefineAsset].
const AssetPrefix = "__Resources.Assets."

// Variable is the local mirror of one server-controlled value.
type Variable struct {
	name string
	kind Kind
	def  any

	mu      sync.RWMutex
	value   any
	changed Event[*Variable]
}

func (v *Variable) Name() string      { return v.name }
func (v *Variable) Kind() Kind        { return v.kind }
func (v *Variable) DefaultValue() any { return v.def }

// Value returns the last value fetched from the native SDK, or the default
// if no change has been applied yet.
func (v *Variable) Value() any {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// OnChange registers fn to run after every applied change notification.
func (v *Variable) OnChange(fn func(*Variable)) *Subscription {
	return v.changed.Subscribe(fn)
}

func (v *Variable) set(value any) {
	v.mu.Lock()
	v.value = value
	v.mu.Unlock()
}

// VarCache holds every variable defined through a bridge, keyed by name.
type VarCache struct {
	caller Caller
	logger *slog.Logger

	mu   sync.Mutex
	vars map[string]*Variable
}

// NewVarCache returns an empty cache that fetches values through caller.
func NewVarCache(caller Caller, logger *slog.Logger) *VarCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &VarCache{
		caller: caller,
		logger: logger,
		vars:   make(map[string]*Variable),
	}
}

// Define returns the variable called name, creating it (and announcing it to
// the native SDK) if absent. Redefining with the same kind returns the
// existing variable without an outbound call; a different kind fails with a
// *KindMismatchError and leaves the cache as it was.
func (c *VarCache) Define(name string, kind Kind, defaultValue any) (*Variable, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("variable %q: invalid kind %d", name, int(kind))
	}

	c.mu.Lock()
	if existing, ok := c.vars[name]; ok {
		c.mu.Unlock()
		if existing.kind != kind {
			return nil, &KindMismatchError{Name: name, Existing: existing.kind, Wanted: kind}
		}
		return existing, nil
	}
	c.mu.Unlock()

	def, err := codec.Normalize(defaultValue)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	defJSON, err := codec.Encode(def)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}

	v := &Variable{name: name, kind: kind, def: def, value: def}
	v.changed.init("variable:"+name, c.logger)

	c.mu.Lock()
	if existing, ok := c.vars[name]; ok {
		// lost a race with a concurrent Define
		c.mu.Unlock()
		if existing.kind != kind {
			return nil, &KindMismatchError{Name: name, Existing: existing.kind, Wanted: kind}
		}
		return existing, nil
	}
	c.vars[name] = v
	c.mu.Unlock()

	if _, err := c.caller.Call(MethodDefineVar, name, kind.String(), defJSON); err != nil {
		c.mu.Lock()
		if c.vars[name] == v {
			delete(c.vars, name)
		}
		c.mu.Unlock()
		return nil, fmt.Errorf("variable %q: define: %w", name, err)
	}

	c.logger.Debug("variable defined", "name", name, "kind", kind.String())
	return v, nil
}

// Lookup returns the variable called name.
func (c *VarCache) Lookup(name string) (*Variable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vars[name]
	return v, ok
}

// Names returns every defined name, sorted.
func (c *VarCache) Names() []string {
	c.mu.Lock()
	names := make([]string, 0, len(c.vars))
	for name := range c.vars {
		names = append(names, name)
	}
	c.mu.Unlock()
	slices.Sort(names)
	return names
}

// Len returns the number of defined variables.
func (c *VarCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vars)
}

// ApplyValueChanged refreshes the named variable from the native SDK and
// notifies its observers once. Unknown names are ignored. A failed fetch
// keeps the previous value; observers are still notified because the native
// side has already committed the change.
func (c *VarCache) ApplyValueChanged(name string) {
	v, ok := c.Lookup(name)
	if !ok {
		c.logger.Debug("value change for unknown variable", "name", name)
		return
	}

	if value, err := c.fetch(v); err != nil {
		c.logger.Warn("variable fetch failed, keeping cached value", "name", name, "error", err)
	} else {
		v.set(value)
	}

	v.changed.Emit(v)
}

func (c *VarCache) fetch(v *Variable) (any, error) {
	raw, err := c.caller.Call(MethodGetVariableValue, v.name, v.kind.String())
	if err != nil {
		return nil, err
	}
	value, err := codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return v.def, nil
	}
	return value, nil
}
