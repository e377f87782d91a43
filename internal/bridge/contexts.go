package bridge

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/joeycumines/sdk-bridge/internal/codec"
)

// ActionContext is one delivery of an action, identified by the key
// "actionName:messageId". Its accessors read arguments from the native side.
type ActionContext struct {
	key       string
	name      string
	messageID string
	caller    Caller

	mu    sync.Mutex
	named Responder
}

func (c *ActionContext) Key() string       { return c.key }
func (c *ActionContext) Name() string      { return c.name }
func (c *ActionContext) MessageID() string { return c.messageID }

// SetNamedResponder installs the handler used when this context runs a
// named child action. A nil responder clears it.
func (c *ActionContext) SetNamedResponder(r Responder) {
	c.mu.Lock()
	c.named = r
	c.mu.Unlock()
}

// TriggerNamedResponder invokes the named responder with child. Without a
// responder it does nothing.
func (c *ActionContext) TriggerNamedResponder(child *ActionContext) error {
	c.mu.Lock()
	r := c.named
	c.mu.Unlock()
	if r == nil {
		return nil
	}
	return protect(func() error { return r(child) })
}

// StringNamed returns the string argument called name.
func (c *ActionContext) StringNamed(name string) (string, error) {
	v, err := c.argument(MethodContextStringNamed, name)
	if err != nil || v == nil {
		return "", err
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", fmt.Errorf("context %q argument %q: not a string", c.key, name)
}

// NumberNamed returns the numeric argument called name.
func (c *ActionContext) NumberNamed(name string) (float64, error) {
	v, err := c.argument(MethodContextNumberNamed, name)
	if err != nil || v == nil {
		return 0, err
	}
	switch x := v.(type) {
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("context %q argument %q: %w", c.key, name, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("context %q argument %q: not a number", c.key, name)
}

// BoolNamed returns the boolean argument called name.
func (c *ActionContext) BoolNamed(name string) (bool, error) {
	v, err := c.argument(MethodContextBoolNamed, name)
	if err != nil || v == nil {
		return false, err
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return parseBoolResult(x)
	}
	return false, fmt.Errorf("context %q argument %q: not a bool", c.key, name)
}

// ObjectNamed returns the decoded structured argument called name.
func (c *ActionContext) ObjectNamed(name string) (any, error) {
	return c.argument(MethodContextObjectNamed, name)
}

// RunActionNamed asks the native SDK to run the child action stored in the
// argument called name. The child arrives as an OnRunActionNamed line.
func (c *ActionContext) RunActionNamed(name string) error {
	_, err := c.caller.Call(MethodContextRunActionNamed, c.key, name)
	return err
}

// RunTrackedActionNamed is RunActionNamed with an accompanying track event.
func (c *ActionContext) RunTrackedActionNamed(name string) error {
	_, err := c.caller.Call(MethodContextRunTrackedActionNamed, c.key, name)
	return err
}

// Track records an event attributed to this context's message.
func (c *ActionContext) Track(event string, value float64, params map[string]any) error {
	p, err := codec.EncodeOrNull(params)
	if err != nil {
		return err
	}
	_, err = c.caller.Call(MethodContextTrack, c.key, event, value, p)
	return err
}

// Dismissed tells the native SDK the message for this context was closed.
func (c *ActionContext) Dismissed() error {
	_, err := c.caller.Call(MethodContextDismissed, c.key)
	return err
}

func (c *ActionContext) argument(method, name string) (any, error) {
	if c.caller == nil {
		return nil, fmt.Errorf("context %q: detached", c.key)
	}
	raw, err := c.caller.Call(method, c.key, name)
	if err != nil {
		return nil, err
	}
	v, err := codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("context %q argument %q: %w", c.key, name, err)
	}
	return v, nil
}

// Graph stores action contexts by key. Contexts are never evicted.
type Graph struct {
	caller Caller

	mu       sync.Mutex
	contexts map[string]*ActionContext
}

// NewGraph returns an empty graph whose contexts call out through caller.
func NewGraph(caller Caller) *Graph {
	return &Graph{caller: caller, contexts: make(map[string]*ActionContext)}
}

// GetOrCreate returns the context for key, creating it on first use.
func (g *Graph) GetOrCreate(key string) *ActionContext {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.contexts[key]; ok {
		return c
	}
	name, messageID := SplitContextKey(key)
	c := &ActionContext{key: key, name: name, messageID: messageID, caller: g.caller}
	g.contexts[key] = c
	return c
}

// Lookup returns the context for key without creating it.
func (g *Graph) Lookup(key string) (*ActionContext, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.contexts[key]
	return c, ok
}

// Len returns the number of stored contexts.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.contexts)
}

// TriggerNamedResponder delivers childKey to the named responder of the
// context stored under parentKey. An unknown parent is ignored.
func (g *Graph) TriggerNamedResponder(parentKey, childKey string) error {
	parent, ok := g.Lookup(parentKey)
	if !ok {
		return nil
	}
	return parent.TriggerNamedResponder(g.GetOrCreate(childKey))
}

func parseBoolResult(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
