package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joeycumines/sdk-bridge/internal/codec"
)

// Responder handles an action delivered for a context.
type Responder func(*ActionContext) error

// Registry tracks, per action name, one first-responder plus any number of
// subscribers.
type Registry struct {
	logger *slog.Logger

	mu          sync.Mutex
	nextID      uint64
	responders  map[string]Responder
	subscribers map[string][]actionSub
}

type actionSub struct {
	id uint64
	fn Responder
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:      logger,
		responders:  make(map[string]Responder),
		subscribers: make(map[string][]actionSub),
	}
}

// DefineAction installs the first-responder for name. Only one may exist;
// a second attempt fails with *DuplicateResponderError and keeps the first.
func (r *Registry) DefineAction(name string, responder Responder) error {
	if name == "" {
		return ErrEmptyName
	}
	if responder == nil {
		return fmt.Errorf("action %q: nil responder", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.responders[name]; ok {
		return &DuplicateResponderError{Action: name}
	}
	r.responders[name] = responder
	return nil
}

// undefine removes the first-responder for name so a failed announcement can
// be retried.
func (r *Registry) undefine(name string) {
	r.mu.Lock()
	delete(r.responders, name)
	r.mu.Unlock()
}

// HasResponder reports whether name has a first-responder.
func (r *Registry) HasResponder(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.responders[name]
	return ok
}

// OnAction appends a subscriber for name. The same function may be
// registered repeatedly; each registration has its own handle.
func (r *Registry) OnAction(name string, fn Responder) *Subscription {
	if fn == nil {
		return newSubscription(nil)
	}
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subscribers[name] = append(r.subscribers[name], actionSub{id: id, fn: fn})
	r.mu.Unlock()
	return newSubscription(func() { r.removeSubscriber(name, id) })
}

func (r *Registry) removeSubscriber(name string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.subscribers[name]
	for i, s := range subs {
		if s.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(r.subscribers, name)
	} else {
		r.subscribers[name] = subs
	}
}

// Subscribers returns the number of subscribers for name.
func (r *Registry) Subscribers(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers[name])
}

// Respond invokes the first-responder for name, if any.
func (r *Registry) Respond(name string, ctx *ActionContext) (bool, error) {
	r.mu.Lock()
	responder, ok := r.responders[name]
	r.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := protect(func() error { return responder(ctx) }); err != nil {
		return true, fmt.Errorf("action %q responder: %w", name, err)
	}
	return true, nil
}

// Notify invokes every subscriber for name in registration order. A failing
// subscriber does not stop the rest; all failures are joined.
func (r *Registry) Notify(name string, ctx *ActionContext) error {
	r.mu.Lock()
	subs := r.subscribers[name]
	r.mu.Unlock()

	var errs []error
	for i, s := range subs {
		fn := s.fn
		if err := protect(func() error { return fn(ctx) }); err != nil {
			errs = append(errs, fmt.Errorf("action %q subscriber %d: %w", name, i, err))
		}
	}
	return errors.Join(errs...)
}

// Dispatch runs Respond followed by Notify.
func (r *Registry) Dispatch(name string, ctx *ActionContext) error {
	_, err := r.Respond(name, ctx)
	return errors.Join(err, r.Notify(name, ctx))
}

// Argument kinds accepted by the native SDK beyond the variable kinds.
const (
	ArgKindAction = "action"
	ArgKindColor  = "color"
)

// ActionArg describes one argument of a defined action.
type ActionArg struct {
	Name    string
	Kind    string
	Default any
}

// ActionArgs is an ordered argument list. The builder methods record the
// first error and ignore subsequent calls; Encode reports it.
type ActionArgs struct {
	args []ActionArg
	err  error
}

// NewActionArgs returns an empty argument list.
func NewActionArgs() *ActionArgs { return &ActionArgs{} }

// With adds an argument whose kind is inferred from its default.
func (a *ActionArgs) With(name string, defaultValue any) *ActionArgs {
	if a.err != nil {
		return a
	}
	def, err := codec.Normalize(defaultValue)
	if err != nil {
		a.err = fmt.Errorf("argument %q: %w", name, err)
		return a
	}
	kind, err := InferKind(def)
	if err != nil {
		a.err = fmt.Errorf("argument %q: %w", name, err)
		return a
	}
	return a.add(name, kind.String(), def)
}

// WithAction adds an argument naming another action.
func (a *ActionArgs) WithAction(name, defaultAction string) *ActionArgs {
	return a.add(name, ArgKindAction, defaultAction)
}

// WithColor adds an ARGB colour argument.
func (a *ActionArgs) WithColor(name string, argb int64) *ActionArgs {
	return a.add(name, ArgKindColor, argb)
}

// WithFile adds a file argument whose default is a resource path.
func (a *ActionArgs) WithFile(name, path string) *ActionArgs {
	return a.add(name, KindFile.String(), path)
}

func (a *ActionArgs) add(name, kind string, def any) *ActionArgs {
	if a.err != nil {
		return a
	}
	if name == "" {
		a.err = fmt.Errorf("argument: %w", ErrEmptyName)
		return a
	}
	a.args = append(a.args, ActionArg{Name: name, Kind: kind, Default: def})
	return a
}

// Args returns a copy of the recorded arguments.
func (a *ActionArgs) Args() []ActionArg {
	if a == nil {
		return nil
	}
	return append([]ActionArg(nil), a.args...)
}

// Encode returns the JSON list of [name, kind, default] triples.
func (a *ActionArgs) Encode() (string, error) {
	if a.err != nil {
		return "", a.err
	}
	list := make([]any, len(a.args))
	for i, arg := range a.args {
		list[i] = []any{arg.Name, arg.Kind, arg.Default}
	}
	return codec.Encode(list)
}
