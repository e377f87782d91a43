package bridge

import (
	"log/slog"
	"sync/atomic"
)

// Events groups the bridge-level notifications.
type Events struct {
	Started                            Event[bool]
	VariablesChanged                   Event[struct{}]
	VariablesChangedNoDownloadsPending Event[struct{}]
}

func (e *Events) init(logger *slog.Logger) {
	e.Started.init("started", logger)
	e.VariablesChanged.init("variablesChanged", logger)
	e.VariablesChangedNoDownloadsPending.init("variablesChangedAndNoDownloadsPending", logger)
}

// Router applies inbound lines to the bridge state. Route must only be
// called from the driving goroutine.
type Router struct {
	Vars      *VarCache
	Actions   *Registry
	Contexts  *Graph
	Callbacks *Callbacks
	Events    *Events
	Inbox     Inbox
	Logger    *slog.Logger

	started   atomic.Bool
	succeeded atomic.Bool
	routed    atomic.Uint64
}

// Route parses line and applies it. The line is then handed to the Inbox,
// whatever the outcome.
func (r *Router) Route(line string) {
	defer r.forward(line)
	r.routed.Add(1)

	switch m := ParseMessage(line).(type) {
	case VariablesChanged:
		r.Events.VariablesChanged.Emit(struct{}{})

	case VariablesChangedNoDownloadsPending:
		r.Events.VariablesChangedNoDownloadsPending.Emit(struct{}{})

	case Started:
		r.started.Store(true)
		r.succeeded.Store(m.Success)
		r.Events.Started.Emit(m.Success)

	case VariableValueChanged:
		r.Vars.ApplyValueChanged(m.Name)

	case ContentUpdated:
		if !r.Callbacks.Complete(m.Token) {
			r.log().Debug("no pending callback for token", "token", m.Token)
		}

	case ActionResponder:
		ctx := r.Contexts.GetOrCreate(m.Key)
		handled, err := r.Actions.Respond(ctx.Name(), ctx)
		if err != nil {
			r.log().Warn("action responder failed", "tag", m.Tag(), "key", m.Key, "error", err)
		} else if !handled {
			r.log().Debug("no responder for action", "key", m.Key)
		}

	case OnAction:
		ctx := r.Contexts.GetOrCreate(m.Key)
		if err := r.Actions.Notify(ctx.Name(), ctx); err != nil {
			r.log().Warn("action subscriber failed", "tag", m.Tag(), "key", m.Key, "error", err)
		}

	case RunActionNamed:
		if err := r.Contexts.TriggerNamedResponder(m.ParentKey, m.ChildKey); err != nil {
			r.log().Warn("named responder failed", "tag", m.Tag(), "parent", m.ParentKey, "child", m.ChildKey, "error", err)
		}

	case Malformed:
		r.log().Debug("dropping malformed message", "tag", m.MessageTag, "line", m.Raw, "error", m.Err)

	case Unrecognized:
		// the inbox may still understand it
	}
}

// HasStarted reports whether a Started line has been routed, and whether it
// reported success.
func (r *Router) HasStarted() (started, success bool) {
	return r.started.Load(), r.succeeded.Load()
}

// Routed returns how many lines have been routed.
func (r *Router) Routed() uint64 { return r.routed.Load() }

func (r *Router) forward(line string) {
	if r.Inbox == nil {
		return
	}
	if err := protect(func() error { r.Inbox.HandleMessage(line); return nil }); err != nil {
		r.log().Warn("inbox failed", "line", line, "error", err)
	}
}

func (r *Router) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
