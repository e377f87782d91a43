package bridge

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/joeycumines/sdk-bridge/internal/codec"
)

// Bridge connects a script host to one native SDK. Inbound lines may be
// posted from any goroutine; they are applied when the driving goroutine
// calls [Bridge.Tick]. Outbound calls may be made from any goroutine but
// handlers always run on the driver.
type Bridge struct {
	platform Platform
	logger   *slog.Logger

	queue     WorkQueue
	vars      *VarCache
	actions   *Registry
	contexts  *Graph
	callbacks Callbacks
	events    Events
	router    Router

	closed atomic.Bool
}

// Option configures a [Bridge].
type Option func(*options)

type options struct {
	logger *slog.Logger
	inbox  Inbox
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithInbox sets the collaborator that receives every inbound line.
func WithInbox(inbox Inbox) Option {
	return func(o *options) { o.inbox = inbox }
}

// New creates a bridge and attaches it to platform.
func New(platform Platform, opts ...Option) (*Bridge, error) {
	if platform == nil {
		return nil, fmt.Errorf("bridge: nil platform")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	b := &Bridge{
		platform: platform,
		logger:   o.logger,
		vars:     NewVarCache(platform, o.logger),
		actions:  NewRegistry(o.logger),
		contexts: NewGraph(platform),
	}
	b.queue.logger = o.logger
	b.callbacks.logger = o.logger
	b.events.init(o.logger)
	b.router = Router{
		Vars:      b.vars,
		Actions:   b.actions,
		Contexts:  b.contexts,
		Callbacks: &b.callbacks,
		Events:    &b.events,
		Inbox:     o.inbox,
		Logger:    o.logger,
	}

	platform.Listen(func(line string) { b.Post(line) })
	return b, nil
}

// Post schedules line for routing on the next tick. It reports false once
// the bridge is closed, including when Close wins a race with the enqueue.
func (b *Bridge) Post(line string) bool {
	if b.closed.Load() {
		return false
	}
	return b.queue.Enqueue(func() { b.router.Route(line) })
}

// Enqueue schedules fn to run on the next tick. It satisfies the transport
// completion interface.
func (b *Bridge) Enqueue(fn func()) {
	if b.closed.Load() {
		return
	}
	_ = b.queue.Enqueue(fn)
}

// Tick runs all queued work and returns how many items ran.
func (b *Bridge) Tick() int { return b.queue.Drain() }

// Pending returns the number of queued items.
func (b *Bridge) Pending() int { return b.queue.Len() }

// Route applies line immediately. Only call it from the driving goroutine.
func (b *Bridge) Route(line string) { b.router.Route(line) }

// Close detaches from the platform and drops queued work. Subsequent calls
// are no-ops.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.platform.Listen(nil)
	if n := b.queue.close(); n > 0 {
		b.logger.Debug("dropped queued work on close", "count", n)
	}
	return nil
}

// Variables returns the variable cache.
func (b *Bridge) Variables() *VarCache { return b.vars }

// Actions returns the action responder registry.
func (b *Bridge) Actions() *Registry { return b.actions }

// Contexts returns the action context graph.
func (b *Bridge) Contexts() *Graph { return b.contexts }

// Callbacks returns the pending completion table.
func (b *Bridge) Callbacks() *Callbacks { return &b.callbacks }

// Events returns the broadcast events fed by the router.
func (b *Bridge) Events() *Events { return &b.events }

// Logger returns the bridge's logger.
func (b *Bridge) Logger() *slog.Logger { return b.logger }

// Router returns the message router.
func (b *Bridge) Router() *Router { return &b.router }

func (b *Bridge) call(method string, args ...any) (string, error) {
	if b.closed.Load() {
		return "", ErrClosed
	}
	return b.platform.Call(method, args...)
}

// Define defines a variable of the given kind.
func (b *Bridge) Define(name string, kind Kind, defaultValue any) (*Variable, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	return b.vars.Define(name, kind, defaultValue)
}

// DefineInferred defines a variable whose kind is inferred from its default.
func (b *Bridge) DefineInferred(name string, defaultValue any) (*Variable, error) {
	def, err := codec.Normalize(defaultValue)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	kind, err := InferKind(def)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	return b.Define(name, kind, def)
}

// DefineAsset defines a file variable for a bundled resource.
func (b *Bridge) DefineAsset(name, path string) (*Variable, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	return b.Define(AssetPrefix+name, KindFile, path)
}

// DefineAction registers responder as the first-responder for name and
// announces the action. A nil responder announces without registering.
func (b *Bridge) DefineAction(name string, kind ActionKind, args *ActionArgs, options map[string]any, responder Responder) error {
	if name == "" {
		return ErrEmptyName
	}
	var argsJSON any
	if args != nil {
		s, err := args.Encode()
		if err != nil {
			return fmt.Errorf("action %q: %w", name, err)
		}
		argsJSON = s
	}
	optionsJSON, err := codec.EncodeOrNull(options)
	if err != nil {
		return fmt.Errorf("action %q options: %w", name, err)
	}
	if responder != nil {
		if err := b.actions.DefineAction(name, responder); err != nil {
			return err
		}
	}
	if _, err := b.call(MethodDefineAction, name, int(kind), argsJSON, optionsJSON); err != nil {
		if responder != nil {
			b.actions.undefine(name)
		}
		return fmt.Errorf("action %q: define: %w", name, err)
	}
	return nil
}

// OnAction subscribes fn to every delivery of the named action.
func (b *Bridge) OnAction(name string, fn Responder) (*Subscription, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	sub := b.actions.OnAction(name, fn)
	if _, err := b.call(MethodOnAction, name); err != nil {
		sub.Cancel()
		return nil, fmt.Errorf("action %q: subscribe: %w", name, err)
	}
	return sub, nil
}

// OnStarted subscribes fn to the Started event.
func (b *Bridge) OnStarted(fn func(success bool)) *Subscription {
	return b.events.Started.Subscribe(fn)
}

// OnVariablesChanged subscribes fn to every variable refresh.
func (b *Bridge) OnVariablesChanged(fn func()) *Subscription {
	if fn == nil {
		return newSubscription(nil)
	}
	return b.events.VariablesChanged.Subscribe(func(struct{}) { fn() })
}

// OnVariablesChangedAndNoDownloadsPending subscribes fn to refreshes that
// leave no file downloads outstanding.
func (b *Bridge) OnVariablesChangedAndNoDownloadsPending(fn func()) *Subscription {
	if fn == nil {
		return newSubscription(nil)
	}
	return b.events.VariablesChangedNoDownloadsPending.Subscribe(func(struct{}) { fn() })
}

// Start starts the native SDK session. onStarted, if set, is subscribed to
// the Started event before the call is made.
func (b *Bridge) Start(userID string, attributes map[string]any, onStarted func(success bool)) error {
	attrs, err := codec.EncodeOrNull(attributes)
	if err != nil {
		return fmt.Errorf("start attributes: %w", err)
	}
	var sub *Subscription
	if onStarted != nil {
		sub = b.OnStarted(onStarted)
	}
	if _, err := b.call(MethodStart, userID, attrs); err != nil {
		sub.Cancel()
		return fmt.Errorf("start: %w", err)
	}
	return nil
}

// HasStarted asks the native SDK whether a session has started.
func (b *Bridge) HasStarted() (bool, error) {
	raw, err := b.call(MethodHasStarted)
	if err != nil {
		return false, err
	}
	return parseBoolResult(raw)
}

// ForceContentUpdate requests a refresh of server content.
func (b *Bridge) ForceContentUpdate() error {
	_, err := b.call(MethodForceContentUpdate)
	return err
}

// ForceContentUpdateWithCallback requests a refresh and runs fn on the tick
// that routes its completion.
func (b *Bridge) ForceContentUpdateWithCallback(fn func()) error {
	token := b.callbacks.Register(fn)
	if _, err := b.call(MethodForceContentUpdateWithCallback, token); err != nil {
		b.callbacks.Cancel(token)
		return err
	}
	return nil
}

// Track records a custom event with an optional value, info string and
// parameters.
func (b *Bridge) Track(event string, value float64, info string, params map[string]any) error {
	p, err := codec.EncodeOrNull(params)
	if err != nil {
		return fmt.Errorf("track %q: %w", event, err)
	}
	_, err = b.call(MethodTrack, event, value, info, p)
	return err
}

// TrackPurchase records a purchase event in the given currency.
func (b *Bridge) TrackPurchase(event string, value float64, currency string, params map[string]any) error {
	p, err := codec.EncodeOrNull(params)
	if err != nil {
		return fmt.Errorf("track purchase %q: %w", event, err)
	}
	_, err = b.call(MethodTrackPurchase, event, value, currency, p)
	return err
}

// AdvanceTo moves the user to state.
func (b *Bridge) AdvanceTo(state, info string, params map[string]any) error {
	p, err := codec.EncodeOrNull(params)
	if err != nil {
		return fmt.Errorf("advance to %q: %w", state, err)
	}
	_, err = b.call(MethodAdvanceTo, state, info, p)
	return err
}

// SetUserAttributes updates the user's attributes, switching to newUserID
// when it is non-empty.
func (b *Bridge) SetUserAttributes(newUserID string, attributes map[string]any) error {
	attrs, err := codec.EncodeOrNull(attributes)
	if err != nil {
		return fmt.Errorf("user attributes: %w", err)
	}
	_, err = b.call(MethodSetUserAttributes, newUserID, attrs)
	return err
}

// PauseState pauses the current state.
func (b *Bridge) PauseState() error {
	_, err := b.call(MethodPauseState)
	return err
}

// ResumeState resumes the current state.
func (b *Bridge) ResumeState() error {
	_, err := b.call(MethodResumeState)
	return err
}

// Vars returns the native SDK's current variable tree.
func (b *Bridge) Vars() (map[string]any, error) {
	raw, err := b.call(MethodVars)
	if err != nil {
		return nil, err
	}
	return codec.DecodeMap(raw)
}

// Variants returns the A/B variants the user is in.
func (b *Bridge) Variants() ([]any, error) {
	raw, err := b.call(MethodVariants)
	if err != nil {
		return nil, err
	}
	return codec.DecodeList(raw)
}

// MessageMetadata returns metadata for every message known to the SDK.
func (b *Bridge) MessageMetadata() (map[string]any, error) {
	raw, err := b.call(MethodMessageMetadata)
	if err != nil {
		return nil, err
	}
	return codec.DecodeMap(raw)
}

// ObjectForKeyPath resolves a path of map keys and list indices against the
// native variable tree.
func (b *Bridge) ObjectForKeyPath(components ...any) (any, error) {
	path, err := codec.Encode(components)
	if err != nil {
		return nil, fmt.Errorf("key path: %w", err)
	}
	raw, err := b.call(MethodObjectForKeyPath, path)
	if err != nil {
		return nil, err
	}
	return codec.Decode(raw)
}

// CreateActionContextForID builds a context for a message id and stores it
// under the key the native SDK returns.
func (b *Bridge) CreateActionContextForID(messageID string) (*ActionContext, error) {
	if messageID == "" {
		return nil, ErrEmptyName
	}
	key, err := b.call(MethodCreateActionContextForID, messageID)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("message %q: no action context", messageID)
	}
	return b.contexts.GetOrCreate(key), nil
}

// TriggerActionForID asks the native SDK to run a message's action. The
// result reports whether the message exists.
func (b *Bridge) TriggerActionForID(messageID string) (bool, error) {
	if messageID == "" {
		return false, ErrEmptyName
	}
	raw, err := b.call(MethodTriggerAction, messageID)
	if err != nil {
		return false, err
	}
	return parseBoolResult(raw)
}

// SetDeviceID overrides the device identifier.
func (b *Bridge) SetDeviceID(id string) error {
	_, err := b.call(MethodSetDeviceID, id)
	return err
}

// DeviceID returns the device identifier.
func (b *Bridge) DeviceID() (string, error) { return b.call(MethodGetDeviceID) }

// UserID returns the current user identifier.
func (b *Bridge) UserID() (string, error) { return b.call(MethodGetUserID) }

// Stats is a point-in-time snapshot for diagnostics.
type Stats struct {
	Variables        int
	Contexts         int
	PendingCallbacks int
	QueuedWork       int
	Routed           uint64
}

// Stats returns a snapshot of the bridge's bookkeeping.
func (b *Bridge) Stats() Stats {
	return Stats{
		Variables:        b.vars.Len(),
		Contexts:         b.contexts.Len(),
		PendingCallbacks: b.callbacks.Pending(),
		QueuedWork:       b.queue.Len(),
		Routed:           b.router.Routed(),
	}
}

func (s Stats) String() string {
	return "variables=" + strconv.Itoa(s.Variables) +
		" contexts=" + strconv.Itoa(s.Contexts) +
		" pendingCallbacks=" + strconv.Itoa(s.PendingCallbacks) +
		" queued=" + strconv.Itoa(s.QueuedWork) +
		" routed=" + strconv.FormatUint(s.Routed, 10)
}
