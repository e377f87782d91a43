// Package simulator provides an in-process stand-in for the native SDK.
//
// A Simulator implements [bridge.Platform]. Outbound calls are answered from
// local state seeded by a [Fixture]; the notification lines a real SDK would
// send back are emitted asynchronously, in order, from a dedicated goroutine.
package simulator

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/sdk-bridge/internal/bridge"
	"github.com/joeycumines/sdk-bridge/internal/codec"
)

// ErrUnknownMethod is returned for methods the simulator does not implement.
var ErrUnknownMethod = errors.New("simulator: unknown method")

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("simulator: closed")

const outboxSize = 1024

// Call is one recorded outbound call.
type Call struct {
	Method string
	Args   []any
	Err    error
}

// TrackedEvent is an analytics event recorded by the simulator.
type TrackedEvent struct {
	Kind   string // track, purchase, state or context
	Name   string
	Value  float64
	Info   string
	Params map[string]any
}

type definedVar struct {
	kind bridge.Kind
	def  any
}

type definedAction struct {
	kind    int
	args    any
	options any
}

// Simulator is a loopback native SDK.
type Simulator struct {
	logger  *slog.Logger
	latency time.Duration

	mu         sync.Mutex
	fixture    Fixture
	defined    map[string]definedVar
	overrides  map[string]any
	actions    map[string]definedAction
	listeners  map[string]int
	attributes map[string]any
	calls      []Call
	events     []TrackedEvent
	dismissed  []string
	deviceID   string
	userID     string
	state      string
	started    bool
	paused     bool

	recvMu   sync.RWMutex
	receiver func(string)

	out       chan string
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithFixture seeds the simulator. The fixture is copied.
func WithFixture(f *Fixture) Option {
	return func(s *Simulator) {
		if f != nil {
			s.fixture = *f
		}
	}
}

// WithLatency delays every emitted line by d.
func WithLatency(d time.Duration) Option {
	return func(s *Simulator) { s.latency = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

// New starts a simulator. Close it to stop the emitter goroutine.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		logger:     slog.Default(),
		defined:    make(map[string]definedVar),
		overrides:  make(map[string]any),
		actions:    make(map[string]definedAction),
		listeners:  make(map[string]int),
		attributes: make(map[string]any),
		out:        make(chan string, outboxSize),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	maps.Copy(s.overrides, s.fixture.Variables)
	s.deviceID = s.fixture.DeviceID
	if s.deviceID == "" {
		s.deviceID = uuid.NewString()
	}
	s.userID = s.fixture.UserID
	if s.userID == "" {
		s.userID = uuid.NewString()
	}

	s.wg.Add(1)
	go s.pump()
	return s
}

// Listen implements bridge.Platform.
func (s *Simulator) Listen(receiver func(line string)) {
	s.recvMu.Lock()
	s.receiver = receiver
	s.recvMu.Unlock()
}

// Close stops the emitter. Lines not yet delivered are dropped.
func (s *Simulator) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

func (s *Simulator) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Simulator) pump() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case line := <-s.out:
			if s.latency > 0 {
				timer := time.NewTimer(s.latency)
				select {
				case <-s.done:
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			s.recvMu.RLock()
			receiver := s.receiver
			s.recvMu.RUnlock()
			if receiver == nil {
				s.logger.Debug("simulator: no receiver, dropping line", "line", line)
				continue
			}
			receiver(line)
		}
	}
}

// Emit queues a raw notification line.
func (s *Simulator) Emit(lines ...string) {
	for _, line := range lines {
		select {
		case s.out <- line:
		case <-s.done:
			return
		}
	}
}

type handler func(s *Simulator, args []any) (result string, emit []string, err error)

var methods = map[string]handler{
	bridge.MethodDefineVar:                      (*Simulator).defineVar,
	bridge.MethodGetVariableValue:               (*Simulator).getVariableValue,
	bridge.MethodDefineAction:                   (*Simulator).defineAction,
	bridge.MethodOnAction:                       (*Simulator).onAction,
	bridge.MethodStart:                          (*Simulator).start,
	bridge.MethodHasStarted:                     (*Simulator).hasStarted,
	bridge.MethodForceContentUpdate:             (*Simulator).forceContentUpdate,
	bridge.MethodForceContentUpdateWithCallback: (*Simulator).forceContentUpdateWithCallback,
	bridge.MethodCreateActionContextForID:       (*Simulator).createActionContextForID,
	bridge.MethodTriggerAction:                  (*Simulator).triggerAction,
	bridge.MethodVars:                           (*Simulator).vars,
	bridge.MethodVariants:                       (*Simulator).variants,
	bridge.MethodMessageMetadata:                (*Simulator).messageMetadata,
	bridge.MethodObjectForKeyPath:               (*Simulator).objectForKeyPath,
	bridge.MethodTrack:                          (*Simulator).track,
	bridge.MethodTrackPurchase:                  (*Simulator).trackPurchase,
	bridge.MethodAdvanceTo:                      (*Simulator).advanceTo,
	bridge.MethodSetUserAttributes:              (*Simulator).setUserAttributes,
	bridge.MethodPauseState:                     (*Simulator).pauseState,
	bridge.MethodResumeState:                    (*Simulator).resumeState,
	bridge.MethodSetDeviceID:                    (*Simulator).setDeviceID,
	bridge.MethodGetDeviceID:                    (*Simulator).getDeviceID,
	bridge.MethodGetUserID:                      (*Simulator).getUserID,

	bridge.MethodContextStringNamed:           (*Simulator).contextArgument,
	bridge.MethodContextNumberNamed:           (*Simulator).contextArgument,
	bridge.MethodContextBoolNamed:             (*Simulator).contextArgument,
	bridge.MethodContextObjectNamed:           (*Simulator).contextArgument,
	bridge.MethodContextRunActionNamed:        (*Simulator).contextRunActionNamed,
	bridge.MethodContextRunTrackedActionNamed: (*Simulator).contextRunTrackedActionNamed,
	bridge.MethodContextTrack:                 (*Simulator).contextTrack,
	bridge.MethodContextDismissed:             (*Simulator).contextDismissed,
}

// Call implements bridge.Platform.
func (s *Simulator) Call(method string, args ...any) (string, error) {
	if s.closed() {
		return "", ErrClosed
	}
	h, ok := methods[method]

	s.mu.Lock()
	var (
		result string
		lines  []string
		err    error
	)
	if ok {
		result, lines, err = h(s, args)
	} else {
		err = fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	s.calls = append(s.calls, Call{Method: method, Args: slices.Clone(args), Err: err})
	s.mu.Unlock()

	if err != nil {
		s.logger.Debug("simulator call failed", "method", method, "error", err)
		return "", err
	}
	s.Emit(lines...)
	return result, nil
}

// Calls returns every call made so far.
func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallsTo returns the calls made to method.
func (s *Simulator) CallsTo(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Events returns the tracked analytics events.
func (s *Simulator) Events() []TrackedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Started reports whether start has been called.
func (s *Simulator) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// State returns the last state passed to advanceTo.
func (s *Simulator) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Listeners returns how many onAction registrations name has received.
func (s *Simulator) Listeners(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listeners[name]
}

// SetOverride changes the server value of a variable and notifies the
// client, as a content refresh would.
func (s *Simulator) SetOverride(name string, value any) error {
	v, err := codec.Normalize(value)
	if err != nil {
		return fmt.Errorf("override %q: %w", name, err)
	}
	s.mu.Lock()
	s.overrides[name] = v
	_, defined := s.defined[name]
	s.mu.Unlock()

	if defined {
		s.Emit(bridge.VariableValueChanged{Name: name}.String())
	}
	s.Emit(bridge.VariablesChanged{}.String())
	return nil
}

// Trigger fires the action of a fixture message, as if the server had
// delivered it. It reports whether the message exists.
func (s *Simulator) Trigger(messageID string) bool {
	s.mu.Lock()
	lines, ok := s.triggerLines(messageID)
	s.mu.Unlock()
	s.Emit(lines...)
	return ok
}

func (s *Simulator) triggerLines(messageID string) ([]string, bool) {
	m, ok := s.fixture.Messages[messageID]
	if !ok {
		return nil, false
	}
	key := bridge.JoinContextKey(m.Action, messageID)
	return []string{
		bridge.ActionResponder{Key: key}.String(),
		bridge.OnAction{Key: key}.String(),
	}, true
}

func (s *Simulator) value(name string) any {
	if v, ok := s.overrides[name]; ok {
		return v
	}
	return s.defined[name].def
}

func (s *Simulator) effectiveVars() map[string]any {
	out := make(map[string]any, len(s.defined))
	for name := range s.defined {
		out[name] = s.value(name)
	}
	return out
}

func (s *Simulator) defineVar(args []any) (string, []string, error) {
	name, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	tag, err := argString(args, 1)
	if err != nil {
		return "", nil, err
	}
	kind, err := bridge.ParseKind(tag)
	if err != nil {
		return "", nil, err
	}
	def, err := argJSON(args, 2)
	if err != nil {
		return "", nil, err
	}
	s.defined[name] = definedVar{kind: kind, def: def}
	return "", nil, nil
}

func (s *Simulator) getVariableValue(args []any) (string, []string, error) {
	name, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	out, err := codec.Encode(s.value(name))
	return out, nil, err
}

func (s *Simulator) defineAction(args []any) (string, []string, error) {
	name, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	kind, err := argInt(args, 1)
	if err != nil {
		return "", nil, err
	}
	actionArgs, err := argJSON(args, 2)
	if err != nil {
		return "", nil, err
	}
	options, err := argJSON(args, 3)
	if err != nil {
		return "", nil, err
	}
	s.actions[name] = definedAction{kind: kind, args: actionArgs, options: options}
	return "", nil, nil
}

func (s *Simulator) onAction(args []any) (string, []string, error) {
	name, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	s.listeners[name]++
	return "", nil, nil
}

func (s *Simulator) start(args []any) (string, []string, error) {
	userID, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	attrs, err := argJSONMap(args, 1)
	if err != nil {
		return "", nil, err
	}
	if userID != "" {
		s.userID = userID
	}
	maps.Copy(s.attributes, attrs)
	s.started = true

	var lines []string
	for _, name := range slices.Sorted(maps.Keys(s.overrides)) {
		if _, ok := s.defined[name]; ok {
			lines = append(lines, bridge.VariableValueChanged{Name: name}.String())
		}
	}
	lines = append(lines,
		bridge.VariablesChanged{}.String(),
		bridge.VariablesChangedNoDownloadsPending{}.String(),
		bridge.Started{Success: s.fixture.startSuccess()}.String(),
	)
	for _, id := range s.fixture.TriggerOnStart {
		l, _ := s.triggerLines(id)
		lines = append(lines, l...)
	}
	return "", lines, nil
}

func (s *Simulator) hasStarted([]any) (string, []string, error) {
	return strconv.FormatBool(s.started), nil, nil
}

func (s *Simulator) forceContentUpdate([]any) (string, []string, error) {
	return "", []string{
		bridge.VariablesChanged{}.String(),
		bridge.VariablesChangedNoDownloadsPending{}.String(),
	}, nil
}

func (s *Simulator) forceContentUpdateWithCallback(args []any) (string, []string, error) {
	token, err := argInt(args, 0)
	if err != nil {
		return "", nil, err
	}
	return "", []string{
		bridge.VariablesChanged{}.String(),
		bridge.ContentUpdated{Token: token}.String(),
	}, nil
}

func (s *Simulator) createActionContextForID(args []any) (string, []string, error) {
	id, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	m, ok := s.fixture.Messages[id]
	if !ok {
		return "", nil, nil
	}
	return bridge.JoinContextKey(m.Action, id), nil, nil
}

func (s *Simulator) triggerAction(args []any) (string, []string, error) {
	id, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	lines, ok := s.triggerLines(id)
	return strconv.FormatBool(ok), lines, nil
}

func (s *Simulator) vars([]any) (string, []string, error) {
	out, err := codec.Encode(s.effectiveVars())
	return out, nil, err
}

func (s *Simulator) variants([]any) (string, []string, error) {
	variants := s.fixture.Variants
	if variants == nil {
		variants = []map[string]any{}
	}
	out, err := codec.Encode(variants)
	return out, nil, err
}

func (s *Simulator) messageMetadata([]any) (string, []string, error) {
	meta := make(map[string]any, len(s.fixture.Messages))
	for id, m := range s.fixture.Messages {
		meta[id] = map[string]any{"action": m.Action}
	}
	out, err := codec.Encode(meta)
	return out, nil, err
}

func (s *Simulator) objectForKeyPath(args []any) (string, []string, error) {
	path, err := argJSON(args, 0)
	if err != nil {
		return "", nil, err
	}
	components, _ := path.([]any)
	var cur any = s.effectiveVars()
	for _, c := range components {
		switch node := cur.(type) {
		case map[string]any:
			key, _ := c.(string)
			cur = node[key]
		case []any:
			i, ok := c.(int64)
			if !ok || i < 0 || int(i) >= len(node) {
				cur = nil
			} else {
				cur = node[i]
			}
		default:
			cur = nil
		}
	}
	out, err := codec.Encode(cur)
	return out, nil, err
}

func (s *Simulator) record(kind string, args []any) error {
	name, err := argString(args, 0)
	if err != nil {
		return err
	}
	value, err := argFloat(args, 1)
	if err != nil {
		return err
	}
	info, err := argString(args, 2)
	if err != nil {
		return err
	}
	params, err := argJSONMap(args, 3)
	if err != nil {
		return err
	}
	s.events = append(s.events, TrackedEvent{Kind: kind, Name: name, Value: value, Info: info, Params: params})
	return nil
}

func (s *Simulator) track(args []any) (string, []string, error) {
	return "", nil, s.record("track", args)
}

func (s *Simulator) trackPurchase(args []any) (string, []string, error) {
	return "", nil, s.record("purchase", args)
}

func (s *Simulator) advanceTo(args []any) (string, []string, error) {
	state, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	info, err := argString(args, 1)
	if err != nil {
		return "", nil, err
	}
	params, err := argJSONMap(args, 2)
	if err != nil {
		return "", nil, err
	}
	s.state = state
	s.events = append(s.events, TrackedEvent{Kind: "state", Name: state, Info: info, Params: params})
	return "", nil, nil
}

func (s *Simulator) setUserAttributes(args []any) (string, []string, error) {
	userID, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	attrs, err := argJSONMap(args, 1)
	if err != nil {
		return "", nil, err
	}
	if userID != "" {
		s.userID = userID
	}
	maps.Copy(s.attributes, attrs)
	return "", nil, nil
}

func (s *Simulator) pauseState([]any) (string, []string, error) {
	s.paused = true
	return "", nil, nil
}

func (s *Simulator) resumeState([]any) (string, []string, error) {
	s.paused = false
	return "", nil, nil
}

func (s *Simulator) setDeviceID(args []any) (string, []string, error) {
	id, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	s.deviceID = id
	return "", nil, nil
}

func (s *Simulator) getDeviceID([]any) (string, []string, error) {
	return s.deviceID, nil, nil
}

func (s *Simulator) getUserID([]any) (string, []string, error) {
	return s.userID, nil, nil
}

// contextMessage resolves a context key to its fixture message.
func (s *Simulator) contextMessage(args []any) (string, Message, error) {
	key, err := argString(args, 0)
	if err != nil {
		return "", Message{}, err
	}
	_, id := bridge.SplitContextKey(key)
	return key, s.fixture.Messages[id], nil
}

func (s *Simulator) contextArgument(args []any) (string, []string, error) {
	_, m, err := s.contextMessage(args)
	if err != nil {
		return "", nil, err
	}
	name, err := argString(args, 1)
	if err != nil {
		return "", nil, err
	}
	out, err := codec.Encode(m.Args[name])
	return out, nil, err
}

// contextRunActionNamed emits the child action named by an "action"
// argument. The child shares the parent's message id.
func (s *Simulator) contextRunActionNamed(args []any) (string, []string, error) {
	key, m, err := s.contextMessage(args)
	if err != nil {
		return "", nil, err
	}
	name, err := argString(args, 1)
	if err != nil {
		return "", nil, err
	}
	child, _ := m.Args[name].(string)
	if child == "" {
		return "", nil, nil
	}
	_, id := bridge.SplitContextKey(key)
	return "", []string{bridge.RunActionNamed{ParentKey: key, ChildKey: bridge.JoinContextKey(child, id)}.String()}, nil
}

func (s *Simulator) contextRunTrackedActionNamed(args []any) (string, []string, error) {
	result, lines, err := s.contextRunActionNamed(args)
	if err != nil {
		return "", nil, err
	}
	name, _ := argString(args, 1)
	s.events = append(s.events, TrackedEvent{Kind: "context", Name: name})
	return result, lines, nil
}

func (s *Simulator) contextTrack(args []any) (string, []string, error) {
	key, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	event, err := argString(args, 1)
	if err != nil {
		return "", nil, err
	}
	value, err := argFloat(args, 2)
	if err != nil {
		return "", nil, err
	}
	params, err := argJSONMap(args, 3)
	if err != nil {
		return "", nil, err
	}
	s.events = append(s.events, TrackedEvent{Kind: "context", Name: event, Value: value, Info: key, Params: params})
	return "", nil, nil
}

func (s *Simulator) contextDismissed(args []any) (string, []string, error) {
	key, err := argString(args, 0)
	if err != nil {
		return "", nil, err
	}
	s.dismissed = append(s.dismissed, key)
	return "", nil, nil
}

// Dismissed returns the context keys reported as dismissed.
func (s *Simulator) Dismissed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.dismissed)
}

// Paused reports whether pauseState was called without a later resumeState.
func (s *Simulator) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Actions returns the names of every defined action, sorted.
func (s *Simulator) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.actions))
}

// Attributes returns a copy of the user attributes set so far.
func (s *Simulator) Attributes() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.attributes)
}
