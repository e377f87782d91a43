package bridge

import (
	"fmt"
	"sync"
)

type fakeCall struct {
	Method string
	Args   []any
}

// fakePlatform records outbound calls and answers them from per-method
// handlers. Unhandled methods return "".
type fakePlatform struct {
	mu       sync.Mutex
	calls    []fakeCall
	handlers map[string]func(args ...any) (string, error)
	receiver func(string)
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{handlers: make(map[string]func(args ...any) (string, error))}
}

func (f *fakePlatform) Call(method string, args ...any) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Method: method, Args: append([]any(nil), args...)})
	h := f.handlers[method]
	f.mu.Unlock()
	if h == nil {
		return "", nil
	}
	return h(args...)
}

func (f *fakePlatform) Listen(receiver func(string)) {
	f.mu.Lock()
	f.receiver = receiver
	f.mu.Unlock()
}

func (f *fakePlatform) handle(method string, h func(args ...any) (string, error)) {
	f.mu.Lock()
	f.handlers[method] = h
	f.mu.Unlock()
}

func (f *fakePlatform) reply(method, result string) {
	f.handle(method, func(...any) (string, error) { return result, nil })
}

func (f *fakePlatform) fail(method string) {
	f.handle(method, func(...any) (string, error) { return "", fmt.Errorf("%s unavailable", method) })
}

// emit delivers a line the way a native adapter would.
func (f *fakePlatform) emit(line string) {
	f.mu.Lock()
	r := f.receiver
	f.mu.Unlock()
	if r != nil {
		r(line)
	}
}

func (f *fakePlatform) attached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receiver != nil
}

func (f *fakePlatform) callsTo(method string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

type recordingInbox struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingInbox) HandleMessage(line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	r.mu.Unlock()
}

func (r *recordingInbox) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
