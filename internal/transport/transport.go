// Package transport executes the HTTP requests the SDK bridge needs, and
// hands their results back to the driving goroutine.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Status codes synthesised for failures that never reached the server.
const (
	StatusTimeout     = http.StatusRequestTimeout
	StatusUnavailable = http.StatusServiceUnavailable
)

var (
	// ErrNetworkTimeout is reported with StatusTimeout.
	ErrNetworkTimeout = errors.New("Request timed out")

	// ErrHTTPStatus wraps non-2xx responses.
	ErrHTTPStatus = errors.New("http error")
)

// Request describes one call. A nil Form issues a GET; otherwise the form
// is POSTed url-encoded. Asset requests return the raw body in
// Response.Asset instead of Response.Text.
type Request struct {
	URL     string
	Form    url.Values
	Timeout time.Duration
	Asset   bool
}

// Response is the outcome of a Request. Err is set for transport failures
// and non-2xx statuses; StatusCode is 0 only when the request could not be
// built.
type Response struct {
	StatusCode int
	Err        error
	Text       string
	Asset      []byte
}

// OK reports a 2xx response without error.
func (r Response) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Enqueuer schedules completion callbacks on the driving goroutine.
// [bridge.Bridge] implements it.
type Enqueuer interface {
	Enqueue(fn func())
}

// Executor runs requests through a shared client and circuit breaker.
type Executor struct {
	client          *http.Client
	breaker         *gobreaker.CircuitBreaker
	logger          *slog.Logger
	timeout         time.Duration
	downloadTimeout time.Duration
	maxBody         int64
}

// Option configures an Executor.
type Option func(*Executor)

// WithClient replaces the default HTTP client.
func WithClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

// WithTimeouts sets the default timeouts for API and asset requests.
func WithTimeouts(api, download time.Duration) Option {
	return func(e *Executor) {
		if api > 0 {
			e.timeout = api
		}
		if download > 0 {
			e.downloadTimeout = download
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithBreaker replaces the circuit breaker settings. Name is filled in if
// empty.
func WithBreaker(settings gobreaker.Settings) Option {
	return func(e *Executor) {
		if settings.Name == "" {
			settings.Name = "transport"
		}
		e.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// NewExecutor returns an executor with a breaker that opens after five
// consecutive failures and half-opens after thirty seconds.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		client:          &http.Client{},
		logger:          slog.Default(),
		timeout:         10 * time.Second,
		downloadTimeout: 30 * time.Second,
		maxBody:         32 << 20,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.breaker == nil {
		e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "transport",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				e.logger.Warn("transport: circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return e
}

// State returns the breaker state.
func (e *Executor) State() gobreaker.State { return e.breaker.State() }

// Do performs req synchronously.
func (e *Executor) Do(ctx context.Context, req Request) Response {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
		if req.Asset {
			timeout = e.downloadTimeout
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := newHTTPRequest(ctx, req)
	if err != nil {
		return Response{Err: err}
	}

	var resp Response
	_, err = e.breaker.Execute(func() (any, error) {
		resp = e.roundTrip(httpReq, req.Asset)
		// only transport failures and server errors count against the breaker
		if resp.StatusCode >= 500 || resp.StatusCode == StatusTimeout {
			return nil, resp.Err
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		e.logger.Debug("transport: request rejected by breaker", "url", req.URL, "error", err)
		return Response{StatusCode: StatusUnavailable, Err: err}
	}
	return resp
}

// Go performs req on a new goroutine and enqueues fn with the result, so
// fn runs exactly once on the driving goroutine.
func (e *Executor) Go(ctx context.Context, req Request, q Enqueuer, fn func(Response)) {
	go func() {
		resp := e.Do(ctx, req)
		q.Enqueue(func() { fn(resp) })
	}()
}

func newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	if req.URL == "" {
		return nil, errors.New("transport: empty url")
	}
	if req.Form == nil {
		return http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, strings.NewReader(req.Form.Encode()))
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r, nil
}

func (e *Executor) roundTrip(req *http.Request, asset bool) Response {
	httpResp, err := e.client.Do(req)
	if err != nil {
		if isTimeout(req.Context(), err) {
			return Response{StatusCode: StatusTimeout, Err: ErrNetworkTimeout}
		}
		return Response{StatusCode: StatusUnavailable, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, e.maxBody))
	if err != nil {
		if isTimeout(req.Context(), err) {
			return Response{StatusCode: StatusTimeout, Err: ErrNetworkTimeout}
		}
		return Response{StatusCode: httpResp.StatusCode, Err: err}
	}

	resp := Response{StatusCode: httpResp.StatusCode}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		resp.Err = fmt.Errorf("%w: %s", ErrHTTPStatus, httpResp.Status)
		resp.Text = string(body)
		return resp
	}
	if asset {
		resp.Asset = body
	} else {
		resp.Text = string(body)
	}
	return resp
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
