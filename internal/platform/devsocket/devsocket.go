// Package devsocket accepts notification lines over a websocket during
// development, so a running script can be driven as if the native SDK had
// sent them.
package devsocket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReadLimit bounds a single frame.
const DefaultReadLimit = 64 << 10

// Poster accepts inbound lines. [bridge.Bridge] implements it.
type Poster interface {
	Post(line string) bool
}

// Server upgrades HTTP requests to websockets and posts every non-empty
// line of each text frame. Each frame is acknowledged with "ack:<n>", where
// n is the number of lines accepted.
type Server struct {
	poster    Poster
	logger    *slog.Logger
	readLimit int64
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithReadLimit overrides DefaultReadLimit.
func WithReadLimit(n int64) Option {
	return func(s *Server) { s.readLimit = n }
}

// NewServer returns a server posting to p.
func NewServer(p Poster, opts ...Option) *Server {
	s := &Server{
		poster:    p,
		logger:    slog.Default(),
		readLimit: DefaultReadLimit,
		conns:     make(map[*websocket.Conn]struct{}),
	}
	// development tool bound to loopback; any origin may connect
	s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the websocket endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serve)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("devsocket: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.track(conn, true)
	defer func() {
		s.track(conn, false)
		_ = conn.Close()
	}()

	conn.SetReadLimit(s.readLimit)
	s.logger.Info("devsocket: client connected", "remote", r.RemoteAddr)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("devsocket: read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		n := s.post(string(data))
		if err := conn.WriteMessage(websocket.TextMessage, []byte("ack:"+strconv.Itoa(n))); err != nil {
			s.logger.Warn("devsocket: write failed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

func (s *Server) post(frame string) int {
	n := 0
	sc := bufio.NewScanner(strings.NewReader(frame))
	sc.Buffer(make([]byte, 0, 4096), int(s.readLimit))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		if !s.poster.Post(line) {
			break
		}
		n++
	}
	return n
}

func (s *Server) track(conn *websocket.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// closeAll closes every hijacked connection, which http.Server.Shutdown
// does not track.
func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

// ListenAndServe serves on addr until ctx is done. The bound address is
// reported through ready, if non-nil, once the listener is open.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("devsocket: listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.closeAll()
	})
	defer stop()

	if ready != nil {
		ready(ln.Addr())
	}
	s.logger.Info("devsocket: listening", "addr", ln.Addr().String())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("devsocket: serve: %w", err)
	}
	return nil
}

// Send dials a devsocket server, sends lines as one frame and returns the
// number of lines the server accepted.
func Send(ctx context.Context, url string, lines []string) (int, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, fmt.Errorf("devsocket: dial %s: %w", url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(strings.Join(lines, "\n"))); err != nil {
		return 0, fmt.Errorf("devsocket: write: %w", err)
	}
	_, reply, err := conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("devsocket: read ack: %w", err)
	}
	n, ok := strings.CutPrefix(string(reply), "ack:")
	if !ok {
		return 0, fmt.Errorf("devsocket: unexpected reply %q", reply)
	}
	accepted, err := strconv.Atoi(n)
	if err != nil {
		return 0, fmt.Errorf("devsocket: unexpected reply %q", reply)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return accepted, nil
}
