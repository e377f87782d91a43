package command

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/sdk-bridge/internal/platform/devsocket"
)

type linePoster struct {
	mu    sync.Mutex
	lines []string
}

func (p *linePoster) Post(line string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, line)
	return true
}

func (p *linePoster) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

func TestSocketURL(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"127.0.0.1:9000":       "ws://127.0.0.1:9000/",
		"ws://localhost:1/x":   "ws://localhost:1/x",
		"wss://example.com/ws": "wss://example.com/ws",
	} {
		assert.Equal(t, want, socketURL(in), in)
	}
}

func TestSendCommand(t *testing.T) {
	t.Parallel()

	p := &linePoster{}
	srv := httptest.NewServer(devsocket.NewServer(p).Handler())
	t.Cleanup(srv.Close)
	addr := strings.TrimPrefix(srv.URL, "http://")

	out, _, err := execute(t, NewSendCommand(), addr, "Started:true", "OnAction:welcome:1")
	require.NoError(t, err)
	assert.Equal(t, "accepted 2 line(s)\n", out)

	cmd := NewSendCommand()
	cmd.stdin = strings.NewReader("VariablesChanged:\n\nValueChanged:coins\n")
	out, _, err = execute(t, cmd, "-timeout", "5s", addr)
	require.NoError(t, err)
	assert.Equal(t, "accepted 2 line(s)\n", out)

	assert.Equal(t, []string{"Started:true", "OnAction:welcome:1", "VariablesChanged:", "ValueChanged:coins"}, p.Lines())
}

func TestSendCommand_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, NewSendCommand())
	require.ErrorContains(t, err, "missing address")

	cmd := NewSendCommand()
	cmd.stdin = &bytes.Buffer{}
	_, _, err = execute(t, cmd, "127.0.0.1:1")
	require.ErrorContains(t, err, "nothing to send")

	_, _, err = execute(t, NewSendCommand(), "-timeout", "2s", "127.0.0.1:1", "VariablesChanged:")
	require.ErrorContains(t, err, "devsocket: dial")
}
