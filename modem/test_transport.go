package modem

import (
	"context"
	"io"
	"strings"
	"sync"
)

// TestTransport is a test helper that plays the modem side of the AT
// protocol from a script. Every write is recorded; when a write starts with
// the command of a registered reply, the next scripted response for that
// command becomes readable. Read never blocks: with nothing pending it
// returns 0 bytes, like a serial port whose read timeout expired.
type TestTransport struct {
	mu      sync.Mutex
	pending []byte
	replies []*reply
	writes  []string
	closed  bool
}

type reply struct {
	command   string
	responses []string
	always    bool
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{}
}

// Reply queues responses for writes beginning with command, one response
// per write, in order. Once they are used up the command gets no answer.
func (t *TestTransport) Reply(command string, responses ...string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, &reply{command: command, responses: responses})
	return t
}

// ReplyAlways answers every write beginning with command with response.
func (t *TestTransport) ReplyAlways(command, response string) *TestTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replies = append(t.replies, &reply{command: command, responses: []string{response}, always: true})
	return t
}

// SendData queues data to be read by the transport.
// This simulates unsolicited output from the modem.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, data...)
}

// Writes returns every command written so far, terminators included.
func (t *TestTransport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.writes...)
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	wire := string(p)
	t.writes = append(t.writes, wire)

	for _, r := range t.replies {
		if !strings.HasPrefix(wire, r.command) || len(r.responses) == 0 {
			continue
		}
		t.pending = append(t.pending, r.responses[0]...)
		if !r.always {
			r.responses = r.responses[1:]
		}
		break
	}
	return len(p), nil
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.EOF
	}
	n = copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// TestDialer hands out a fixed Transport.
type TestDialer struct {
	Transport Transport
}

func (d TestDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Transport, nil
}
