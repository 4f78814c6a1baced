package modem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/nbiot/at"
)

// State is the network registration state of a Modem session.
type State int

const (
	// StateUninitialized is the state of a fresh Modem, before Connect.
	StateUninitialized State = iota
	// StateAwaitingRegistration is entered by Connect and kept when
	// registration does not complete in time.
	StateAwaitingRegistration
	// StateRegistered allows Send and Receive.
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingRegistration:
		return "awaiting-registration"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// RadioMode selects how Connect checks for network registration.
type RadioMode int

const (
	// RadioStandard queries the network attach status with AT+NAS.
	RadioStandard RadioMode = iota
	// RadioSoftRadio queries the radio level with AT+RAS, for SoftRadio
	// which does not implement AT+NAS.
	RadioSoftRadio
)

func (r RadioMode) String() string {
	switch r {
	case RadioStandard:
		return "standard"
	case RadioSoftRadio:
		return "softradio"
	default:
		return "unknown"
	}
}

// ParseRadioMode is the inverse of RadioMode.String.
func ParseRadioMode(s string) (RadioMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return RadioStandard, nil
	case "softradio", "soft-radio":
		return RadioSoftRadio, nil
	default:
		return RadioStandard, fmt.Errorf("unknown radio mode %q", s)
	}
}

// statusQuery returns the registration status command and the response
// prefix reporting a connection.
func (r RadioMode) statusQuery() (cmd, connected string) {
	if r == RadioSoftRadio {
		return at.CmdRadioStatus, at.PrefixRadioConnected
	}
	return at.CmdNetworkStatus, at.PrefixNetworkConnected
}

// Modem represents an NB-IoT module driven through its AT command interface.
//
// A Modem runs exactly one command exchange at a time. Every public
// operation holds the session lock from the first byte written until the
// last expected line has been read, so concurrent callers are served one
// after the other and responses can never be attributed to the wrong
// command.
//
// Responses are obtained by polling: bytes are pulled from the transport in
// arrival order, framed into lines and classified against what the current
// operation waits for. Lines that match nothing are logged and dropped.
type Modem struct {
	mu sync.Mutex

	// transport provides the physical connection to the modem
	transport Transport
	// config contains the modem configuration settings
	config Config
	logger *slog.Logger

	rx         *byteReader
	framer     *at.Framer
	classifier at.Classifier
	// resync matches exactly; it is used to find the end of an exchange
	// after a response could not be parsed
	resync at.Classifier
	// hexBuf holds the hex text of an outgoing datagram
	hexBuf []byte

	// state is read without the session lock so status queries never wait
	// for an exchange in progress
	state   atomic.Int32
	closed  bool
	metrics Metrics
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection and drains whatever the modem
// printed while starting up, so that the first command sees a clean line.
//
// The returned Modem is not registered; call Connect before Send or Receive.
func New(ctx context.Context, config Config) (*Modem, error) {
	if config.dialer == nil {
		return nil, ErrNoDialer
	}
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, ErrTransportUnavailable
	}

	m := &Modem{
		transport: transport,
		config:    config,
		logger:    config.logger,
		rx:        newByteReader(transport),
		framer:    at.NewFramer(config.rxBufferSize),
		classifier: at.Classifier{
			Capacity: config.rxBufferSize,
			Strict:   config.strictPrefix,
		},
		resync: at.Classifier{
			Capacity: config.rxBufferSize,
			Strict:   true,
		},
		hexBuf: make([]byte, config.hexBufferSize),
	}

	if !config.skipFlush {
		if err := m.flush(ctx); err != nil {
			transport.Close()
			return nil, fmt.Errorf("flush modem output: %w", err)
		}
	}

	return m, nil
}

// State returns the current registration state. It does not wait for an
// exchange in progress.
func (m *Modem) State() State {
	return State(m.state.Load())
}

func (m *Modem) setState(s State) {
	m.state.Store(int32(s))
}

// Metrics returns a snapshot of the session counters. It does not wait for
// an exchange in progress.
func (m *Modem) Metrics() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// MaxDatagramSize returns the largest datagram Send accepts.
func (m *Modem) MaxDatagramSize() int {
	return m.config.MaxDatagramSize()
}

// Close releases the transport. After calling Close(), the modem cannot be
// reused.
func (m *Modem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true
	m.setState(StateUninitialized)

	return m.transport.Close()
}

// Connect registers the modem with the network.
//
// It repeatedly queries the registration status selected by mode. Once the
// modem reports a connection, sent-message indications are enabled with
// AT+SMI=1; only when both exchanges succeed does the session become
// StateRegistered. Between attempts Connect sleeps a tenth of timeout.
//
// A zero timeout waits forever; ctx still cancels the wait. When the timeout
// elapses Connect fails with ErrRegistrationTimeout and may be called again.
func (m *Modem) Connect(ctx context.Context, mode RadioMode, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}

	m.setState(StateAwaitingRegistration)
	dl := newDeadline(timeout)
	backoff := max(timeout/10, m.config.pollInterval)

	m.logger.Info("Checking for network registration", "mode", mode, "timeout", timeout)

	for attempt := 1; ; attempt++ {
		ok, err := m.register(ctx, mode, dl)
		if err != nil {
			return fmt.Errorf("register with network: %w", err)
		}
		if ok {
			m.setState(StateRegistered)
			m.logger.Info("Registered with network", "mode", mode, "attempts", attempt)
			return nil
		}

		if !dl.expired() {
			m.metrics.incRegistrationRetryCount()
			if err := sleep(ctx, dl.bound(backoff)); err != nil {
				return fmt.Errorf("register with network: %w", err)
			}
		}
		if dl.expired() {
			m.logger.Warn("Network registration timed out", "mode", mode, "attempts", attempt)
			return fmt.Errorf("%w after %d attempt(s)", ErrRegistrationTimeout, attempt)
		}
	}
}

// register runs one status query and, on success, the initialisation
// exchange. It reports false when either exchange did not resolve as
// expected; err is only set for transport or context failures.
func (m *Modem) register(ctx context.Context, mode RadioMode, dl deadline) (bool, error) {
	cmd, connected := mode.statusQuery()

	if err := m.command(cmd); err != nil {
		return false, err
	}
	resp, err := m.wait(ctx, connected, dl.bound(m.config.atTimeout))
	if err != nil {
		return false, ignoreTimeout(err)
	}
	if resp.Kind != at.KindExpected {
		m.logger.Debug("Not registered yet", "command", cmd, "response", resp.Kind)
		return false, nil
	}
	if err := m.absorbOK(ctx, dl.bound(m.config.atTimeout)); err != nil {
		return false, err
	}

	m.logger.Info("Connected to network, enabling message indications")

	if err := m.command(at.CmdMessageIndications); err != nil {
		return false, err
	}
	resp, err = m.wait(ctx, at.PrefixMessageIndicationsOK, dl.bound(m.config.atTimeout))
	if err != nil {
		return false, ignoreTimeout(err)
	}
	if resp.Kind != at.KindExpected {
		m.logger.Warn("Message indications not enabled", "command", at.CmdMessageIndications, "response", resp.Kind)
		return false, nil
	}
	if err := m.absorbOK(ctx, dl.bound(m.config.atTimeout)); err != nil {
		return false, err
	}
	return true, nil
}

// flush drains start-up output until the modem prints OK or ERROR, or the
// flush timeout runs out.
func (m *Modem) flush(ctx context.Context) error {
	resp, err := m.wait(ctx, "", m.config.flushTimeout)
	if err != nil {
		return ignoreTimeout(err)
	}
	m.logger.Debug("Flushed modem output", "last", resp.Kind)
	return nil
}

// absorbOK consumes the OK that trails an expected response. A missing OK
// is logged but not treated as a failure.
func (m *Modem) absorbOK(ctx context.Context, timeout time.Duration) error {
	resp, err := m.wait(ctx, "", timeout)
	if err != nil {
		if errors.Is(err, ErrResponseTimeout) {
			m.logger.Warn("No trailing OK from modem")
			return nil
		}
		return err
	}
	if resp.Kind != at.KindOK {
		m.logger.Warn("Unexpected trailing response", "response", resp.Kind)
	}
	return nil
}

// expect waits for a line matching prefix and turns anything else into an
// error.
func (m *Modem) expect(ctx context.Context, prefix string, timeout time.Duration) (at.Response, error) {
	resp, err := m.wait(ctx, prefix, timeout)
	if err != nil {
		return resp, err
	}
	switch resp.Kind {
	case at.KindExpected:
		return resp, nil
	case at.KindError:
		return resp, ErrDeviceError
	default:
		return resp, fmt.Errorf("%w: got %s while waiting for %q", at.ErrUnexpectedLine, resp.Kind, strings.TrimSpace(prefix))
	}
}

// command writes one AT command line to the modem.
func (m *Modem) command(cmd string) error {
	if m.closed {
		return ErrAlreadyClosed
	}

	m.logger.Debug("Sending to modem", "command", cmd)

	if _, err := m.transport.Write([]byte(cmd + at.CRLF)); err != nil {
		return fmt.Errorf("write command %q: %w", cmd, err)
	}
	return nil
}

func (m *Modem) commandf(format string, args ...any) error {
	return m.command(fmt.Sprintf(format, args...))
}

// wait polls the modem until a line classifies as OK, ERROR or, when
// expected is not empty, as matching expected. Lines that classify as
// anything else are dropped, with a warning when the caller expected
// something specific.
//
// A zero timeout waits forever. ErrResponseTimeout is returned once a
// non-zero timeout has elapsed.
func (m *Modem) wait(ctx context.Context, expected string, timeout time.Duration) (at.Response, error) {
	return m.waitWith(ctx, m.classifier, expected, timeout)
}

func (m *Modem) waitWith(ctx context.Context, classifier at.Classifier, expected string, timeout time.Duration) (at.Response, error) {
	dl := newDeadline(timeout)

	for {
		line, err := m.readLine()
		if err != nil {
			return at.Response{}, err
		}

		// A bare terminator carries nothing; modems pad responses with them
		if len(line) > len(at.CRLF) {
			text := string(bytes.TrimRight(line, at.CRLF))
			m.logger.Debug("Received from modem", "line", text)

			resp := classifier.Classify(line, expected)
			switch resp.Kind {
			case at.KindOK, at.KindError, at.KindExpected:
				return resp, nil
			case at.KindUnrecognized:
				if expected != "" {
					m.metrics.incUnexpectedLineCount()
					m.logger.Warn("Unexpected response from modem",
						"error", at.ErrUnexpectedLine,
						"expected", strings.TrimSpace(expected),
						"received", text,
					)
				}
			}
		}

		if dl.expired() {
			return at.Response{}, ErrResponseTimeout
		}
		if line == nil {
			if err := sleep(ctx, dl.bound(m.config.pollInterval)); err != nil {
				return at.Response{}, err
			}
		} else if err := ctx.Err(); err != nil {
			return at.Response{}, err
		}
	}
}

// readLine feeds bytes to the framer until a line completes or the
// transport has nothing more to offer, in which case it returns nil.
// skipLine discards input up to and including the next line terminator.
// It is used after the framer handed out a line cut at its capacity, whose
// remainder is still on its way.
func (m *Modem) skipLine(ctx context.Context, timeout time.Duration) error {
	dl := newDeadline(timeout)

	for {
		line, err := m.readLine()
		if err != nil {
			return err
		}
		if bytes.HasSuffix(line, []byte(at.CRLF)) {
			return nil
		}

		if dl.expired() {
			return ErrResponseTimeout
		}
		if line == nil {
			if err := sleep(ctx, dl.bound(m.config.pollInterval)); err != nil {
				return err
			}
		}
	}
}

func (m *Modem) readLine() ([]byte, error) {
	for {
		b, ok, err := m.rx.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		if line := m.framer.Feed(b); line != nil {
			return line, nil
		}
	}
}

// byteReader hands out transport bytes one at a time in arrival order.
// Bytes read but not yet handed out stay here between lines.
type byteReader struct {
	r   io.Reader
	buf []byte
	pos int
	end int
}

func newByteReader(r io.Reader) *byteReader {
	return &byteReader{r: r, buf: make([]byte, 64)}
}

// next returns the next byte, or ok == false when none is available.
func (br *byteReader) next() (b byte, ok bool, err error) {
	if br.pos == br.end {
		n, err := br.r.Read(br.buf)
		if n <= 0 {
			if err != nil {
				return 0, false, fmt.Errorf("read from modem: %w", err)
			}
			return 0, false, nil
		}
		br.pos, br.end = 0, n
	}
	b = br.buf[br.pos]
	br.pos++
	return b, true, nil
}

// deadline tracks the budget of one blocking operation. A zero duration
// never expires.
type deadline struct {
	start time.Time
	d     time.Duration
}

func newDeadline(d time.Duration) deadline {
	return deadline{start: time.Now(), d: d}
}

func (dl deadline) forever() bool {
	return dl.d <= 0
}

func (dl deadline) expired() bool {
	return !dl.forever() && time.Since(dl.start) >= dl.d
}

// bound caps d to what is left of the deadline. The result is never zero
// for a bounded deadline, so it cannot be mistaken for "wait forever".
func (dl deadline) bound(d time.Duration) time.Duration {
	if dl.forever() {
		return d
	}
	remaining := dl.d - time.Since(dl.start)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	if d <= 0 || d > remaining {
		return remaining
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func ignoreTimeout(err error) error {
	if errors.Is(err, ErrResponseTimeout) {
		return nil
	}
	return err
}
