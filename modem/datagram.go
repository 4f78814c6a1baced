package modem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"i4.energy/across/nbiot/at"
)

// Send transmits one uplink datagram.
//
// The datagram is hex encoded and handed to the modem with AT+MGS. Send
// first waits for the modem to accept it (+MGS:OK, bounded by the AT
// timeout), then for the +SMI:SENT indication, bounded by timeout since it
// depends on over-the-air delivery. A zero timeout waits forever for the
// indication.
//
// Send fails with ErrNotRegistered or ErrDatagramTooLarge without writing
// anything. Every other failure is reported as ErrSendFailed; the delivery
// status of the datagram is then unknown and retrying is up to the caller.
func (m *Modem) Send(ctx context.Context, datagram []byte, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return err
	}
	if len(datagram)*2 > len(m.hexBuf) {
		return fmt.Errorf("%w: %d bytes, at most %d can be sent", ErrDatagramTooLarge, len(datagram), len(m.hexBuf)/2)
	}

	if err := m.send(ctx, datagram, timeout); err != nil {
		m.metrics.incDatagramSendErrCount()
		m.logger.Error("Failed to send datagram", "error", err, "bytes", len(datagram))
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	m.metrics.incDatagramSendCount()
	m.logger.Info("Modem reports datagram sent", "bytes", len(datagram))
	return nil
}

func (m *Modem) send(ctx context.Context, datagram []byte, timeout time.Duration) error {
	n, err := at.EncodeHex(m.hexBuf, datagram)
	if err != nil {
		return err
	}

	m.logger.Debug("Sending datagram to network", "bytes", len(datagram))
	if err := m.commandf(at.CmdSendDatagram, len(datagram), m.hexBuf[:n]); err != nil {
		return err
	}

	if _, err := m.expect(ctx, at.PrefixSendAck, m.config.atTimeout); err != nil {
		return fmt.Errorf("datagram not accepted: %w", err)
	}
	if err := m.absorbOK(ctx, m.config.atTimeout); err != nil {
		return err
	}

	if _, err := m.expect(ctx, at.PrefixSent, timeout); err != nil {
		return fmt.Errorf("datagram not confirmed as sent: %w", err)
	}
	return nil
}

// Receive polls the modem for one downlink datagram and decodes it into buf.
//
// It returns the number of bytes written to buf. Zero bytes with a nil error
// means no datagram was waiting, the usual outcome of a poll. A datagram
// longer than buf is truncated. timeout bounds the wait for the poll
// response; zero waits forever.
//
// A response that cannot be parsed yields ErrMalformedDeviceResponse. The
// poll then counts as having received nothing and the session stays usable.
func (m *Modem) Receive(ctx context.Context, buf []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ready(); err != nil {
		return 0, err
	}

	m.logger.Debug("Polling for downlink datagram", "max_bytes", len(buf))
	if err := m.command(at.CmdPollDatagram); err != nil {
		return 0, err
	}

	resp, err := m.wait(ctx, at.PrefixPoll, timeout)
	if err != nil {
		return 0, fmt.Errorf("poll for datagram: %w", err)
	}
	switch resp.Kind {
	case at.KindOK:
		return 0, nil
	case at.KindError:
		return 0, fmt.Errorf("poll for datagram: %w", ErrDeviceError)
	}

	poll, err := parsePollResponse(resp.Line)
	if err != nil {
		return 0, m.malformed(ctx, resp.Line, err)
	}
	if poll.done {
		return 0, nil
	}

	n, err := at.DecodeHex(buf, poll.hex)
	if err != nil {
		return 0, m.malformed(ctx, resp.Line, err)
	}

	if _, err := m.expect(ctx, at.PrefixPollDone, m.config.atTimeout); err != nil {
		m.logger.Warn("Poll not completed by modem", "error", err)
	}

	if n > 0 {
		m.metrics.incDatagramRecvCount()
		m.logger.Info("Datagram received from network", "bytes", n, "declared", poll.count)
	}
	return n, nil
}

// malformed records a poll response that could not be parsed and consumes
// the rest of the exchange so the next poll starts on a clean line. A line
// without terminator was cut at the framer capacity; its remainder is
// skipped first. The completion marker is then matched exactly, since the
// loose comparison would accept leftover payload text.
func (m *Modem) malformed(ctx context.Context, line []byte, cause error) error {
	m.metrics.incMalformedResponseCount()
	m.logger.Warn("Malformed poll response", "error", cause, "line", string(bytes.TrimRight(line, at.CRLF)))

	if errors.Is(cause, errNoTerminator) {
		if err := m.skipLine(ctx, m.config.atTimeout); err != nil && !errors.Is(err, ErrResponseTimeout) {
			return err
		}
	}
	if _, err := m.waitWith(ctx, m.resync, at.PrefixPollDone, m.config.atTimeout); err != nil && !errors.Is(err, ErrResponseTimeout) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMalformedDeviceResponse, cause)
}

// ready reports whether Send and Receive may talk to the modem.
func (m *Modem) ready() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	if m.State() != StateRegistered {
		return ErrNotRegistered
	}
	return nil
}

// pollResponse is the content of a "+MGR:<count>,<hex>" line.
type pollResponse struct {
	count int
	hex   []byte
	// done is set when the modem answered with the completion marker
	// straight away, meaning no datagram was waiting.
	done bool
}

var (
	errNoPollPrefix   = errors.New("missing +MGR: prefix")
	errNoCount        = errors.New("missing byte count")
	errNoComma        = errors.New("missing comma after byte count")
	errNoTerminator   = errors.New("missing line terminator")
	errCountMismatch  = errors.New("byte count does not match payload")
	errNegativeLength = errors.New("negative byte count")
)

// parsePollResponse splits a poll response line into its byte count and hex
// payload. Whitespace before the prefix and before the count is skipped.
func parsePollResponse(line []byte) (pollResponse, error) {
	rest := bytes.TrimLeft(line, " \t\r\n")
	if !bytes.HasPrefix(rest, []byte(at.PrefixPoll)) {
		return pollResponse{}, errNoPollPrefix
	}
	if bytes.Equal(rest, []byte(at.PrefixPollDone)) {
		return pollResponse{done: true}, nil
	}
	rest = bytes.TrimLeft(rest[len(at.PrefixPoll):], " \t")

	digits := 0
	for digits < len(rest) && (rest[digits] == '-' && digits == 0 || '0' <= rest[digits] && rest[digits] <= '9') {
		digits++
	}
	count, err := strconv.Atoi(string(rest[:digits]))
	if err != nil {
		return pollResponse{}, errNoCount
	}
	if count < 0 {
		return pollResponse{}, errNegativeLength
	}
	rest = rest[digits:]

	if len(rest) == 0 || rest[0] != ',' {
		return pollResponse{}, errNoComma
	}
	rest = rest[1:]

	end := bytes.Index(rest, []byte(at.CRLF))
	if end < 0 {
		return pollResponse{}, errNoTerminator
	}
	payload := rest[:end]
	if len(payload) != 2*count {
		return pollResponse{}, fmt.Errorf("%w: %d bytes declared, %d hex characters", errCountMismatch, count, len(payload))
	}

	return pollResponse{count: count, hex: payload}, nil
}
