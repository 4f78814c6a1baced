package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -destination=mock_transport.go -package=modem . Transport,Dialer

// Transport represents an established, bidirectional byte stream to an
// NB-IoT modem.
//
// A Transport is assumed to be already connected and ready for use. Read must
// not block indefinitely: when no byte is available it returns 0 and a nil
// error, and the driver polls again later. Typical implementations include
// serial ports opened with a read timeout, or in-memory fakes used for
// testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to an NB-IoT modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port or a test double) and is intended to be used during modem
// construction only. Once a Transport is obtained, the Dialer is no longer
// needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// Serial port defaults, 57600 baud 8N1.
const (
	DefaultBaudRate       = 57600
	DefaultReadTimeout    = 10 * time.Millisecond
	defaultSerialDataBits = 8
	defaultSerialStopBits = serial.OneStopBit
	defaultSerialParity   = serial.NoParity
)

// SerialDialer opens an NB-IoT modem over a serial port using go.bug.st/serial.
type SerialDialer struct {
	// PortName is the device path, for example "/dev/ttyUSB0" or "COM8".
	PortName string
	// BaudRate is used when Mode is nil. Zero selects DefaultBaudRate.
	BaudRate int
	// Mode overrides the complete line setting when not nil.
	Mode *serial.Mode
	// ReadTimeout bounds each Read so an idle line reports "no byte" instead
	// of blocking. Zero selects DefaultReadTimeout.
	ReadTimeout time.Duration
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("nbiot: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("nbiot: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		mode = &serial.Mode{
			BaudRate: baud,
			DataBits: defaultSerialDataBits,
			Parity:   defaultSerialParity,
			StopBits: defaultSerialStopBits,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("nbiot: open serial port %s: %w", d.PortName, err)
	}

	readTimeout := d.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("nbiot: set read timeout on %s: %w", d.PortName, err)
	}

	// Start from a clean line, the modem may have chattered while closed
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("nbiot: reset input buffer on %s: %w", d.PortName, err)
	}

	return port, nil
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("nbiot: list serial ports: %w", err)
	}
	return ports, nil
}
