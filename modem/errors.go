package modem

import "errors"

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrTransportUnavailable is returned when the Dialer produced no byte
	// channel to the modem.
	ErrTransportUnavailable = errors.New("modem transport unavailable")

	// ErrAlreadyClosed is returned when an operation is attempted on, or
	// Close is called on, a Modem that has already been closed.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrNotRegistered is returned by Send and Receive when Connect has not
	// completed successfully. The transport is not touched.
	ErrNotRegistered = errors.New("modem not registered with the network")

	// ErrRegistrationTimeout is returned by Connect when the timeout elapses
	// without a successful registration. Connect may be called again.
	ErrRegistrationTimeout = errors.New("network registration timed out")

	// ErrDatagramTooLarge is returned by Send when the hex encoded datagram
	// would not fit the hex buffer. Nothing is transmitted.
	ErrDatagramTooLarge = errors.New("datagram too large")

	// ErrSendFailed is returned by Send when the modem did not acknowledge
	// the datagram or did not confirm it as sent.
	//
	// The delivery status of the datagram is unknown; retrying is up to the
	// caller.
	ErrSendFailed = errors.New("datagram send failed")

	// ErrMalformedDeviceResponse is returned by Receive when the poll
	// response could not be parsed. The session stays usable and the next
	// poll may be issued straight away.
	ErrMalformedDeviceResponse = errors.New("malformed response from modem")

	// ErrResponseTimeout is returned when a wait for a modem response runs
	// past its deadline.
	ErrResponseTimeout = errors.New("timed out waiting for modem response")

	// ErrDeviceError is returned when the modem answers a command with ERROR.
	ErrDeviceError = errors.New("modem returned ERROR")
)
