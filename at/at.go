// Package at holds the wire-level pieces of the NB-IoT AT command protocol:
// command and response constants, the line framer that turns a byte stream
// into CRLF terminated lines, the response classifier and the hex codec used
// to carry binary datagrams as printable text.
package at

const (
	// Terminal Control
	CRLF = "\r\n"

	// Response Codes, as complete lines
	OK    = "OK" + CRLF
	ERROR = "ERROR" + CRLF

	// Registration status, standard NB-IoT module
	CmdNetworkStatus       = "AT+NAS"
	PrefixNetworkConnected = "+NAS: Connected (activated)" + CRLF

	// Registration status, SoftRadio (no AT+NAS support, radio level only)
	CmdRadioStatus       = "AT+RAS"
	PrefixRadioConnected = "+RAS:CONNECTED" + CRLF

	// Post-registration initialisation: enable sent-message indications
	CmdMessageIndications      = "AT+SMI=1"
	PrefixMessageIndicationsOK = "+SMI:OK" + CRLF

	// Uplink datagram: byte count and uppercase hex payload
	CmdSendDatagram = "AT+MGS=%d,%s"
	PrefixSendAck   = "+MGS:OK" + CRLF
	PrefixSent      = "+SMI:SENT" + CRLF

	// Downlink poll: "+MGR:<count>,<hex>" followed by "+MGR:OK"
	CmdPollDatagram = "AT+MGR"
	PrefixPoll      = "+MGR:"
	PrefixPollDone  = "+MGR:OK" + CRLF
)
