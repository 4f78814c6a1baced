package modem

import "sync/atomic"

// Metrics contains atomic counters for a Modem session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// DatagramSendCount indicates the number of datagrams confirmed as sent.
	DatagramSendCount atomic.Uint64
	// DatagramSendErrCount indicates the number of failed Send calls.
	DatagramSendErrCount atomic.Uint64
	// DatagramRecvCount indicates the number of non-empty datagrams received.
	DatagramRecvCount atomic.Uint64
	// MalformedResponseCount indicates the number of poll responses that
	// could not be parsed.
	MalformedResponseCount atomic.Uint64
	// RegistrationRetryCount indicates the number of registration attempts
	// that had to be repeated.
	RegistrationRetryCount atomic.Uint64
	// UnexpectedLineCount indicates the number of lines dropped while
	// waiting for a specific response.
	UnexpectedLineCount atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	DatagramSendCount      uint64 `json:"datagram_send_count"`
	DatagramSendErrCount   uint64 `json:"datagram_send_err_count"`
	DatagramRecvCount      uint64 `json:"datagram_recv_count"`
	MalformedResponseCount uint64 `json:"malformed_response_count"`
	RegistrationRetryCount uint64 `json:"registration_retry_count"`
	UnexpectedLineCount    uint64 `json:"unexpected_line_count"`
}

// Snapshot loads every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		DatagramSendCount:      m.DatagramSendCount.Load(),
		DatagramSendErrCount:   m.DatagramSendErrCount.Load(),
		DatagramRecvCount:      m.DatagramRecvCount.Load(),
		MalformedResponseCount: m.MalformedResponseCount.Load(),
		RegistrationRetryCount: m.RegistrationRetryCount.Load(),
		UnexpectedLineCount:    m.UnexpectedLineCount.Load(),
	}
}

func (m *Metrics) incDatagramSendCount() {
	m.DatagramSendCount.Add(1)
}

func (m *Metrics) incDatagramSendErrCount() {
	m.DatagramSendErrCount.Add(1)
}

func (m *Metrics) incDatagramRecvCount() {
	m.DatagramRecvCount.Add(1)
}

func (m *Metrics) incMalformedResponseCount() {
	m.MalformedResponseCount.Add(1)
}

func (m *Metrics) incRegistrationRetryCount() {
	m.RegistrationRetryCount.Add(1)
}

func (m *Metrics) incUnexpectedLineCount() {
	m.UnexpectedLineCount.Add(1)
}
