package modem_test

import (
	"strconv"

	gomock "go.uber.org/mock/gomock"

	"i4.energy/across/nbiot/modem"
)

// MockSequenceBuilder records the transport calls of a complete AT exchange:
// the command written and the bytes the modem answers with.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

func (b *MockSequenceBuilder) exchange(cmd, resp string) *MockSequenceBuilder {
	wire := cmd + "\r\n"
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
	)
	return b.read(resp)
}

func (b *MockSequenceBuilder) read(resp string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, resp), nil
		}),
	)
	return b
}

// Boot is the start-up chatter drained by New.
func (b *MockSequenceBuilder) Boot() *MockSequenceBuilder {
	return b.read("\r\nNeul\r\nOK\r\n")
}

func (b *MockSequenceBuilder) NetworkConnected() *MockSequenceBuilder {
	return b.exchange("AT+NAS", "+NAS: Connected (activated)\r\nOK\r\n")
}

func (b *MockSequenceBuilder) RadioConnected() *MockSequenceBuilder {
	return b.exchange("AT+RAS", "+RAS:CONNECTED\r\nOK\r\n")
}

func (b *MockSequenceBuilder) MessageIndications() *MockSequenceBuilder {
	return b.exchange("AT+SMI=1", "+SMI:OK\r\nOK\r\n")
}

func (b *MockSequenceBuilder) SendDatagram(hex string, count int) *MockSequenceBuilder {
	return b.exchange(
		"AT+MGS="+strconv.Itoa(count)+","+hex,
		"+MGS:OK\r\nOK\r\n+SMI:SENT\r\n",
	)
}

func (b *MockSequenceBuilder) Poll(resp string) *MockSequenceBuilder {
	return b.exchange("AT+MGR", resp)
}

func (b *MockSequenceBuilder) Close() *MockSequenceBuilder {
	b.calls = append(b.calls, b.transport.EXPECT().Close().Return(nil))
	return b
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
