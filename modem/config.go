package modem

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Default values applied by ConfigBuilder.Build for unset options.
const (
	DefaultATTimeout     = 5 * time.Second
	DefaultFlushTimeout  = 1 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultRxBufferSize  = 1024
	DefaultHexBufferSize = 512
)

// Lower bounds enforced by ConfigBuilder.Build.
const (
	MinRxBufferSize  = 16
	MinHexBufferSize = 2
)

// Config holds the settings of a Modem. Use NewConfigBuilder to create one.
type Config struct {
	dialer Dialer

	// atTimeout bounds each intermediate wait: acknowledgements, trailing
	// OK lines and every registration exchange.
	atTimeout    time.Duration
	flushTimeout time.Duration
	skipFlush    bool
	pollInterval time.Duration

	rxBufferSize  int
	hexBufferSize int
	strictPrefix  bool

	logger *slog.Logger
}

// MaxDatagramSize returns the largest datagram Send accepts.
func (c Config) MaxDatagramSize() int {
	return c.hexBufferSize / 2
}

func (c *Config) setDefaults() {
	if c.atTimeout == 0 {
		c.atTimeout = DefaultATTimeout
	}
	if c.flushTimeout == 0 {
		c.flushTimeout = DefaultFlushTimeout
	}
	if c.pollInterval == 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.rxBufferSize == 0 {
		c.rxBufferSize = DefaultRxBufferSize
	}
	if c.hexBufferSize == 0 {
		c.hexBufferSize = DefaultHexBufferSize
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	if c.atTimeout < 0 || c.flushTimeout < 0 || c.pollInterval < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.rxBufferSize < MinRxBufferSize {
		return fmt.Errorf("rx buffer size %d is below %d", c.rxBufferSize, MinRxBufferSize)
	}
	if c.hexBufferSize < MinHexBufferSize || c.hexBufferSize%2 != 0 {
		return fmt.Errorf("hex buffer size %d must be even and at least %d", c.hexBufferSize, MinHexBufferSize)
	}
	return nil
}

// ConfigBuilder assembles a Config.
//
//	config, err := modem.NewConfigBuilder().
//		WithDialer(modem.SerialDialer{PortName: "/dev/ttyUSB0"}).
//		WithATTimeout(5 * time.Second).
//		Build()
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets the Dialer used by New to open the transport.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithATTimeout sets the timeout for intermediate responses.
func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

// WithFlushTimeout sets how long New drains start-up output from the modem.
func (b *ConfigBuilder) WithFlushTimeout(d time.Duration) *ConfigBuilder {
	b.config.flushTimeout = d
	return b
}

// WithSkipFlush disables draining of start-up output in New.
func (b *ConfigBuilder) WithSkipFlush(skip bool) *ConfigBuilder {
	b.config.skipFlush = skip
	return b
}

// WithPollInterval sets the delay between transport polls while no byte is
// available.
func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.pollInterval = d
	return b
}

// WithRxBufferSize sets the longest line the driver accumulates before
// forcing it complete.
func (b *ConfigBuilder) WithRxBufferSize(n int) *ConfigBuilder {
	b.config.rxBufferSize = n
	return b
}

// WithHexBufferSize sets the size of the hex text buffer, which bounds the
// datagram size to half of it.
func (b *ConfigBuilder) WithHexBufferSize(n int) *ConfigBuilder {
	b.config.hexBufferSize = n
	return b
}

// WithStrictPrefix switches expected-response matching from the loose
// lexicographic comparison to a plain prefix test.
func (b *ConfigBuilder) WithStrictPrefix(strict bool) *ConfigBuilder {
	b.config.strictPrefix = strict
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build applies defaults and validates the configuration.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	config.setDefaults()
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}
