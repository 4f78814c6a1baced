package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the modem (e.g. 57600)
	BaudRate int
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// LogFormat selects the log output, "json" or "console"
	LogFormat string
	// RadioMode is the firmware variant of the modem, "standard" or "softradio"
	RadioMode string
	// ConnectTimeout bounds network registration at startup, zero waits forever
	ConnectTimeout time.Duration
	// SendTimeout bounds the wait for the sent indication of an uplink
	SendTimeout time.Duration
	// ReceiveTimeout bounds the wait for a downlink poll response
	ReceiveTimeout time.Duration
	// ATTimeout bounds the wait for every other modem response
	ATTimeout time.Duration
	// Hello is an optional datagram sent once the modem is registered
	Hello string
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 57600
		c.LogLevel = "info"
		c.LogFormat = "json"
		c.RadioMode = "standard"
		c.ConnectTimeout = 2 * time.Minute
		c.SendTimeout = 30 * time.Second
		c.ReceiveTimeout = 5 * time.Second
		c.ATTimeout = 5 * time.Second
		return nil
	}
}

type fileConfig struct {
	BindAddress    string `toml:"bind_address"`
	SerialPort     string `toml:"serial_port"`
	BaudRate       int    `toml:"baud_rate"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`
	RadioMode      string `toml:"radio_mode"`
	ConnectTimeout string `toml:"connect_timeout"`
	SendTimeout    string `toml:"send_timeout"`
	ReceiveTimeout string `toml:"receive_timeout"`
	ATTimeout      string `toml:"at_timeout"`
	Hello          string `toml:"hello"`
}

// WithFile loads configuration from a TOML file. An empty path is a no-op.
// Keys the file sets override earlier options; unknown keys are an error.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}

		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return fmt.Errorf("load config file: unknown keys %s", strings.Join(keys, ", "))
		}

		if meta.IsDefined("bind_address") {
			c.BindAddress = strings.TrimSpace(raw.BindAddress)
		}
		if meta.IsDefined("serial_port") {
			c.SerialPort = strings.TrimSpace(raw.SerialPort)
		}
		if meta.IsDefined("baud_rate") {
			c.BaudRate = raw.BaudRate
		}
		if meta.IsDefined("log_level") {
			c.LogLevel = strings.TrimSpace(raw.LogLevel)
		}
		if meta.IsDefined("log_format") {
			c.LogFormat = strings.TrimSpace(raw.LogFormat)
		}
		if meta.IsDefined("radio_mode") {
			c.RadioMode = strings.TrimSpace(raw.RadioMode)
		}
		if meta.IsDefined("hello") {
			c.Hello = raw.Hello
		}

		durations := []struct {
			key   string
			value string
			dst   *time.Duration
		}{
			{"connect_timeout", raw.ConnectTimeout, &c.ConnectTimeout},
			{"send_timeout", raw.SendTimeout, &c.SendTimeout},
			{"receive_timeout", raw.ReceiveTimeout, &c.ReceiveTimeout},
			{"at_timeout", raw.ATTimeout, &c.ATTimeout},
		}
		for _, d := range durations {
			if !meta.IsDefined(d.key) {
				continue
			}
			v, err := time.ParseDuration(strings.TrimSpace(d.value))
			if err != nil {
				return fmt.Errorf("parse %s: %w", d.key, err)
			}
			*d.dst = v
		}

		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if format := os.Getenv("LOG_FORMAT"); format != "" {
			c.LogFormat = format
		}

		if mode := os.Getenv("RADIO_MODE"); mode != "" {
			c.RadioMode = mode
		}

		durations := []struct {
			name string
			dst  *time.Duration
		}{
			{"CONNECT_TIMEOUT", &c.ConnectTimeout},
			{"SEND_TIMEOUT", &c.SendTimeout},
			{"RECEIVE_TIMEOUT", &c.ReceiveTimeout},
			{"AT_TIMEOUT", &c.ATTimeout},
		}
		for _, d := range durations {
			if v := os.Getenv(d.name); v != "" {
				if parsed, err := time.ParseDuration(v); err == nil {
					*d.dst = parsed
				}
			}
		}

		if hello := os.Getenv("HELLO"); hello != "" {
			c.Hello = hello
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var errs []error
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = f.Value.String()
			case "log-format":
				c.LogFormat = f.Value.String()
			case "radio-mode":
				c.RadioMode = f.Value.String()
			case "soft-radio":
				if f.Value.String() == "true" {
					c.RadioMode = "softradio"
				}
			case "connect-timeout", "send-timeout", "receive-timeout", "at-timeout":
				d, err := time.ParseDuration(f.Value.String())
				if err != nil {
					errs = append(errs, fmt.Errorf("flag -%s: %w", f.Name, err))
					return
				}
				switch f.Name {
				case "connect-timeout":
					c.ConnectTimeout = d
				case "send-timeout":
					c.SendTimeout = d
				case "receive-timeout":
					c.ReceiveTimeout = d
				case "at-timeout":
					c.ATTimeout = d
				}
			case "hello":
				c.Hello = f.Value.String()
			}
		})
		return errors.Join(errs...)
	}
}
