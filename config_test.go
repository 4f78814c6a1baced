package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(WithDefaults())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", config.BindAddress)
	assert.Equal(t, 57600, config.BaudRate)
	assert.Equal(t, "standard", config.RadioMode)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, 5*time.Second, config.ATTimeout)
	assert.Empty(t, config.Hello)
}

func TestLoadConfig_File(t *testing.T) {
	t.Run("Overrides defaults", func(t *testing.T) {
		path := writeConfigFile(t, `
serial_port = "/dev/ttyAMA0"
baud_rate = 9600
radio_mode = "softradio"
connect_timeout = "90s"
receive_timeout = "250ms"
hello = "Hello World!"
`)
		config, err := LoadConfig(WithDefaults(), WithFile(path))
		require.NoError(t, err)

		assert.Equal(t, "/dev/ttyAMA0", config.SerialPort)
		assert.Equal(t, 9600, config.BaudRate)
		assert.Equal(t, "softradio", config.RadioMode)
		assert.Equal(t, 90*time.Second, config.ConnectTimeout)
		assert.Equal(t, 250*time.Millisecond, config.ReceiveTimeout)
		assert.Equal(t, "Hello World!", config.Hello)
		// Untouched keys keep their defaults
		assert.Equal(t, "0.0.0.0:8080", config.BindAddress)
		assert.Equal(t, 30*time.Second, config.SendTimeout)
	})

	t.Run("Empty path is ignored", func(t *testing.T) {
		config, err := LoadConfig(WithDefaults(), WithFile(""))
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyUSB0", config.SerialPort)
	})

	t.Run("Unknown key", func(t *testing.T) {
		path := writeConfigFile(t, `sim_pin = "1234"`)
		_, err := LoadConfig(WithDefaults(), WithFile(path))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sim_pin")
	})

	t.Run("Invalid duration", func(t *testing.T) {
		path := writeConfigFile(t, `at_timeout = "soon"`)
		_, err := LoadConfig(WithDefaults(), WithFile(path))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at_timeout")
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadConfig(WithFile(filepath.Join(t.TempDir(), "absent.toml")))
		require.Error(t, err)
	})
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("SERIAL_PORT", "/dev/ttyS1")
	t.Setenv("RADIO_MODE", "softradio")
	t.Setenv("CONNECT_TIMEOUT", "45s")
	t.Setenv("SEND_TIMEOUT", "10s")
	t.Setenv("RECEIVE_TIMEOUT", "750ms")
	t.Setenv("AT_TIMEOUT", "3s")

	path := writeConfigFile(t, `serial_port = "/dev/ttyAMA0"`)
	config, err := LoadConfig(WithDefaults(), WithFile(path), WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS1", config.SerialPort)
	assert.Equal(t, "softradio", config.RadioMode)
	assert.Equal(t, 45*time.Second, config.ConnectTimeout)
	assert.Equal(t, 10*time.Second, config.SendTimeout)
	assert.Equal(t, 750*time.Millisecond, config.ReceiveTimeout)
	assert.Equal(t, 3*time.Second, config.ATTimeout)
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("serial-port", "", "")
	fs.String("radio-mode", "", "")
	fs.Bool("soft-radio", false, "")
	fs.Duration("send-timeout", 0, "")
	fs.String("connect-timeout", "", "")
	fs.String("hello", "", "")
	return fs
}

func TestLoadConfig_Flags(t *testing.T) {
	t.Run("Only visited flags apply", func(t *testing.T) {
		fs := newFlagSet()
		require.NoError(t, fs.Parse([]string{"-serial-port", "/dev/ttyUSB3", "-send-timeout", "1m"}))

		config, err := LoadConfig(WithDefaults(), WithFlags(fs))
		require.NoError(t, err)

		assert.Equal(t, "/dev/ttyUSB3", config.SerialPort)
		assert.Equal(t, time.Minute, config.SendTimeout)
		assert.Equal(t, "standard", config.RadioMode)
	})

	t.Run("Soft radio shorthand", func(t *testing.T) {
		fs := newFlagSet()
		require.NoError(t, fs.Parse([]string{"-soft-radio"}))

		config, err := LoadConfig(WithDefaults(), WithFlags(fs))
		require.NoError(t, err)
		assert.Equal(t, "softradio", config.RadioMode)
	})

	t.Run("Invalid duration", func(t *testing.T) {
		fs := newFlagSet()
		require.NoError(t, fs.Parse([]string{"-connect-timeout", "later"}))

		_, err := LoadConfig(WithDefaults(), WithFlags(fs))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connect-timeout")
	})
}
