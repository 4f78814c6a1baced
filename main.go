package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phsym/console-slog"

	"i4.energy/across/nbiot/modem"
)

func main() {
	configFile := flag.String("config", "", "Path to a TOML configuration file")
	listPorts := flag.Bool("list-ports", false, "List the available serial ports and exit")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 57600, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("log-format", "json", "Log format (json, console)")
	flag.String("radio-mode", "standard", "Modem firmware variant (standard, softradio)")
	flag.Bool("soft-radio", false, "Shorthand for -radio-mode=softradio")
	flag.Duration("connect-timeout", 2*time.Minute, "Time allowed for network registration, 0 waits forever")
	flag.Duration("send-timeout", 30*time.Second, "Time allowed for the modem to confirm an uplink")
	flag.Duration("receive-timeout", 5*time.Second, "Time allowed for a downlink poll response")
	flag.Duration("at-timeout", 5*time.Second, "Time allowed for other modem responses")
	flag.String("hello", "", "Datagram to send once registered")
	flag.Parse()

	if *listPorts {
		ports, err := modem.ListPorts()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to list serial ports:", err)
			os.Exit(1)
		}
		for _, port := range ports {
			fmt.Println(port)
		}
		return
	}

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stderr, config.LogLevel, config.LogFormat)

	radioMode, err := modem.ParseRadioMode(config.RadioMode)
	if err != nil {
		logger.Error("Invalid radio mode", "error", err)
		os.Exit(1)
	}

	modemConfig, err := modem.NewConfigBuilder().
		WithATTimeout(config.ATTimeout).
		WithLogger(logger.With("component", "modem")).
		WithDialer(modem.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting NB-IoT gateway", "serial_port", config.SerialPort, "radio_mode", radioMode)

	if err := m.Connect(ctx, radioMode, config.ConnectTimeout); err != nil {
		logger.Error("Failed to connect to network", "error", err)
		m.Close()
		os.Exit(1)
	}

	if config.Hello != "" {
		if err := m.Send(ctx, []byte(config.Hello), config.SendTimeout); err != nil {
			logger.Warn("Failed to send hello datagram", "error", err)
		}
	}

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:         logger.With("component", "server"),
			Modem:          m,
			SendTimeout:    config.SendTimeout,
			ReceiveTimeout: config.ReceiveTimeout,
		},
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	if format == "console" {
		return slog.New(console.NewHandler(w, &console.HandlerOptions{Level: logLevel}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}
