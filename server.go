package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"i4.energy/across/nbiot/modem"
)

// Server handles incoming HTTP requests for interacting with the
// configured modem instance
type Server struct {
	Logger *slog.Logger
	Modem  *modem.Modem
	// SendTimeout bounds the wait for the modem's sent indication
	SendTimeout time.Duration
	// ReceiveTimeout bounds the wait for a poll response
	ReceiveTimeout time.Duration
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /datagrams", s.handleSend)
	mux.HandleFunc("GET /datagrams", s.handleReceive)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	s.sendJSON(w, ErrorResponse{Message: message}, statusCode)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Failed to write response", "error", err)
	}
}

// statusFor maps modem errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, modem.ErrDatagramTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, modem.ErrNotRegistered), errors.Is(err, modem.ErrAlreadyClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, modem.ErrSendFailed),
		errors.Is(err, modem.ErrMalformedDeviceResponse),
		errors.Is(err, modem.ErrDeviceError),
		errors.Is(err, modem.ErrResponseTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleSend processes incoming HTTP POST requests to send an uplink datagram
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	type SendRequest struct {
		Message string `json:"message"`
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Message == "" {
		s.sendError(w, "'message' field is required", http.StatusBadRequest)
		return
	}

	if err := s.Modem.Send(r.Context(), []byte(req.Message), s.SendTimeout); err != nil {
		s.Logger.Error("Failed to send datagram", "error", err, "length", len(req.Message))
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	s.Logger.Info("Datagram sent successfully", "length", len(req.Message))
	w.WriteHeader(http.StatusOK)
}

// handleReceive polls the modem for one downlink datagram
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	buf := make([]byte, s.Modem.MaxDatagramSize())
	n, err := s.Modem.Receive(r.Context(), buf, s.ReceiveTimeout)
	if err != nil {
		s.Logger.Error("Failed to receive datagram", "error", err)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	if n == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	type ReceiveResponse struct {
		Message string `json:"message"`
		Length  int    `json:"length"`
	}
	s.sendJSON(w, ReceiveResponse{Message: string(buf[:n]), Length: n}, http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	type StatusResponse struct {
		State           string                `json:"state"`
		MaxDatagramSize int                   `json:"max_datagram_size"`
		Metrics         modem.MetricsSnapshot `json:"metrics"`
	}
	s.sendJSON(w, StatusResponse{
		State:           s.Modem.State().String(),
		MaxDatagramSize: s.Modem.MaxDatagramSize(),
		Metrics:         s.Modem.Metrics(),
	}, http.StatusOK)
}
