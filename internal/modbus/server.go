package modbus

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	mb "github.com/simonvetter/modbus"

	"github.com/nerrad567/iedsim/internal/activity"
	"github.com/nerrad567/iedsim/internal/infrastructure/config"
)

const (
	// clientTimeout closes idle master connections.
	clientTimeout = 5 * time.Minute

	// maxClients bounds concurrent master connections.
	maxClients = 32
)

// Logger defines the logging interface used by the adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Server runs the Modbus TCP listener.
type Server struct {
	cfg     config.ModbusConfig
	handler *Handler
	tracker *activity.Tracker
	logger  Logger

	mu      sync.Mutex
	srv     *mb.ModbusServer
	running bool
}

// NewServer prepares a server for regs. tracker may be nil.
func NewServer(cfg config.ModbusConfig, regs Registers, tracker *activity.Tracker) (*Server, error) {
	if cfg.UnitID < 0 || cfg.UnitID > 255 {
		return nil, fmt.Errorf("modbus: unit id %d out of range", cfg.UnitID)
	}

	var recorder Recorder
	if tracker != nil {
		recorder = tracker
	}

	return &Server{
		cfg:     cfg,
		handler: NewHandler(regs, uint8(cfg.UnitID), recorder),
		tracker: tracker,
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger for the server and its handler.
func (s *Server) SetLogger(logger Logger) {
	s.logger = logger
	s.handler.SetLogger(logger)
}

// Handler returns the request handler.
func (s *Server) Handler() *Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	srv, err := mb.NewServer(&mb.ServerConfiguration{
		URL:        "tcp://" + s.Addr(),
		Timeout:    clientTimeout,
		MaxClients: maxClients,
	}, s.handler)
	if err != nil {
		return fmt.Errorf("creating modbus server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting modbus server on %s: %w", s.Addr(), err)
	}

	s.srv = srv
	s.running = true
	if s.tracker != nil {
		s.tracker.SetRunning(activity.InterfaceModbus, true)
	}
	s.logger.Info("modbus server started", "address", s.Addr(), "unit_id", s.cfg.UnitID)
	return nil
}

// Stop closes the listener and every client connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	if s.tracker != nil {
		s.tracker.SetRunning(activity.InterfaceModbus, false)
	}

	if err := s.srv.Stop(); err != nil {
		return fmt.Errorf("stopping modbus server: %w", err)
	}
	s.logger.Info("modbus server stopped")
	return nil
}

// Running reports whether the listener is up.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
