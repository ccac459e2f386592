package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"blindtest/internal/config"
	"blindtest/internal/history"
	"blindtest/internal/logging"
)

// ServerConfig wires the HTTP bridge.
type ServerConfig struct {
	Config *config.Config
	// Bind overrides Config.Server.Bind when set.
	Bind      string
	History   *history.Store
	Logger    *slog.Logger
	StartTime time.Time
}

func (c ServerConfig) bind() string {
	if c.Bind != "" {
		return c.Bind
	}
	if c.Config != nil {
		return c.Config.Server.Bind
	}
	return "127.0.0.1:0"
}

func (c ServerConfig) eventsPerSecond() float64 {
	if c.Config == nil {
		return 0
	}
	return c.Config.Server.EventsPerSecond
}

type Server struct {
	httpServer *http.Server
	manager    *Manager
	logger     *slog.Logger
	listener   net.Listener
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}
	manager := NewManager(cfg.Config, cfg.History, cfg.Logger)
	router := NewRouter(cfg, manager)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.bind(),
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      0,
			IdleTimeout:       60 * time.Second,
		},
		manager: manager,
		logger:  manager.logger,
	}
}

// Listen binds the configured address so Addr reports the real port.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("starting HTTP server", logging.String("addr", s.Addr()))
	err := s.httpServer.Serve(s.listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels any running export and waits
// for it to record its result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.manager.Close()
	return err
}

func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}
