package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/softreason/softreason/config"
	"github.com/softreason/softreason/pkg/logger"
)

// Server is the lifecycle shared by the listeners in cmd/softreason.
type Server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// HTTPServer serves the REST API, health probes and the event websocket.
type HTTPServer struct {
	srv     *http.Server
	handler http.Handler
	log     logger.Logger

	mu    sync.Mutex
	bound net.Addr
}

var _ Server = (*HTTPServer)(nil)

func NewHTTPServer(cfg *config.Config, log logger.Logger, h *Handlers) *HTTPServer {
	log = logger.OrNop(log)
	handler := NewRouter(cfg, log, h)
	hc := cfg.Server.HTTP

	return &HTTPServer{
		handler: handler,
		log:     log,
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:           handler,
			ReadTimeout:       hc.ReadTimeout,
			ReadHeaderTimeout: hc.ReadTimeout,
			WriteTimeout:      hc.WriteTimeout,
			IdleTimeout:       hc.IdleTimeout,
			MaxHeaderBytes:    hc.MaxHeaderBytes,
			ErrorLog:          newErrorLog(log),
		},
	}
}

// Addr is the bound address once serving, the configured one before.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound != nil {
		return s.bound.String()
	}
	return s.srv.Addr
}

func (s *HTTPServer) Handler() http.Handler { return s.handler }

// Start listens on the configured address and blocks until Shutdown.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ln)
}

// Serve blocks until Shutdown, after which it returns nil.
func (s *HTTPServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.bound = ln.Addr()
	s.mu.Unlock()

	s.log.Info("HTTP server listening",
		"addr", ln.Addr().String(),
		"read_timeout", s.srv.ReadTimeout,
		"write_timeout", s.srv.WriteTimeout,
	)
	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("serve http: %w", err)
}

// Shutdown drains in-flight requests. Connections still open when ctx
// expires are closed and the context error is returned.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		_ = s.srv.Close()
		return fmt.Errorf("shutdown http: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// errorLogWriter sends net/http's internal errors, such as failed TLS
// handshakes, to the structured logger.
type errorLogWriter struct{ log logger.Logger }

func (w errorLogWriter) Write(p []byte) (int, error) {
	w.log.Warn("http server error", "error", strings.TrimSpace(string(p)))
	return len(p), nil
}

func newErrorLog(l logger.Logger) *log.Logger {
	return log.New(errorLogWriter{log: l}, "", 0)
}
