package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type Server struct {
	Engine *gin.Engine

	mu         sync.Mutex
	srv        *http.Server
	onShutdown []func()
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{Engine: NewRouter(cfg)}
}

// OnShutdown registers fn to run when Shutdown starts. Long-lived streams use it to end
// their handlers, which Shutdown otherwise waits for. Call before Run.
func (s *Server) OnShutdown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onShutdown = append(s.onShutdown, fn)
}

// Run serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Run(address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	for _, fn := range s.onShutdown {
		srv.RegisterOnShutdown(fn)
	}
	s.mu.Unlock()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
