package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/udisondev/realmkeep/internal/config"
	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/db"
)

// Server is the auth service's TCP front end: it accepts connections and
// hands each one to a fresh per-connection actor, all sharing one Manager.
type Server struct {
	cfg config.Auth
	mgr *Manager
	log *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer constructs a Server over the given repositories.
func NewServer(cfg config.Auth, accounts db.AccountRepository, realms db.RealmRepository, log *slog.Logger) *Server {
	reconnectLifetime := cfg.ReconnectLifetime
	if reconnectLifetime <= 0 {
		reconnectLifetime = constants.DefaultReconnectLifetime
	}
	return &Server{
		cfg: cfg,
		mgr: NewManager(accounts, realms, reconnectLifetime, log),
		log: log,
	}
}

// Addr returns the bound listener address, or nil before Run starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on cfg.BindAddress:cfg.Port and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("auth: listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts on an already-bound listener, useful for tests that want
// an ephemeral port. It blocks until ctx is canceled or the listener fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tickLoop(ctx)
	}()

	s.log.Info("auth server listening", "address", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			if ctx.Err() != nil {
				break
			}
			s.log.Error("auth accept failed", "error", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			runConnection(ctx, conn, s.mgr, s.log)
		}()
	}

	wg.Wait()
	return nil
}

// tickLoop drives Manager.Tick at least as often as
// constants.AuthSessionTickInterval (spec.md §4.3).
func (s *Server) tickLoop(ctx context.Context) {
	t := time.NewTicker(constants.AuthSessionTickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.mgr.Tick()
		}
	}
}
