package realm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/udisondev/realmkeep/internal/config"
	"github.com/udisondev/realmkeep/internal/db"
)

// Server is the realm service's TCP front end: it accepts connections,
// hands each one to a fresh per-connection actor, and drives the shared
// Manager's tick loop for as long as it runs.
type Server struct {
	cfg config.Realm
	mgr *Manager
	log *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer constructs a Server. debug enables the per-tick watchdog that
// panics on a stuck tick, matching constants.TickWatchdog.
func NewServer(cfg config.Realm, accounts db.AccountRepository, characters db.CharacterRepository, items db.ItemRepository, areaTriggers []db.AreaTrigger, debug bool, log *slog.Logger) *Server {
	return &Server{
		cfg: cfg,
		mgr: NewManager(cfg.RealmID, accounts, characters, items, areaTriggers, debug, log),
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
		return fmt.Errorf("realm: listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts on an already-bound listener, useful for tests that want an
// ephemeral port. It blocks until ctx is canceled or the listener fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.mgr.Run(ctx)
	}()

	s.log.Info("realm server listening", "address", ln.Addr(), "realm_id", s.cfg.RealmID)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			if ctx.Err() != nil {
				break
			}
			s.log.Error("realm accept failed", "error", err)
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
