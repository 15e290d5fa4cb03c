package realm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/realmkeep/internal/charmgr"
	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/db"
	"github.com/udisondev/realmkeep/internal/model"
	"github.com/udisondev/realmkeep/internal/world"
)

// time.Now is indirected through this variable so tests can make logout
// deadlines deterministic.
var timeNow = time.Now

// Manager is the realm session manager (C4): it owns every connected
// Session and the live character manager, and drives the world engine
// (C6/C7) and the teleport/movement state machine (C8) from one tick loop,
// matching spec.md §4.4's "single-threaded, many tasks on one executor"
// model. Per-connection actors never call its handlers directly; they
// enqueue ClientEvents on events and the tick loop drains them.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byChar   map[uint64]*Session // active character guid -> owning session

	events chan ClientEvent

	accounts     db.AccountRepository
	characters   db.CharacterRepository
	items        db.ItemRepository
	areaTriggers []db.AreaTrigger

	chars  *charmgr.Manager
	engine *world.Engine

	realmID int64
	log     *slog.Logger

	ctx context.Context
}

// NewManager constructs a Manager. The world engine (C6/C7) drives this
// manager's own per-tick work too: drainEvents, tickCharacters, and
// cleanupDisconnected run as the engine's pre-tick hook, flushUpdates as
// its post-tick hook, so Run below is just the engine's own ticker loop
// rather than a second, parallel one.
func NewManager(realmID int64, accounts db.AccountRepository, characters db.CharacterRepository, items db.ItemRepository, areaTriggers []db.AreaTrigger, debug bool, log *slog.Logger) *Manager {
	m := &Manager{
		sessions:     make(map[string]*Session),
		byChar:       make(map[uint64]*Session),
		events:       make(chan ClientEvent, constants.MailboxSize),
		accounts:     accounts,
		characters:   characters,
		items:        items,
		areaTriggers: areaTriggers,
		chars:        charmgr.New(),
		engine:       world.NewEngine(debug),
		realmID:      realmID,
		log:          log,
		ctx:          context.Background(),
	}
	m.engine.Before = func(cm *charmgr.Manager) error {
		m.drainEvents()
		m.tickCharacters()
		m.cleanupDisconnected()
		return nil
	}
	m.engine.After = func(cm *charmgr.Manager) error {
		m.flushUpdates()
		return nil
	}
	return m
}

// HandleClientConnected registers a freshly accepted connection.
func (m *Manager) HandleClientConnected(addr string, mailbox chan ServerEvent) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := NewSession(addr, mailbox)
	m.sessions[addr] = s
	return s
}

// HandleClientDisconnected marks addr's session for cleanup; the actual
// character/world teardown happens on the next tick's disconnect-cleanup
// pass, matching the one-tick DisconnectPendingCleanup lifecycle spec.md §3
// names.
func (m *Manager) HandleClientDisconnected(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[addr]
	if !ok {
		return
	}
	s.State = StateDisconnectPendingCleanup
}

// Enqueue hands a decoded client message to the manager for processing on
// the next tick.
func (m *Manager) Enqueue(ev ClientEvent) {
	m.events <- ev
}

// Run drives the world engine's tick loop at constants.DesiredTimestep
// until ctx is canceled; the manager's own per-tick work rides along as
// the engine's Before/After hooks (see NewManager).
func (m *Manager) Run(ctx context.Context) {
	m.ctx = ctx
	m.engine.Run(ctx, m.chars)
}

// tick runs a single engine tick directly, bypassing the ticker. Used by
// tests that want a deterministic, single-step world tick.
func (m *Manager) tick() {
	m.engine.TickOnce(m.chars)
}

func (m *Manager) drainEvents() {
	for {
		select {
		case ev := <-m.events:
			if err := m.dispatch(ev); err != nil {
				m.log.Warn("realm event handling failed", "remote", ev.Addr, "opcode", fmt.Sprintf("%#x", ev.Opcode), "error", err)
			}
		default:
			return
		}
	}
}

func (m *Manager) dispatch(ev ClientEvent) error {
	m.mu.Lock()
	s, ok := m.sessions[ev.Addr]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("realm: event from unknown session %s", ev.Addr)
	}

	switch ev.Opcode {
	case constants.CMSGAuthSession:
		return m.handleAuthSession(s, ev.Payload)
	case constants.CMSGPing:
		return m.handlePing(s, ev.Payload)
	case constants.CMSGRealmSplit:
		return m.handleRealmSplit(s, ev.Payload)
	case constants.CMSGSetActiveMover:
		return m.handleSetActiveMover(s, ev.Payload)
	case constants.CMSGLogoutRequest:
		return m.handleLogoutRequest(s)
	case constants.CMSGLogoutCancel:
		return m.handleLogoutCancel(s)
	case constants.MSGMoveTeleportAck:
		return m.handleMoveTeleportAck(s)
	case constants.MSGMoveWorldportAck:
		return m.handleMoveWorldportAck(s)
	case constants.MSGMove:
		return m.handleMovement(s, ev.Payload)
	case constants.CMSGAreaTrigger:
		return m.handleAreaTrigger(s, ev.Payload)
	default:
		return fmt.Errorf("realm: unexpected opcode %#x from %s", ev.Opcode, ev.Addr)
	}
}

func (m *Manager) activeCharacter(s *Session) (*model.Character, error) {
	if s.ActiveCharacter == nil {
		return nil, fmt.Errorf("realm: %s has no active character", s.Addr)
	}
	return m.chars.Get(*s.ActiveCharacter)
}
