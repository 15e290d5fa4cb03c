package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/db"
	"github.com/udisondev/realmkeep/internal/srp6"
)

// Manager is the auth session manager (C3): it owns every connected
// Session, keyed by peer address, and tracks which session currently holds
// each authenticated account so a later reconnect or a duplicate login from
// elsewhere can be resolved. Unlike the realm service's per-map actor, one
// Manager is shared by every per-connection actor the server spawns, so its
// maps are guarded by mu.
type Manager struct {
	mu sync.Mutex

	sessions      map[string]*Session // addr -> session
	authenticated map[string]*Session // username (as the client sent it) -> the session holding that login
	accounts      db.AccountRepository
	realms        db.RealmRepository

	reconnectLifetime time.Duration
	log               *slog.Logger
}

// NewManager constructs a Manager. reconnectLifetime is the age, measured
// from a session's creation, past which Tick evicts the session and its
// authenticated-account claim, after which ReconnectChallenge no longer
// finds it (spec.md §4.3); pass constants.DefaultReconnectLifetime when
// AUTH_RECONNECT_LIFETIME is unset.
func NewManager(accounts db.AccountRepository, realms db.RealmRepository, reconnectLifetime time.Duration, log *slog.Logger) *Manager {
	return &Manager{
		sessions:          make(map[string]*Session),
		authenticated:     make(map[string]*Session),
		accounts:          accounts,
		realms:            realms,
		reconnectLifetime: reconnectLifetime,
		log:               log,
	}
}

// HandleClientConnected registers a freshly accepted connection and returns
// its Session.
func (m *Manager) HandleClientConnected(addr string, mailbox chan ServerEvent) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := NewSession(addr, mailbox)
	m.sessions[addr] = s
	return s
}

// HandleClientDisconnected forgets addr's session and, if it was the
// current holder of an authenticated login, clears that claim too.
func (m *Manager) HandleClientDisconnected(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[addr]
	if !ok {
		return
	}
	delete(m.sessions, addr)
	if s.Auth != nil {
		if cur, ok := m.authenticated[s.Username]; ok && cur == s {
			delete(m.authenticated, s.Username)
		}
	}
}

// HandleEvent dispatches a decoded client message to the matching handler.
func (m *Manager) HandleEvent(ctx context.Context, ev ClientEvent) error {
	m.mu.Lock()
	s, ok := m.sessions[ev.Addr]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("auth: event from unknown session %s", ev.Addr)
	}

	switch ev.Opcode {
	case constants.CMDAuthLogonChallenge:
		return m.handleLogonChallenge(ctx, s, ev.Payload)
	case constants.CMDAuthLogonProof:
		return m.handleLogonProof(ctx, s, ev.Payload)
	case constants.CMDAuthReconnectChallenge:
		return m.handleReconnectChallenge(ctx, s, ev.Payload)
	case constants.CMDAuthReconnectProof:
		return m.handleReconnectProof(s, ev.Payload)
	case constants.CMDRealmList:
		return m.handleRealmList(ctx, s)
	default:
		return fmt.Errorf("auth: unexpected opcode %#x from %s", ev.Opcode, ev.Addr)
	}
}

func (m *Manager) handleLogonChallenge(ctx context.Context, s *Session, payload []byte) error {
	username, err := decodeUsername(payload)
	if err != nil {
		return err
	}

	acc, err := m.accounts.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("auth: looking up %q: %w", username, err)
	}
	if acc == nil {
		s.Mailbox <- ServerEvent{Kind: EventLogonChallenge, LogonChallenge: &LogonChallengeReply{Result: constants.AuthFailUnknownAccount}}
		return nil
	}
	if acc.Banned {
		s.Mailbox <- ServerEvent{Kind: EventLogonChallenge, LogonChallenge: &LogonChallengeReply{Result: constants.AuthFailBanned}}
		return nil
	}

	verifier, err := srp6.NewVerifier(acc.V, acc.S)
	if err != nil {
		return fmt.Errorf("auth: rebuilding verifier for %q: %w", username, err)
	}
	challenge, err := verifier.IssueChallenge()
	if err != nil {
		return fmt.Errorf("auth: issuing challenge for %q: %w", username, err)
	}

	s.Verifier = verifier
	s.Username = username
	s.State = StateChallengeIssued

	s.Mailbox <- ServerEvent{
		Kind: EventLogonChallenge,
		LogonChallenge: &LogonChallengeReply{
			Result:          constants.AuthSuccess,
			ServerPublicKey: challenge.ServerPublicKey,
			Generator:       byte(srp6.Generator.Int64()),
			LargeSafePrime:  largeSafePrimeBytes(),
			Salt:            challenge.Salt,
			CRCSalt:         constants.CRCSalt,
		},
	}
	return nil
}

func (m *Manager) handleLogonProof(ctx context.Context, s *Session, payload []byte) error {
	if s.State != StateChallengeIssued {
		return fmt.Errorf("auth: logon proof from %s outside ChallengeIssued (state=%d)", s.Addr, s.State)
	}

	clientPublicKey, clientProof, err := decodeLogonProof(payload)
	if err != nil {
		return err
	}

	result, err := s.Verifier.VerifyProof(clientPublicKey, clientProof)
	if err != nil {
		s.Mailbox <- ServerEvent{Kind: EventLogonProof, LogonProof: &LogonProofReply{Result: constants.AuthFailIncorrectPwd}}
		s.State = StateConnected
		return nil
	}

	if err := m.accounts.SetSessionKey(ctx, s.Username, srp6.SessionKeyHex(result.SessionKey)); err != nil {
		return fmt.Errorf("auth: persisting session key for %q: %w", s.Username, err)
	}

	reconnectData, err := srp6.NewReconnectChallengeData()
	if err != nil {
		return fmt.Errorf("auth: generating reconnect data for %q: %w", s.Username, err)
	}

	s.Auth = &Authentication{
		Username:               s.Username,
		SessionKey:             result.SessionKey,
		ReconnectChallengeData: reconnectData,
	}
	s.State = StateAuthenticated

	// A second login for the same account displaces the first: the
	// earlier socket is told to disconnect (spec.md §8 scenario 3).
	m.mu.Lock()
	if prior, ok := m.authenticated[s.Username]; ok && prior != s {
		prior.Mailbox <- ServerEvent{Kind: EventDisconnect}
	}
	m.authenticated[s.Username] = s
	m.mu.Unlock()

	s.Mailbox <- ServerEvent{Kind: EventLogonProof, LogonProof: &LogonProofReply{Result: constants.AuthSuccess, ServerProof: result.ServerProof}}
	return nil
}

func (m *Manager) handleReconnectChallenge(ctx context.Context, s *Session, payload []byte) error {
	username, err := decodeUsername(payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	existing, ok := m.authenticated[username]
	m.mu.Unlock()

	// spec.md §9 open question: the original client_manager.rs kept
	// reading the session's Authentication after this branch even when
	// no authenticated session existed, panicking on the missing value.
	// This early return is the fix: an unknown or expired account just
	// fails the reconnect instead of crashing the connection.
	if !ok || existing.Auth == nil {
		s.Mailbox <- ServerEvent{Kind: EventReconnectChallenge, ReconnectChallenge: &ReconnectChallengeReply{Result: constants.AuthFailUnknownAccount}}
		return nil
	}

	s.Username = username
	s.Auth = existing.Auth
	s.State = StateReconnectPending

	s.Mailbox <- ServerEvent{
		Kind: EventReconnectChallenge,
		ReconnectChallenge: &ReconnectChallengeReply{
			Result:        constants.AuthSuccess,
			ChallengeData: existing.Auth.ReconnectChallengeData,
			ChecksumSalt:  constants.ChecksumSalt,
		},
	}
	return nil
}

func (m *Manager) handleReconnectProof(s *Session, payload []byte) error {
	if s.State != StateReconnectPending || s.Auth == nil {
		return fmt.Errorf("auth: reconnect proof from %s outside ReconnectPending (state=%d)", s.Addr, s.State)
	}

	data, proof, err := decodeReconnectProof(payload)
	if err != nil {
		return err
	}

	if !srp6.VerifyReconnectProof(s.Auth.SessionKey, s.Auth.ReconnectChallengeData, data, proof) {
		s.Mailbox <- ServerEvent{Kind: EventReconnectProof, ReconnectProof: &ReconnectProofReply{Result: constants.AuthFailIncorrectPwd}}
		s.State = StateConnected
		return nil
	}

	// spec.md §9 open question: the original also skipped sending the
	// stale socket a Disconnect event before dropping it. Here the prior
	// holder (if it is a different, still-connected session than this
	// one) is told to disconnect before this session takes over the
	// claim, so no two sockets end up believing they own the login.
	m.mu.Lock()
	if prior, ok := m.authenticated[s.Username]; ok && prior != s {
		prior.Mailbox <- ServerEvent{Kind: EventDisconnect}
	}
	m.authenticated[s.Username] = s
	m.mu.Unlock()

	s.State = StateAuthenticated
	s.Mailbox <- ServerEvent{Kind: EventReconnectProof, ReconnectProof: &ReconnectProofReply{Result: constants.AuthSuccess}}
	return nil
}

// handleRealmList answers a realm list request. The original
// client_manager.rs redundantly rewrote the session's state to
// LogOnProof here even though only an Authenticated session may reach
// this handler; that rewrite is a harmless no-op and is preserved as
// such rather than "fixed" away, since nothing downstream reads the
// state between this write and the next state transition.
func (m *Manager) handleRealmList(ctx context.Context, s *Session) error {
	if s.State != StateAuthenticated {
		return fmt.Errorf("auth: realm list from %s outside Authenticated (state=%d)", s.Addr, s.State)
	}
	s.State = StateAuthenticated // preserved no-op, see doc comment

	realms, err := m.realms.ListRealms(ctx)
	if err != nil {
		return fmt.Errorf("auth: listing realms for %s: %w", s.Addr, err)
	}

	entries := make([]RealmListEntry, len(realms))
	for i, r := range realms {
		entries[i] = RealmListEntry{ID: r.ID, Name: r.Name, Address: r.Address, Port: r.Port}
	}
	s.Mailbox <- ServerEvent{Kind: EventRealmList, RealmList: &RealmListReply{Realms: entries}}
	return nil
}

// Tick sweeps both AuthSession and authenticated-account entries whose age
// exceeds reconnectLifetime, matching spec.md §3's "pruned when now −
// created_at > RECONNECT_LIFETIME" invariant and §4.3's periodic cleanup.
// It should be called at least as often as constants.AuthSessionTickInterval.
func (m *Manager) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for username, s := range m.authenticated {
		if s.Age() > m.reconnectLifetime {
			delete(m.authenticated, username)
		}
	}

	for addr, s := range m.sessions {
		if s.Age() > m.reconnectLifetime {
			delete(m.sessions, addr)
		}
	}
}

func largeSafePrimeBytes() [32]byte {
	var out [32]byte
	b := srp6.LargeSafePrime.Bytes()
	// LargeSafePrime is big-endian from math/big; the wire field is
	// little-endian, right-padded to 32 bytes like every other SRP6 field.
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
