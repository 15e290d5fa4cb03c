// Package auth is the auth session manager (C3) and its per-connection
// actor (C2): the SRP6 challenge/proof/reconnect state machine described in
// spec.md §4.3.
package auth

import (
	"time"

	"github.com/udisondev/realmkeep/internal/srp6"
)

// State is a session's position in the SRP6 state machine.
type State int

const (
	StateConnected State = iota
	StateChallengeIssued
	StateAuthenticated
	StateReconnectPending
)

// Authentication is the SRP context retained after a successful LogonProof,
// used to answer later ReconnectChallenge requests.
type Authentication struct {
	Username               string
	SessionKey             [40]byte
	ReconnectChallengeData srp6.ReconnectChallengeData
}

// Session is a per-peer-address AuthSession (spec.md §3). At most one
// exists per address; the manager that owns the map enforces that.
type Session struct {
	Addr      string
	State     State
	CreatedAt time.Time

	// Populated while in StateChallengeIssued.
	Verifier *srp6.Verifier
	Username string

	// Populated once Authenticated; retained through ReconnectPending.
	Auth *Authentication

	Mailbox chan ServerEvent
}

// NewSession returns a freshly connected session with its mailbox ready to
// receive outbound events.
func NewSession(addr string, mailbox chan ServerEvent) *Session {
	return &Session{
		Addr:      addr,
		State:     StateConnected,
		CreatedAt: time.Now(),
		Mailbox:   mailbox,
	}
}

// Age returns how long this session has existed.
func (s *Session) Age() time.Duration {
	return time.Since(s.CreatedAt)
}
