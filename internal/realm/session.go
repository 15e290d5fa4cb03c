// Package realm is the realm/world service's session manager (C4) and its
// teleport/movement handlers (C8), wired over the world tick engine (C6/C7)
// and character manager (C5) already built in internal/world and
// internal/charmgr.
package realm

import "time"

// State is a RealmClient's position in the lifecycle spec.md §3 names.
type State int

const (
	StatePreLogin State = iota
	StateCharacterSelection
	StateDisconnectPendingCleanup
	StateDisconnected
)

// Session is a RealmClient: per-peer-address state for a realm connection.
type Session struct {
	Addr      string
	State     State
	CreatedAt time.Time

	AccountID int64
	Username  string

	// ActiveCharacter is the guid of the character this connection is
	// currently playing, or nil while at the character-selection lobby.
	ActiveCharacter *uint64

	Mailbox chan ServerEvent
}

// NewSession returns a freshly connected, pre-authenticated session.
func NewSession(addr string, mailbox chan ServerEvent) *Session {
	return &Session{
		Addr:      addr,
		State:     StatePreLogin,
		CreatedAt: time.Now(),
		Mailbox:   mailbox,
	}
}
