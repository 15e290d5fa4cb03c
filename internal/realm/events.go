package realm

import (
	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/model"
)

// ClientEvent is a decoded opcode forwarded by a per-connection actor to
// the realm session manager (spec.md §4.2).
type ClientEvent struct {
	Addr    string
	Opcode  constants.Opcode
	Payload []byte
}

// ServerEventKind tags the variant carried by a ServerEvent.
type ServerEventKind int

const (
	EventAuthResponse ServerEventKind = iota
	EventAddonInfo
	EventClientCacheVersion
	EventTutorialFlags
	EventPong
	EventRealmSplit
	EventLogoutResponse
	EventLogoutCancelAck
	EventLogoutComplete
	EventTeleportAck
	EventTransferPending
	EventNewWorld
	EventUpdateObject
	EventMovement
	EventDisconnect
)

// ServerEvent is what the manager enqueues on a session's mailbox.
type ServerEvent struct {
	Kind ServerEventKind

	AuthResponse       *AuthResponseReply
	ClientCacheVersion *ClientCacheVersionReply
	Pong               *PongReply
	RealmSplit     *RealmSplitReply
	LogoutResponse *LogoutResponseReply
	TeleportAck    *TeleportAckReply
	TransferMap    uint32
	NewWorld       *NewWorldReply
	Updates        []model.UpdateBlock
	Movement       *MovementRelay
}

// ClientCacheVersionReply is SMSG_CLIENT_CACHE_VERSION, sent right after a
// successful auth response.
type ClientCacheVersionReply struct {
	Version uint32
}

// AuthResponseReply is the CMSG_AUTH_SESSION response. On success it also
// carries the session key so the actor can install the per-direction
// stream cipher (internal/crypto) before the next frame is read or written.
type AuthResponseReply struct {
	Success    bool
	SessionKey [40]byte
}

// PongReply answers a CMSG_PING.
type PongReply struct {
	Sequence uint32
}

// RealmSplitReply answers CMSG_REALM_SPLIT.
type RealmSplitReply struct {
	RealmID uint32
	State   uint32
}

// LogoutResponseReply answers a logout request or cancel.
type LogoutResponseReply struct {
	Accepted bool
}

// TeleportAckReply is MSG_MOVE_TELEPORT_ACK_Server, the near-teleport
// acknowledgement the server sends once it promotes Queued to Executing.
type TeleportAckReply struct {
	GUID uint64
	Pos  model.Position
}

// NewWorldReply is SMSG_NEW_WORLD, sent with the destination map/position
// once a far teleport has been promoted to Executing.
type NewWorldReply struct {
	Map uint32
	Pos model.Position
}

// MovementRelay is a movement opcode rebroadcast verbatim to an observer,
// spec.md §4.8's "same opcode fanned out to every observer in range".
type MovementRelay struct {
	GUID    uint64
	Payload []byte
}
