package auth

import "github.com/udisondev/realmkeep/internal/constants"

// ClientEvent is what a per-connection actor forwards to the session
// manager: a decoded opcode from one peer (spec.md §4.2).
type ClientEvent struct {
	Addr    string
	Opcode  constants.Opcode
	Payload []byte
}

// ServerEventKind tags the variant carried by a ServerEvent.
type ServerEventKind int

const (
	EventLogonChallenge ServerEventKind = iota
	EventLogonProof
	EventReconnectChallenge
	EventReconnectProof
	EventRealmList
	EventDisconnect
)

// ServerEvent is what the manager enqueues on a session's mailbox for the
// actor to serialize to the wire, or a Disconnect instruction to close the
// socket (spec.md §4.2).
type ServerEvent struct {
	Kind ServerEventKind

	LogonChallenge     *LogonChallengeReply
	LogonProof         *LogonProofReply
	ReconnectChallenge *ReconnectChallengeReply
	ReconnectProof     *ReconnectProofReply
	RealmList          *RealmListReply
}

// LogonChallengeReply is the LogonChallenge response, embedding the fields
// spec.md §6 names for a success reply; Result carries the failure code
// otherwise.
type LogonChallengeReply struct {
	Result          byte
	ServerPublicKey [32]byte
	Generator       byte
	LargeSafePrime  [32]byte
	Salt            [32]byte
	CRCSalt         [16]byte
}

// LogonProofReply is the LogonProof response.
type LogonProofReply struct {
	Result      byte
	ServerProof [20]byte
}

// ReconnectChallengeReply is the ReconnectChallenge response.
type ReconnectChallengeReply struct {
	Result        byte
	ChallengeData [16]byte
	ChecksumSalt  [16]byte
}

// ReconnectProofReply is the ReconnectProof response.
type ReconnectProofReply struct {
	Result byte
}

// RealmListEntry is one realm row in a RealmList reply.
type RealmListEntry struct {
	ID      int64
	Name    string
	Address string
	Port    int
}

// RealmListReply is the RealmList response.
type RealmListReply struct {
	Realms []RealmListEntry
}
