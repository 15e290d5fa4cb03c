// Package constants collects the protocol and world constants shared by the
// auth and realm services.
package constants

import "time"

// Opcode identifies a decoded wire message kind. Values are assigned by the
// protocol library this component treats as an external collaborator; the
// ones named below are the subset this module dispatches on.
type Opcode uint16

// Auth wire opcodes.
const (
	CMDAuthLogonChallenge     Opcode = 0x00
	CMDAuthLogonProof         Opcode = 0x01
	CMDAuthReconnectChallenge Opcode = 0x02
	CMDAuthReconnectProof     Opcode = 0x03
	CMDRealmList              Opcode = 0x10
)

// Realm wire opcodes relevant to the components this module implements.
const (
	SMSGAuthChallenge     Opcode = 0x1EC
	CMSGAuthSession       Opcode = 0x1ED
	SMSGAuthResponse      Opcode = 0x1EE
	SMSGAddonInfo         Opcode = 0x2EF
	SMSGClientCacheVer    Opcode = 0x4AB
	SMSGTutorialFlags     Opcode = 0x0FC
	CMSGPing              Opcode = 0x1DC
	SMSGPong              Opcode = 0x1DD
	CMSGRealmSplit        Opcode = 0x38C
	SMSGRealmSplit        Opcode = 0x38B
	CMSGSetActiveMover    Opcode = 0x26A
	CMSGLogoutRequest     Opcode = 0x4AA
	SMSGLogoutResponse    Opcode = 0x04C
	CMSGLogoutCancel      Opcode = 0x04B
	SMSGLogoutCancelAck   Opcode = 0x04E
	SMSGLogoutComplete    Opcode = 0x04D
	MSGMoveTeleportAck    Opcode = 0x0C7
	SMSGTransferPending   Opcode = 0x2F6
	SMSGNewWorld          Opcode = 0x1F1
	MSGMoveWorldportAck   Opcode = 0x0C8
	SMSGUpdateObject      Opcode = 0x0A9
	MSGMove               Opcode = 0x0B5
	CMSGAreaTrigger       Opcode = 0x0CB
)

// Auth reply status codes, matching the wire values an AuthLogonChallenge /
// AuthLogonProof / AuthReconnectProof response carries in its status byte.
const (
	AuthSuccess             byte = 0x00
	AuthFailBanned           byte = 0x03
	AuthFailUnknownAccount   byte = 0x04
	AuthFailIncorrectPwd     byte = 0x05
	AuthFailUnknown0         byte = 0x09
	AuthReject               byte = 0x0D
)

// CRCSalt is the fixed 16-byte constant embedded in a successful
// LogonChallenge reply.
var CRCSalt = [16]byte{
	0xBA, 0xA3, 0x1E, 0x99, 0xA0, 0x0B, 0x21, 0x57,
	0xFC, 0x37, 0x3F, 0xB3, 0x69, 0xCD, 0xD2, 0xF1,
}

// ChecksumSalt is the fixed 16-byte constant returned in a successful
// ReconnectChallenge reply.
var ChecksumSalt = CRCSalt

// AddonExpectedCRC is the CRC value a well-formed Blizzard addon-info entry
// carries; any other value is flagged as "uses different public key".
const AddonExpectedCRC uint32 = 0x4C1C776D

// VisibilityRange is the XY-plane distance, in world units, within which two
// characters are mutually interested in each other's updates.
const VisibilityRange = 5000.0

// DesiredTimestep is the target duration of one world tick.
const DesiredTimestep = 100 * time.Millisecond

// TickWatchdog is how long a single world tick may run in debug builds
// before the watchdog panics to surface a deadlock.
const TickWatchdog = 10 * time.Second

// DefaultReconnectLifetime is used when AUTH_RECONNECT_LIFETIME is unset.
const DefaultReconnectLifetime = 500 * time.Second

// AuthSessionTickInterval is how often the auth session manager sweeps for
// expired sessions and authenticated-account entries.
const AuthSessionTickInterval = 60 * time.Second

// AuthRejectDisconnectDelay is how long the realm actor waits after sending
// SMSG_AUTH_RESPONSE{AuthReject} before closing the socket.
const AuthRejectDisconnectDelay = 2 * time.Second

// MailboxSize bounds a per-connection outbound mailbox. The design notes
// allow unbounded channels; this implementation bounds them as the
// production-hardening suggestion in spec.md §5 recommends.
const MailboxSize = 1024

// BlowfishBlockSize is the block size, in bytes, of the realm stream cipher.
const BlowfishBlockSize = 8

// LogoutGracePeriod is how long a pending logout request waits before it
// executes, matching the standard WoW logout timer.
const LogoutGracePeriod = 20 * time.Second
