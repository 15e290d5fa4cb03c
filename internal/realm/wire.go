package realm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/model"
	"github.com/udisondev/realmkeep/internal/protocol"
)

// authSessionPayload is the decoded CMSG_AUTH_SESSION body.
type authSessionPayload struct {
	Username      string
	SessionKeyHex string
	AddonCRCs     []uint32
}

func decodeAuthSession(payload []byte) (authSessionPayload, error) {
	var out authSessionPayload
	if len(payload) < 2 {
		return out, fmt.Errorf("realm: truncated auth session header")
	}
	nameLen := int(binary.LittleEndian.Uint16(payload[:2]))
	off := 2
	if len(payload) < off+nameLen+40+1 {
		return out, fmt.Errorf("realm: truncated auth session body")
	}
	out.Username = string(payload[off : off+nameLen])
	off += nameLen

	out.SessionKeyHex = fmt.Sprintf("%x", payload[off:off+40])
	off += 40

	if len(payload) < off+4 {
		return out, fmt.Errorf("realm: truncated addon count")
	}
	addonCount := int(binary.LittleEndian.Uint32(payload[off:]))
	off += 4
	for i := 0; i < addonCount; i++ {
		nameEnd := off
		for {
			if nameEnd >= len(payload) {
				return out, fmt.Errorf("realm: truncated addon name")
			}
			if payload[nameEnd] == 0 {
				break
			}
			nameEnd++
		}
		off = nameEnd + 1 // skip the zero terminator, name itself unused

		if len(payload) < off+1+4+4 {
			return out, fmt.Errorf("realm: truncated addon entry body")
		}
		off++ // has_signature, unused
		crc := binary.LittleEndian.Uint32(payload[off:])
		off += 4
		off += 4 // extra_crc, unused
		out.AddonCRCs = append(out.AddonCRCs, crc)
	}
	return out, nil
}

func decodePing(payload []byte) (sequence uint32, err error) {
	if len(payload) < 8 {
		return 0, fmt.Errorf("realm: truncated ping")
	}
	return binary.LittleEndian.Uint32(payload[4:8]), nil
}

func decodeRealmSplit(payload []byte) (realmID uint32, err error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("realm: truncated realm split")
	}
	return binary.LittleEndian.Uint32(payload), nil
}

func decodeGUID(payload []byte) (uint64, error) {
	if len(payload) < 8 {
		return 0, fmt.Errorf("realm: truncated guid")
	}
	return binary.LittleEndian.Uint64(payload), nil
}

type movementPayload struct {
	GUID uint64
	Pos  model.Position
}

func decodeMovement(payload []byte) (movementPayload, error) {
	var out movementPayload
	if len(payload) < 24 {
		return out, fmt.Errorf("realm: truncated movement packet")
	}
	out.GUID = binary.LittleEndian.Uint64(payload[0:8])
	out.Pos.X = math.Float32frombits(binary.LittleEndian.Uint32(payload[8:12]))
	out.Pos.Y = math.Float32frombits(binary.LittleEndian.Uint32(payload[12:16]))
	out.Pos.Z = math.Float32frombits(binary.LittleEndian.Uint32(payload[16:20]))
	out.Pos.Orientation = math.Float32frombits(binary.LittleEndian.Uint32(payload[20:24]))
	return out, nil
}

func decodeAreaTrigger(payload []byte) (int64, error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("realm: truncated area trigger")
	}
	return int64(binary.LittleEndian.Uint32(payload)), nil
}

func encodePosition(pos model.Position) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(pos.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(pos.Y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(pos.Z))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(pos.Orientation))
	return buf
}

// encodeServerEvent renders ev as the protocol message the actor writes to
// the wire, or (false) if ev is a Disconnect instruction carrying no frame.
func encodeServerEvent(ev ServerEvent) (protocol.Message, bool) {
	switch ev.Kind {
	case EventAuthResponse:
		result := byte(0)
		if !ev.AuthResponse.Success {
			result = constants.AuthReject
		}
		return protocol.Message{Opcode: constants.SMSGAuthResponse, Payload: []byte{result}}, true

	case EventAddonInfo:
		// No per-addon update is needed since this module doesn't track
		// addon banner state; a single zero byte means "nothing follows".
		return protocol.Message{Opcode: constants.SMSGAddonInfo, Payload: []byte{0}}, true

	case EventClientCacheVersion:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], ev.ClientCacheVersion.Version)
		return protocol.Message{Opcode: constants.SMSGClientCacheVer, Payload: buf[:]}, true

	case EventTutorialFlags:
		return protocol.Message{Opcode: constants.SMSGTutorialFlags, Payload: make([]byte, 32)}, true

	case EventPong:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], ev.Pong.Sequence)
		return protocol.Message{Opcode: constants.SMSGPong, Payload: buf[:]}, true

	case EventRealmSplit:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint32(buf[0:4], ev.RealmSplit.RealmID)
		binary.LittleEndian.PutUint32(buf[4:8], ev.RealmSplit.State)
		return protocol.Message{Opcode: constants.SMSGRealmSplit, Payload: buf}, true

	case EventLogoutResponse:
		accepted := byte(0)
		if ev.LogoutResponse.Accepted {
			accepted = 1
		}
		return protocol.Message{Opcode: constants.SMSGLogoutResponse, Payload: []byte{accepted}}, true

	case EventLogoutCancelAck:
		return protocol.Message{Opcode: constants.SMSGLogoutCancelAck, Payload: nil}, true

	case EventLogoutComplete:
		return protocol.Message{Opcode: constants.SMSGLogoutComplete, Payload: nil}, true

	case EventTeleportAck:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, ev.TeleportAck.GUID)
		buf = append(buf, encodePosition(ev.TeleportAck.Pos)...)
		return protocol.Message{Opcode: constants.MSGMoveTeleportAck, Payload: buf}, true

	case EventTransferPending:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], ev.TransferMap)
		return protocol.Message{Opcode: constants.SMSGTransferPending, Payload: buf[:]}, true

	case EventNewWorld:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, ev.NewWorld.Map)
		buf = append(buf, encodePosition(ev.NewWorld.Pos)...)
		return protocol.Message{Opcode: constants.SMSGNewWorld, Payload: buf}, true

	case EventUpdateObject:
		return protocol.Message{Opcode: constants.SMSGUpdateObject, Payload: encodeUpdateBlocks(ev.Updates)}, true

	case EventMovement:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, ev.Movement.GUID)
		buf = append(buf, ev.Movement.Payload...)
		return protocol.Message{Opcode: constants.MSGMove, Payload: buf}, true

	default: // EventDisconnect
		return protocol.Message{}, false
	}
}

// encodeUpdateBlocks renders a batch of composed update blocks (spec.md
// §4.6's create/values/destroy contract) as a single SMSG_UPDATE_OBJECT
// payload: a count, then per block a kind tag, guid, and kind-specific body.
func encodeUpdateBlocks(blocks []model.UpdateBlock) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(blocks)))

	for _, b := range blocks {
		buf = append(buf, byte(b.Kind))
		var guidBuf [8]byte
		binary.LittleEndian.PutUint64(guidBuf[:], b.GUID)
		buf = append(buf, guidBuf[:]...)

		switch b.Kind {
		case model.UpdateBlockCreate:
			buf = appendUint32Slice(buf, b.Fields)
		case model.UpdateBlockValues:
			buf = appendUint32Slice(buf, b.Mask)
			buf = appendUint32Slice(buf, b.Values)
		case model.UpdateBlockDestroy:
			died := byte(0)
			if b.TargetDied {
				died = 1
			}
			buf = append(buf, died)
		}
	}
	return buf
}

func appendUint32Slice(buf []byte, vals []uint32) []byte {
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(vals)))
	buf = append(buf, countBuf[:]...)
	for _, v := range vals {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}
	return buf
}
