package auth

import (
	"encoding/binary"
	"fmt"

	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/protocol"
)

// decodeUsername reads a 1-byte length prefix followed by that many bytes
// of ASCII account name, the shape CMD_AUTH_LOGON_CHALLENGE and
// CMD_AUTH_RECONNECT_CHALLENGE share on the wire.
func decodeUsername(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", fmt.Errorf("auth: empty challenge payload")
	}
	n := int(payload[0])
	if len(payload) < 1+n {
		return "", fmt.Errorf("auth: truncated username field")
	}
	return string(payload[1 : 1+n]), nil
}

// decodeLogonProof reads CMD_AUTH_LOGON_PROOF's {client_public_key[32],
// client_proof[20]}.
func decodeLogonProof(payload []byte) (clientPublicKey [32]byte, clientProof [20]byte, err error) {
	if len(payload) < 52 {
		return clientPublicKey, clientProof, fmt.Errorf("auth: truncated logon proof")
	}
	copy(clientPublicKey[:], payload[:32])
	copy(clientProof[:], payload[32:52])
	return clientPublicKey, clientProof, nil
}

// decodeReconnectProof reads CMD_AUTH_RECONNECT_PROOF's {proof_data[16],
// client_proof[20]}.
func decodeReconnectProof(payload []byte) (data [16]byte, proof [20]byte, err error) {
	if len(payload) < 36 {
		return data, proof, fmt.Errorf("auth: truncated reconnect proof")
	}
	copy(data[:], payload[:16])
	copy(proof[:], payload[16:36])
	return data, proof, nil
}

func encodeString(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// encodeServerEvent renders ev as the protocol message the actor writes to
// the wire, or (false) if ev is a Disconnect instruction carrying no frame.
func encodeServerEvent(ev ServerEvent) (protocol.Message, bool) {
	switch ev.Kind {
	case EventLogonChallenge:
		r := ev.LogonChallenge
		payload := []byte{0, r.Result}
		if r.Result == constants.AuthSuccess {
			payload = append(payload, r.ServerPublicKey[:]...)
			payload = append(payload, r.Generator)
			payload = append(payload, r.LargeSafePrime[:]...)
			payload = append(payload, r.Salt[:]...)
			payload = append(payload, r.CRCSalt[:]...)
		}
		return protocol.Message{Opcode: constants.CMDAuthLogonChallenge, Payload: payload}, true

	case EventLogonProof:
		r := ev.LogonProof
		payload := []byte{r.Result}
		if r.Result == constants.AuthSuccess {
			payload = append(payload, r.ServerProof[:]...)
		}
		return protocol.Message{Opcode: constants.CMDAuthLogonProof, Payload: payload}, true

	case EventReconnectChallenge:
		r := ev.ReconnectChallenge
		payload := []byte{r.Result}
		if r.Result == constants.AuthSuccess {
			payload = append(payload, r.ChallengeData[:]...)
			payload = append(payload, r.ChecksumSalt[:]...)
		}
		return protocol.Message{Opcode: constants.CMDAuthReconnectChallenge, Payload: payload}, true

	case EventReconnectProof:
		r := ev.ReconnectProof
		return protocol.Message{Opcode: constants.CMDAuthReconnectProof, Payload: []byte{r.Result}}, true

	case EventRealmList:
		r := ev.RealmList
		payload := []byte{byte(len(r.Realms))}
		for _, e := range r.Realms {
			var idBuf [8]byte
			binary.LittleEndian.PutUint64(idBuf[:], uint64(e.ID))
			payload = append(payload, idBuf[:]...)
			payload = encodeString(payload, e.Name)
			payload = encodeString(payload, e.Address)
			var portBuf [2]byte
			binary.LittleEndian.PutUint16(portBuf[:], uint16(e.Port))
			payload = append(payload, portBuf[:]...)
		}
		return protocol.Message{Opcode: constants.CMDRealmList, Payload: payload}, true

	default: // EventDisconnect
		return protocol.Message{}, false
	}
}
