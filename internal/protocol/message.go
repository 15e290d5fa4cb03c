// Package protocol implements the framed transport (C1): length-prefixed,
// opcode-tagged messages, with an optional per-direction stream cipher
// applied to the header once installed.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/crypto"
)

// Message is a decoded opcode-tagged payload.
type Message struct {
	Opcode  constants.Opcode
	Payload []byte
}

// maxPayload bounds a single message to guard against a malformed or
// malicious length prefix requesting an unreasonable allocation.
const maxPayload = 1 << 16

// ReadMessage reads one length-framed message from r. If cipher is
// non-nil, the length header and the opcode are each decrypted in place
// against the next bytes of cipher's keystream before being interpreted,
// matching the "decrypts headers in place" contract of spec.md §4.1. The
// keystream has no block-size restriction, so this works regardless of how
// short the frame is.
func ReadMessage(r io.Reader, cipher *crypto.StreamCipher) (Message, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, fmt.Errorf("protocol: reading length header: %w", err)
	}

	if cipher != nil {
		cipher.DecryptHeader(header[:])
	}

	totalLen := int(binary.LittleEndian.Uint16(header[:]))
	if totalLen < 2 {
		return Message{}, fmt.Errorf("protocol: invalid frame length %d", totalLen)
	}
	bodyLen := totalLen - 2
	if bodyLen < 2 || bodyLen > maxPayload {
		return Message{}, fmt.Errorf("protocol: invalid body length %d", bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("protocol: reading body: %w", err)
	}

	if cipher != nil {
		cipher.DecryptHeader(body[:2])
	}

	opcode := constants.Opcode(binary.LittleEndian.Uint16(body[:2]))
	return Message{Opcode: opcode, Payload: body[2:]}, nil
}

// WriteMessage frames and writes msg to w. If cipher is non-nil, the
// length header and the opcode are each encrypted in place against the
// next bytes of cipher's keystream before the write; the payload always
// travels in the clear.
func WriteMessage(w io.Writer, cipher *crypto.StreamCipher, msg Message) error {
	totalLen := 2 + 2 + len(msg.Payload)
	buf := make([]byte, totalLen)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(totalLen))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(msg.Opcode))
	copy(buf[4:], msg.Payload)

	if cipher != nil {
		cipher.EncryptHeader(buf[0:2])
		cipher.EncryptHeader(buf[2:4])
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("protocol: writing frame: %w", err)
	}
	return nil
}
