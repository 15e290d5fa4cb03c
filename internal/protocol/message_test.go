package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/crypto"
)

func TestMessageRoundTripPlain(t *testing.T) {
	var buf bytes.Buffer
	msg := Message{Opcode: constants.CMSGPing, Payload: []byte("hello")}

	require.NoError(t, WriteMessage(&buf, nil, msg))

	got, err := ReadMessage(&buf, nil)
	require.NoError(t, err)
	require.Equal(t, msg.Opcode, got.Opcode)
	require.Equal(t, msg.Payload, got.Payload)
}

// swapHalves mirrors a session key the way a peer on the other end of a
// connection would construct its own cipher: its decrypt half must match
// this side's encrypt half (and vice versa) for the header crypt to
// invert across the two independent StreamCipher instances.
func swapHalves(key [40]byte) [40]byte {
	var swapped [40]byte
	copy(swapped[:20], key[20:])
	copy(swapped[20:], key[:20])
	return swapped
}

func TestMessageRoundTripEncrypted(t *testing.T) {
	var key [40]byte
	for i := range key {
		key[i] = byte(i)
	}
	writerCipher, err := crypto.NewStreamCipher(key)
	require.NoError(t, err)
	readerCipher, err := crypto.NewStreamCipher(swapHalves(key))
	require.NoError(t, err)

	var buf bytes.Buffer
	msg := Message{Opcode: constants.SMSGPong, Payload: []byte{1, 2, 3, 4}}

	require.NoError(t, WriteMessage(&buf, writerCipher, msg))

	got, err := ReadMessage(&buf, readerCipher)
	require.NoError(t, err)
	require.Equal(t, msg.Opcode, got.Opcode)
	require.Equal(t, msg.Payload, got.Payload)
}

// TestMessageRoundTripEncryptedShortFrame covers the smallest real frame
// this protocol sends encrypted: a 1-byte payload, such as
// SMSG_AUTH_RESPONSE's failure code, in a 5-byte total frame well under
// the Blowfish block size.
func TestMessageRoundTripEncryptedShortFrame(t *testing.T) {
	var key [40]byte
	for i := range key {
		key[i] = byte(i)
	}
	writerCipher, err := crypto.NewStreamCipher(key)
	require.NoError(t, err)
	readerCipher, err := crypto.NewStreamCipher(swapHalves(key))
	require.NoError(t, err)

	var buf bytes.Buffer
	msg := Message{Opcode: constants.SMSGAuthResponse, Payload: []byte{0x0D}}

	require.NoError(t, WriteMessage(&buf, writerCipher, msg))

	got, err := ReadMessage(&buf, readerCipher)
	require.NoError(t, err)
	require.Equal(t, msg.Opcode, got.Opcode)
	require.Equal(t, msg.Payload, got.Payload)
}

func TestReadMessageRejectsBadLength(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader([]byte{0x01, 0x00}), nil)
	require.Error(t, err)
}
