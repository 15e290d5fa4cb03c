// Package crypto implements the per-direction stream cipher installed on a
// realm connection once CMSG_AUTH_SESSION succeeds, per spec.md §4.1.
package crypto

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/blowfish"
)

// StreamCipher holds two independently-keyed Blowfish-backed OFB
// keystreams, one per direction, the way the teacher's GameCrypt runs a
// rolling XOR keystream over an arbitrary-length buffer instead of a
// fixed-size block — XORKeyStream has no block-size restriction, so a
// 2-byte length header or a 1-byte payload works the same as any other
// length. A peer that holds the same 40-byte session key and keys its own
// decrypt half from the bytes this side used for encrypt (and vice versa)
// reconstructs an identical keystream byte-for-byte, which is what lets
// one side's EncryptHeader invert under the other's DecryptHeader.
type StreamCipher struct {
	enc cipher.Stream
	dec cipher.Stream
}

// NewStreamCipher derives a StreamCipher from the 40-byte SRP6 session key.
// The first 20 bytes key the encrypt half, the last 20 key the decrypt
// half.
func NewStreamCipher(sessionKey [40]byte) (*StreamCipher, error) {
	encBlock, err := blowfish.NewCipher(sessionKey[:20])
	if err != nil {
		return nil, fmt.Errorf("crypto: building encrypt cipher: %w", err)
	}
	decBlock, err := blowfish.NewCipher(sessionKey[20:])
	if err != nil {
		return nil, fmt.Errorf("crypto: building decrypt cipher: %w", err)
	}
	var iv [blowfish.BlockSize]byte
	return &StreamCipher{
		enc: cipher.NewOFB(encBlock, iv[:]),
		dec: cipher.NewOFB(decBlock, iv[:]),
	}, nil
}

// EncryptHeader XORs an outbound header against the next bytes of the
// encrypt keystream, in place; the rest of the payload travels in the
// clear, matching the "encrypts headers in place" contract of spec.md §4.1.
// Unlike a raw block cipher, this accepts any length, including the
// sub-block headers most frames carry.
func (c *StreamCipher) EncryptHeader(header []byte) {
	c.enc.XORKeyStream(header, header)
}

// DecryptHeader XORs an inbound header against the next bytes of the
// decrypt keystream, in place.
func (c *StreamCipher) DecryptHeader(header []byte) {
	c.dec.XORKeyStream(header, header)
}
