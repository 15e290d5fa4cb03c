// Package srp6 implements the SRP6 collaborator spec.md assumes as external:
// a verifier built from a stored (v, s) pair, a prover that accepts the
// client's public key and proof and yields a session key and server proof,
// and a reconnect verifier over the session key. No such package exists
// anywhere in the retrieved reference pack, so this is built directly on the
// standard primitives SRP6 is defined over (see DESIGN.md).
package srp6

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Generator and LargeSafePrime are the fixed group parameters used by the
// WoW-style SRP6 handshake this protocol speaks.
var (
	Generator      = big.NewInt(7)
	LargeSafePrime = mustHex("894B645E89E1535BBDAD5B8B290650530801B18EBFBF5E8FAB3C82872A3E9BB7")
	k              = big.NewInt(3)
)

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("srp6: invalid constant")
	}
	return n
}

func sha1Sum(parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func bigFromSum(sum []byte) *big.Int {
	return new(big.Int).SetBytes(sum)
}

func padLeft(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

// GenerateVerifier derives (v, s) from a username and password, for account
// creation. s is a fresh random 32-byte salt; v = g^x mod N where x is the
// standard SRP6 private key derivative of (s, username, password).
func GenerateVerifier(username, password string) (v, s *big.Int, err error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("srp6: generating salt: %w", err)
	}
	s = new(big.Int).SetBytes(salt)
	x := calculateX(s, username, password)
	v = new(big.Int).Exp(Generator, x, LargeSafePrime)
	return v, s, nil
}

func calculateX(s *big.Int, username, password string) *big.Int {
	identityHash := sha1Sum([]byte(fmt.Sprintf("%s:%s", username, password)))
	xHash := sha1Sum(padLeft(s.Bytes(), 32), identityHash)
	return bigFromSum(xHash)
}

// Verifier is built from an account's stored (v, s); it produces the
// server-side challenge (b, B) and, given the client's proof, yields a
// Server holding the session key and server proof — or an error if the
// proof does not match.
type Verifier struct {
	v *big.Int
	s *big.Int

	b *big.Int
	B *big.Int
}

// NewVerifier constructs a Verifier from the stored (v, s) hex strings.
func NewVerifier(vHex, sHex string) (*Verifier, error) {
	v, ok := new(big.Int).SetString(vHex, 16)
	if !ok {
		return nil, fmt.Errorf("srp6: invalid verifier")
	}
	s, ok := new(big.Int).SetString(sHex, 16)
	if !ok {
		return nil, fmt.Errorf("srp6: invalid salt")
	}
	return &Verifier{v: v, s: s}, nil
}

// Challenge is the {B, salt} pair sent in a LogonChallenge success reply.
// B is the server's ephemeral public key.
type Challenge struct {
	ServerPublicKey [32]byte
	Salt            [32]byte
}

// IssueChallenge generates the server's ephemeral keypair (b, B) and returns
// the wire challenge. b = random 19-byte scalar; B = (k*v + g^b) mod N.
func (sv *Verifier) IssueChallenge() (Challenge, error) {
	bBytes := make([]byte, 19)
	if _, err := rand.Read(bBytes); err != nil {
		return Challenge{}, fmt.Errorf("srp6: generating server secret: %w", err)
	}
	sv.b = new(big.Int).SetBytes(bBytes)

	gb := new(big.Int).Exp(Generator, sv.b, LargeSafePrime)
	kv := new(big.Int).Mul(k, sv.v)
	sv.B = new(big.Int).Mod(new(big.Int).Add(kv, gb), LargeSafePrime)

	var ch Challenge
	copy(ch.ServerPublicKey[:], reverse(padLeft(sv.B.Bytes(), 32)))
	copy(ch.Salt[:], reverse(padLeft(sv.s.Bytes(), 32)))
	return ch, nil
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// Server is the result of a successful LogonProof verification: the derived
// session key and the server's proof M2.
type Server struct {
	SessionKey  [40]byte
	ServerProof [20]byte
}

// VerifyProof checks the client's public key A and proof M1, returning the
// derived Server on success. A is little-endian on the wire, as is M1.
func (sv *Verifier) VerifyProof(clientPublicKeyLE [32]byte, clientProofLE [20]byte) (*Server, error) {
	A := new(big.Int).SetBytes(reverse(clientPublicKeyLE[:]))
	if new(big.Int).Mod(A, LargeSafePrime).Sign() == 0 {
		return nil, fmt.Errorf("srp6: client public key is a multiple of N")
	}

	u := bigFromSum(sha1Sum(reverse(padLeft(A.Bytes(), 32)), reverse(padLeft(sv.B.Bytes(), 32))))

	// S = (A * v^u)^b mod N
	vu := new(big.Int).Exp(sv.v, u, LargeSafePrime)
	base := new(big.Int).Mod(new(big.Int).Mul(A, vu), LargeSafePrime)
	S := new(big.Int).Exp(base, sv.b, LargeSafePrime)

	sessionKey := interleavedHash(padLeft(S.Bytes(), 32))

	expectedM1 := clientProof(sv.s, A, sv.B, sessionKey)
	if !bytesEqual(expectedM1, reverse(clientProofLE[:])) {
		return nil, fmt.Errorf("srp6: client proof mismatch")
	}

	M2 := sha1Sum(reverse(padLeft(A.Bytes(), 32)), expectedM1, sessionKey)

	srv := &Server{}
	copy(srv.SessionKey[:], sessionKey)
	copy(srv.ServerProof[:], reverse(M2))
	return srv, nil
}

// ReconnectChallengeData is 16 random bytes generated once per authenticated
// session and replayed verbatim in a successful ReconnectChallenge reply;
// it is also the value the client's reconnect proof is computed over.
type ReconnectChallengeData [16]byte

// NewReconnectChallengeData generates fresh reconnect challenge data for a
// newly authenticated session.
func NewReconnectChallengeData() (ReconnectChallengeData, error) {
	var d ReconnectChallengeData
	if _, err := rand.Read(d[:]); err != nil {
		return d, fmt.Errorf("srp6: generating reconnect challenge data: %w", err)
	}
	return d, nil
}

// VerifyReconnectProof checks a client's reconnect proof against the
// session key and reconnect challenge data retained from the original
// logon.
func VerifyReconnectProof(sessionKey [40]byte, serverData ReconnectChallengeData, clientData [16]byte, clientProof [20]byte) bool {
	expected := sha1Sum(clientData[:], serverData[:], sessionKey[:])
	return bytesEqual(expected, reverse(clientProof[:]))
}

func clientProof(s, A, B *big.Int, sessionKey []byte) []byte {
	nHash := sha1Sum(reverse(padLeft(LargeSafePrime.Bytes(), 32)))
	gHash := sha1Sum(padLeft(Generator.Bytes(), 1))
	xor := make([]byte, 20)
	for i := range xor {
		xor[i] = nHash[i] ^ gHash[i]
	}
	return sha1Sum(xor, sha1Sum(nil), reverse(padLeft(s.Bytes(), 32)), reverse(padLeft(A.Bytes(), 32)), reverse(padLeft(B.Bytes(), 32)), sessionKey)
}

// interleavedHash is the SRP6 session-key derivation used by the WoW
// handshake: split S into even/odd bytes (after stripping leading zero
// bytes), SHA1 each half, then interleave the two 20-byte digests into a
// 40-byte session key.
func interleavedHash(s []byte) []byte {
	// strip leading zero bytes
	start := 0
	for start < len(s) && s[start] == 0 {
		start++
	}
	s = s[start:]

	var even, odd []byte
	for i, b := range s {
		if i%2 == 0 {
			even = append(even, b)
		} else {
			odd = append(odd, b)
		}
	}
	evenHash := sha1Sum(even)
	oddHash := sha1Sum(odd)

	out := make([]byte, 40)
	for i := 0; i < 20; i++ {
		out[2*i] = evenHash[i]
		out[2*i+1] = oddHash[i]
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SessionKeyHex renders a session key the way the persistence façade stores
// it on the account row.
func SessionKeyHex(k [40]byte) string {
	return hex.EncodeToString(k[:])
}

// ParseSessionKeyHex decodes the exactly-40-byte session key stored on an
// account row, as required by the realm handshake in spec.md §6.
func ParseSessionKeyHex(s string) ([40]byte, error) {
	var out [40]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("srp6: decoding session key: %w", err)
	}
	if len(b) != 40 {
		return out, fmt.Errorf("srp6: session key must decode to 40 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
