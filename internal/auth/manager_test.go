package auth

import (
	"context"
	"crypto/sha1"
	"fmt"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/db"
	"github.com/udisondev/realmkeep/internal/model"
	"github.com/udisondev/realmkeep/internal/srp6"
)

// fakeAccounts is a minimal in-memory db.AccountRepository for exercising
// the manager without a database.
type fakeAccounts struct {
	byUsername map[string]*model.AccountRecord
	lastServer map[int64]int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byUsername: make(map[string]*model.AccountRecord), lastServer: make(map[int64]int)}
}

func (f *fakeAccounts) add(id int64, username, password string, banned bool) {
	v, s, err := srp6.GenerateVerifier(username, password)
	if err != nil {
		panic(err)
	}
	f.byUsername[username] = &model.AccountRecord{
		ID:       id,
		Username: username,
		V:        fmt.Sprintf("%X", v),
		S:        fmt.Sprintf("%X", s),
		Banned:   banned,
	}
}

func (f *fakeAccounts) GetByUsername(ctx context.Context, username string) (*model.AccountRecord, error) {
	acc, ok := f.byUsername[username]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

func (f *fakeAccounts) SetSessionKey(ctx context.Context, username, sessionKeyHex string) error {
	acc, ok := f.byUsername[username]
	if !ok {
		return fmt.Errorf("no such account %q", username)
	}
	acc.SessionKey = sessionKeyHex
	return nil
}

func (f *fakeAccounts) GetLastServer(ctx context.Context, accountID int64) (int, bool, error) {
	v, ok := f.lastServer[accountID]
	return v, ok, nil
}

func (f *fakeAccounts) SetLastServer(ctx context.Context, accountID int64, realmID int) error {
	f.lastServer[accountID] = realmID
	return nil
}

var _ db.AccountRepository = (*fakeAccounts)(nil)

// fakeRealms is a minimal in-memory db.RealmRepository.
type fakeRealms struct {
	realms []db.RealmEntry
}

func (f *fakeRealms) ListRealms(ctx context.Context) ([]db.RealmEntry, error) {
	return f.realms, nil
}

func (f *fakeRealms) GetRealm(ctx context.Context, id int64) (*db.RealmEntry, error) {
	for _, r := range f.realms {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("no such realm %d", id)
}

var _ db.RealmRepository = (*fakeRealms)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func sha1Sum(parts ...[]byte) []byte {
	h := sha1.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func padLeft(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// simulateClient independently replays the WoW SRP6 client math against a
// server challenge, so these tests exercise the manager end to end without
// reaching into srp6's unexported helpers.
func simulateClient(username, password string, s, B *big.Int) (A *big.Int, sessionKey, m1 []byte) {
	identityHash := sha1Sum([]byte(fmt.Sprintf("%s:%s", username, password)))
	x := new(big.Int).SetBytes(sha1Sum(padLeft(s.Bytes(), 32), identityHash))
	v := new(big.Int).Exp(srp6.Generator, x, srp6.LargeSafePrime)
	k := big.NewInt(3)

	a := big.NewInt(998877665544)
	A = new(big.Int).Exp(srp6.Generator, a, srp6.LargeSafePrime)

	u := new(big.Int).SetBytes(sha1Sum(reverseBytes(padLeft(A.Bytes(), 32)), reverseBytes(padLeft(B.Bytes(), 32))))

	kv := new(big.Int).Mul(k, v)
	base := new(big.Int).Mod(new(big.Int).Sub(B, kv), srp6.LargeSafePrime)
	exp := new(big.Int).Add(a, new(big.Int).Mul(u, x))
	S := new(big.Int).Exp(base, exp, srp6.LargeSafePrime)

	sessionKey = interleavedHashForTest(padLeft(S.Bytes(), 32))

	nHash := sha1Sum(reverseBytes(padLeft(srp6.LargeSafePrime.Bytes(), 32)))
	gHash := sha1Sum(padLeft(srp6.Generator.Bytes(), 1))
	xor := make([]byte, 20)
	for i := range xor {
		xor[i] = nHash[i] ^ gHash[i]
	}
	m1 = sha1Sum(xor, sha1Sum(nil), reverseBytes(padLeft(s.Bytes(), 32)), reverseBytes(padLeft(A.Bytes(), 32)), reverseBytes(padLeft(B.Bytes(), 32)), sessionKey)
	return A, sessionKey, m1
}

func interleavedHashForTest(s []byte) []byte {
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

func drain(t *testing.T, mailbox chan ServerEvent) ServerEvent {
	t.Helper()
	select {
	case ev := <-mailbox:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for mailbox event")
		return ServerEvent{}
	}
}

func newTestManager(accounts *fakeAccounts, realms *fakeRealms) *Manager {
	return NewManager(accounts, realms, constants.DefaultReconnectLifetime, testLogger())
}

func connectAndLogin(t *testing.T, mgr *Manager, addr, username, password string) (*Session, chan ServerEvent, [40]byte) {
	t.Helper()
	mailbox := make(chan ServerEvent, 8)
	mgr.HandleClientConnected(addr, mailbox)
	ctx := context.Background()

	challengePayload := append([]byte{byte(len(username))}, username...)
	require.NoError(t, mgr.HandleEvent(ctx, ClientEvent{Addr: addr, Opcode: constants.CMDAuthLogonChallenge, Payload: challengePayload}))

	challengeEv := drain(t, mailbox)
	require.Equal(t, EventLogonChallenge, challengeEv.Kind)
	require.Equal(t, constants.AuthSuccess, challengeEv.LogonChallenge.Result)

	B := new(big.Int).SetBytes(reverseBytes(challengeEv.LogonChallenge.ServerPublicKey[:]))
	s := new(big.Int).SetBytes(reverseBytes(challengeEv.LogonChallenge.Salt[:]))

	A, sessionKey, m1 := simulateClient(username, password, s, B)

	proofPayload := make([]byte, 0, 52)
	proofPayload = append(proofPayload, reverseBytes(padLeft(A.Bytes(), 32))...)
	proofPayload = append(proofPayload, reverseBytes(m1)...)
	require.NoError(t, mgr.HandleEvent(ctx, ClientEvent{Addr: addr, Opcode: constants.CMDAuthLogonProof, Payload: proofPayload}))

	proofEv := drain(t, mailbox)
	require.Equal(t, EventLogonProof, proofEv.Kind)
	require.Equal(t, constants.AuthSuccess, proofEv.LogonProof.Result)

	mgr.mu.Lock()
	session := mgr.sessions[addr]
	mgr.mu.Unlock()

	var key [40]byte
	copy(key[:], sessionKey)
	return session, mailbox, key
}

func TestHappyPathLoginAndRealmList(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(1, "alice", "hunter2", false)
	realms := &fakeRealms{realms: []db.RealmEntry{{ID: 1, Name: "Testopia", Address: "127.0.0.1", Port: 8085}}}
	mgr := newTestManager(accounts, realms)

	session, mailbox, _ := connectAndLogin(t, mgr, "client-a:1", "alice", "hunter2")
	require.Equal(t, StateAuthenticated, session.State)

	require.NoError(t, mgr.HandleEvent(context.Background(), ClientEvent{Addr: "client-a:1", Opcode: constants.CMDRealmList}))
	ev := drain(t, mailbox)
	require.Equal(t, EventRealmList, ev.Kind)
	require.Len(t, ev.RealmList.Realms, 1)
	require.Equal(t, "Testopia", ev.RealmList.Realms[0].Name)
}

func TestFastReconnect(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(1, "alice", "hunter2", false)
	realms := &fakeRealms{}
	mgr := newTestManager(accounts, realms)

	_, _, sessionKey := connectAndLogin(t, mgr, "client-a:1", "alice", "hunter2")

	mailbox := make(chan ServerEvent, 8)
	mgr.HandleClientConnected("client-a:2", mailbox)
	ctx := context.Background()

	payload := append([]byte{byte(len("alice"))}, "alice"...)
	require.NoError(t, mgr.HandleEvent(ctx, ClientEvent{Addr: "client-a:2", Opcode: constants.CMDAuthReconnectChallenge, Payload: payload}))

	ev := drain(t, mailbox)
	require.Equal(t, EventReconnectChallenge, ev.Kind)
	require.Equal(t, constants.AuthSuccess, ev.ReconnectChallenge.Result)

	var clientData [16]byte
	for i := range clientData {
		clientData[i] = byte(i + 7)
	}
	expected := sha1Sum(clientData[:], ev.ReconnectChallenge.ChallengeData[:], sessionKey[:])
	var proof [20]byte
	copy(proof[:], reverseBytes(expected))

	proofPayload := append(append([]byte{}, clientData[:]...), proof[:]...)
	require.NoError(t, mgr.HandleEvent(ctx, ClientEvent{Addr: "client-a:2", Opcode: constants.CMDAuthReconnectProof, Payload: proofPayload}))

	rEv := drain(t, mailbox)
	require.Equal(t, EventReconnectProof, rEv.Kind)
	require.Equal(t, constants.AuthSuccess, rEv.ReconnectProof.Result)
}

func TestUnknownAccountReconnectChallengeDoesNotPanic(t *testing.T) {
	accounts := newFakeAccounts()
	realms := &fakeRealms{}
	mgr := newTestManager(accounts, realms)

	mailbox := make(chan ServerEvent, 8)
	mgr.HandleClientConnected("ghost:1", mailbox)

	payload := append([]byte{byte(len("nobody"))}, "nobody"...)
	require.NoError(t, mgr.HandleEvent(context.Background(), ClientEvent{Addr: "ghost:1", Opcode: constants.CMDAuthReconnectChallenge, Payload: payload}))

	ev := drain(t, mailbox)
	require.Equal(t, EventReconnectChallenge, ev.Kind)
	require.Equal(t, constants.AuthFailUnknownAccount, ev.ReconnectChallenge.Result)
}

func TestDuplicateLoginDisplacesFirstSession(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(1, "alice", "hunter2", false)
	realms := &fakeRealms{}
	mgr := newTestManager(accounts, realms)

	_, firstMailbox, _ := connectAndLogin(t, mgr, "client-a:1", "alice", "hunter2")
	_, _, _ = connectAndLogin(t, mgr, "client-a:2", "alice", "hunter2")

	ev := drain(t, firstMailbox)
	require.Equal(t, EventDisconnect, ev.Kind)
}

func TestBannedAccountRejected(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(1, "bob", "secret", true)
	realms := &fakeRealms{}
	mgr := newTestManager(accounts, realms)

	mailbox := make(chan ServerEvent, 8)
	mgr.HandleClientConnected("client-b:1", mailbox)

	payload := append([]byte{byte(len("bob"))}, "bob"...)
	require.NoError(t, mgr.HandleEvent(context.Background(), ClientEvent{Addr: "client-b:1", Opcode: constants.CMDAuthLogonChallenge, Payload: payload}))

	ev := drain(t, mailbox)
	require.Equal(t, EventLogonChallenge, ev.Kind)
	require.Equal(t, constants.AuthFailBanned, ev.LogonChallenge.Result)
}

func TestRealmListRejectedOutsideAuthenticated(t *testing.T) {
	accounts := newFakeAccounts()
	realms := &fakeRealms{}
	mgr := newTestManager(accounts, realms)

	mailbox := make(chan ServerEvent, 8)
	mgr.HandleClientConnected("client-c:1", mailbox)

	err := mgr.HandleEvent(context.Background(), ClientEvent{Addr: "client-c:1", Opcode: constants.CMDRealmList})
	require.Error(t, err)
}

func TestTickEvictsExpiredAuthentication(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.add(1, "alice", "hunter2", false)
	realms := &fakeRealms{}
	mgr := NewManager(accounts, realms, time.Nanosecond, testLogger())

	connectAndLogin(t, mgr, "client-a:1", "alice", "hunter2")
	time.Sleep(time.Millisecond)
	mgr.Tick()

	mgr.mu.Lock()
	_, stillAuthenticated := mgr.authenticated["alice"]
	_, stillConnected := mgr.sessions["client-a:1"]
	mgr.mu.Unlock()
	require.False(t, stillAuthenticated)
	require.False(t, stillConnected)
}
