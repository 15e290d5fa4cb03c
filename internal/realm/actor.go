package realm

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/crypto"
	"github.com/udisondev/realmkeep/internal/protocol"
)

// runConnection is the per-connection actor (C2) for the realm service: it
// owns the socket and the per-direction stream cipher, races reads from the
// peer against reads from its own mailbox, and pushes every decoded message
// onto the manager's buffered event channel rather than dispatching it
// itself (spec.md §4.4's "drain events on the tick" contract). The cipher
// starts nil — the handshake up to and including CMSG_AUTH_SESSION travels
// in the clear — and is installed once the manager reports a successful
// auth session.
func runConnection(ctx context.Context, conn net.Conn, mgr *Manager, log *slog.Logger) {
	addr := conn.RemoteAddr().String()
	mailbox := make(chan ServerEvent, constants.MailboxSize)
	mgr.HandleClientConnected(addr, mailbox)
	defer mgr.HandleClientDisconnected(addr)
	defer conn.Close()

	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		log.Error("realm generating auth challenge seed failed", "remote", addr, "error", err)
		return
	}
	if err := protocol.WriteMessage(conn, nil, protocol.Message{Opcode: constants.SMSGAuthChallenge, Payload: seed[:]}); err != nil {
		log.Debug("realm connection write failed", "remote", addr, "error", err)
		return
	}

	var cipher atomic.Pointer[crypto.StreamCipher]

	inbound := make(chan protocol.Message)
	readErrs := make(chan error, 1)
	go func() {
		for {
			msg, err := protocol.ReadMessage(conn, cipher.Load())
			if err != nil {
				readErrs <- err
				return
			}
			select {
			case inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-readErrs:
			if !errors.Is(err, io.EOF) {
				log.Debug("realm connection read failed", "remote", addr, "error", err)
			}
			return

		case msg := <-inbound:
			mgr.Enqueue(ClientEvent{Addr: addr, Opcode: msg.Opcode, Payload: msg.Payload})

		case out := <-mailbox:
			if out.Kind == EventAuthResponse && out.AuthResponse.Success {
				sc, err := crypto.NewStreamCipher(out.AuthResponse.SessionKey)
				if err != nil {
					log.Error("realm installing stream cipher failed", "remote", addr, "error", err)
					return
				}
				cipher.Store(sc)
			}

			frame, ok := encodeServerEvent(out)
			if !ok {
				// EventDisconnect: nothing to write, just close.
				return
			}
			if err := protocol.WriteMessage(conn, cipher.Load(), frame); err != nil {
				log.Debug("realm connection write failed", "remote", addr, "error", err)
				return
			}
		}
	}
}
