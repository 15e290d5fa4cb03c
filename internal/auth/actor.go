package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/protocol"
)

// runConnection is the per-connection actor (C2): it owns the socket and
// races reads from the peer against reads from its own mailbox, so the
// session state Manager hands it back is never touched by more than one
// goroutine (spec.md §4.2). The auth handshake runs unencrypted, so every
// ReadMessage/WriteMessage call below passes a nil cipher.
func runConnection(ctx context.Context, conn net.Conn, mgr *Manager, log *slog.Logger) {
	addr := conn.RemoteAddr().String()
	mailbox := make(chan ServerEvent, constants.MailboxSize)
	mgr.HandleClientConnected(addr, mailbox)
	defer mgr.HandleClientDisconnected(addr)
	defer conn.Close()

	inbound := make(chan protocol.Message)
	readErrs := make(chan error, 1)
	go func() {
		for {
			msg, err := protocol.ReadMessage(conn, nil)
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
				log.Debug("auth connection read failed", "remote", addr, "error", err)
			}
			return

		case msg := <-inbound:
			ev := ClientEvent{Addr: addr, Opcode: msg.Opcode, Payload: msg.Payload}
			if err := mgr.HandleEvent(ctx, ev); err != nil {
				log.Warn("auth event handling failed", "remote", addr, "opcode", fmt.Sprintf("%#x", msg.Opcode), "error", err)
			}

		case out := <-mailbox:
			frame, ok := encodeServerEvent(out)
			if !ok {
				// EventDisconnect: nothing to write, just close.
				return
			}
			if err := protocol.WriteMessage(conn, nil, frame); err != nil {
				log.Debug("auth connection write failed", "remote", addr, "error", err)
				return
			}
		}
	}
}
