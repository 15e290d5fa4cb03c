package realm

import (
	"fmt"
	"time"

	"github.com/udisondev/realmkeep/internal/constants"
	"github.com/udisondev/realmkeep/internal/db"
	"github.com/udisondev/realmkeep/internal/model"
	"github.com/udisondev/realmkeep/internal/srp6"
)

// handleAuthSession validates CMSG_AUTH_SESSION against the session key the
// auth service persisted on a successful logon (spec.md §4.4's handshake
// between the two services): a mismatched key is rejected with
// SMSG_AUTH_RESPONSE and a delayed disconnect rather than an immediate
// close, to give the client time to show the error.
func (m *Manager) handleAuthSession(s *Session, payload []byte) error {
	req, err := decodeAuthSession(payload)
	if err != nil {
		return err
	}

	acc, err := m.accounts.GetByUsername(m.ctx, req.Username)
	if err != nil {
		return fmt.Errorf("realm: looking up %q: %w", req.Username, err)
	}
	if acc == nil || acc.Banned || acc.SessionKey == "" || acc.SessionKey != req.SessionKeyHex {
		s.Mailbox <- ServerEvent{Kind: EventAuthResponse, AuthResponse: &AuthResponseReply{Success: false}}
		go func(mailbox chan ServerEvent) {
			time.Sleep(constants.AuthRejectDisconnectDelay)
			mailbox <- ServerEvent{Kind: EventDisconnect}
		}(s.Mailbox)
		return nil
	}

	for _, crc := range req.AddonCRCs {
		if crc != constants.AddonExpectedCRC {
			m.log.Warn("realm: addon reports unexpected crc", "remote", s.Addr, "crc", crc)
		}
	}

	// A second realm login for the same account displaces the first,
	// mirroring the auth service's duplicate-login handling.
	m.mu.Lock()
	for addr, other := range m.sessions {
		if addr != s.Addr && other.AccountID == acc.ID && other.State != StatePreLogin {
			other.Mailbox <- ServerEvent{Kind: EventDisconnect}
		}
	}
	m.mu.Unlock()

	sessionKey, err := srp6.ParseSessionKeyHex(acc.SessionKey)
	if err != nil {
		return fmt.Errorf("realm: parsing stored session key for %q: %w", req.Username, err)
	}

	s.AccountID = acc.ID
	s.Username = req.Username
	s.State = StateCharacterSelection
	s.Mailbox <- ServerEvent{Kind: EventAuthResponse, AuthResponse: &AuthResponseReply{Success: true, SessionKey: sessionKey}}
	s.Mailbox <- ServerEvent{Kind: EventAddonInfo}
	s.Mailbox <- ServerEvent{Kind: EventClientCacheVersion, ClientCacheVersion: &ClientCacheVersionReply{Version: 1}}
	s.Mailbox <- ServerEvent{Kind: EventTutorialFlags}
	return nil
}

func (m *Manager) handlePing(s *Session, payload []byte) error {
	sequence, err := decodePing(payload)
	if err != nil {
		return err
	}
	s.Mailbox <- ServerEvent{Kind: EventPong, Pong: &PongReply{Sequence: sequence}}
	return nil
}

func (m *Manager) handleRealmSplit(s *Session, payload []byte) error {
	realmID, err := decodeRealmSplit(payload)
	if err != nil {
		return err
	}
	// State 0 means "realm is not currently split", the steady-state reply.
	s.Mailbox <- ServerEvent{Kind: EventRealmSplit, RealmSplit: &RealmSplitReply{RealmID: realmID, State: 0}}
	return nil
}

// handleSetActiveMover doubles as the character-selection action the first
// time it arrives for a session (grounded on wrath-rs's
// handle_cmsg_set_active_mover): repeating it with the same guid is a
// no-op, and a mismatched guid is logged but never disconnects the client.
func (m *Manager) handleSetActiveMover(s *Session, payload []byte) error {
	if s.State != StateCharacterSelection {
		return fmt.Errorf("realm: set active mover from %s outside CharacterSelection (state=%d)", s.Addr, s.State)
	}
	guid, err := decodeGUID(payload)
	if err != nil {
		return err
	}

	if s.ActiveCharacter != nil {
		if *s.ActiveCharacter != guid {
			m.log.Warn("realm: set active mover guid mismatch", "remote", s.Addr, "have", *s.ActiveCharacter, "want", guid)
		}
		return nil
	}

	rows, err := m.characters.ListByAccount(m.ctx, s.AccountID)
	if err != nil {
		return fmt.Errorf("realm: listing characters for account %d: %w", s.AccountID, err)
	}
	var row *db.CharacterRow
	for i := range rows {
		if uint64(rows[i].ID) == guid {
			row = &rows[i]
			break
		}
	}
	if row == nil {
		m.log.Warn("realm: set active mover for unknown character", "remote", s.Addr, "guid", guid)
		return nil
	}

	c := model.NewCharacter(uint64(row.ID), row.AccountID, row.Name, row.MapID)
	c.Pos = row.Pos
	if err := m.loadInventory(c); err != nil {
		return fmt.Errorf("realm: loading inventory for character %d: %w", c.ID, err)
	}
	m.chars.Add(c)
	m.engine.Instances.GetOrCreateMap(c.MapID, c.InstanceID).Push(c.ID)

	active := c.ID
	s.ActiveCharacter = &active
	m.byChar[c.ID] = s
	return nil
}

func (m *Manager) handleLogoutRequest(s *Session) error {
	c, err := m.activeCharacter(s)
	if err != nil {
		return err
	}
	if c.Logout.State == model.LogoutNone {
		c.Logout.State = model.LogoutPending
		c.Logout.Deadline = timeNow().Add(constants.LogoutGracePeriod)
	}
	s.Mailbox <- ServerEvent{Kind: EventLogoutResponse, LogoutResponse: &LogoutResponseReply{Accepted: true}}
	return nil
}

func (m *Manager) handleLogoutCancel(s *Session) error {
	c, err := m.activeCharacter(s)
	if err != nil {
		return err
	}
	if c.Logout.State == model.LogoutPending {
		c.Logout.State = model.LogoutNone
		s.Mailbox <- ServerEvent{Kind: EventLogoutCancelAck}
	}
	return nil
}

// handleMoveTeleportAck completes a near teleport: the client has applied
// the position locally and is acking it, so the state machine returns to
// None (spec.md §4.8). An ack while not Executing-Near is stale and ignored.
func (m *Manager) handleMoveTeleportAck(s *Session) error {
	c, err := m.activeCharacter(s)
	if err != nil {
		return err
	}
	if c.Teleport.Phase != model.TeleportPhaseExecuting || c.Teleport.Dist.Kind != model.TeleportNear {
		return nil
	}
	c.Pos = c.Teleport.Dist.Pos
	c.Teleport = model.TeleportState{}
	return nil
}

// handleMoveWorldportAck completes a far teleport: remove the character
// from its old map, move it onto the destination map at the new position,
// and queue it to be added there on the next map tick.
func (m *Manager) handleMoveWorldportAck(s *Session) error {
	c, err := m.activeCharacter(s)
	if err != nil {
		return err
	}
	if c.Teleport.Phase != model.TeleportPhaseExecuting || c.Teleport.Dist.Kind != model.TeleportFar {
		return nil
	}

	dist := c.Teleport.Dist
	m.engine.Instances.GetOrCreateMap(c.MapID, c.InstanceID).Remove(c.ID)

	c.MapID = dist.Map
	c.InstanceID = 0
	c.Pos = dist.Pos
	c.OnPushedToMap = false
	c.Teleport = model.TeleportState{}

	m.engine.Instances.GetOrCreateMap(c.MapID, c.InstanceID).Push(c.ID)
	return nil
}

// handleMovement applies an accepted movement packet and rebroadcasts it
// verbatim to every observer in the character's interest set. Movement
// opcodes received while any teleport is pending or executing are dropped
// silently (spec.md §4.8).
func (m *Manager) handleMovement(s *Session, payload []byte) error {
	c, err := m.activeCharacter(s)
	if err != nil {
		return err
	}
	if c.Teleport.Phase != model.TeleportPhaseNone {
		return nil
	}

	mv, err := decodeMovement(payload)
	if err != nil {
		return err
	}
	c.Pos = mv.Pos

	for observer := range c.InterestSet {
		if os, ok := m.byChar[observer]; ok {
			os.Mailbox <- ServerEvent{Kind: EventMovement, Movement: &MovementRelay{GUID: c.ID, Payload: payload}}
		}
	}
	return nil
}

// handleAreaTrigger queues a teleport when the triggered volume names one,
// matching wrath-rs's handle_cmsg_areatrigger.
func (m *Manager) handleAreaTrigger(s *Session, payload []byte) error {
	c, err := m.activeCharacter(s)
	if err != nil {
		return err
	}
	triggerID, err := decodeAreaTrigger(payload)
	if err != nil {
		return err
	}

	for _, t := range m.areaTriggers {
		if t.ID == triggerID {
			m.requestTeleport(c, t.Target)
			return nil
		}
	}
	m.log.Warn("realm: unknown area trigger", "remote", s.Addr, "trigger_id", triggerID)
	return nil
}

// requestTeleport queues dist as c's next teleport, a no-op if one is
// already queued or executing.
func (m *Manager) requestTeleport(c *model.Character, dist model.TeleportDistance) {
	if c.Teleport.Phase != model.TeleportPhaseNone {
		return
	}
	c.Teleport = model.TeleportState{Phase: model.TeleportPhaseQueued, Dist: dist}
}

// tickCharacters promotes queued teleports to executing and completes any
// logout whose grace period has elapsed, for every character with an
// active session.
func (m *Manager) tickCharacters() {
	now := timeNow()
	for guid, s := range m.byChar {
		c, ok := m.chars.Find(guid)
		if !ok {
			continue
		}

		if c.Teleport.Phase == model.TeleportPhaseQueued {
			c.Teleport.Phase = model.TeleportPhaseExecuting
			if c.Teleport.Dist.Kind == model.TeleportNear {
				s.Mailbox <- ServerEvent{Kind: EventTeleportAck, TeleportAck: &TeleportAckReply{GUID: c.ID, Pos: c.Teleport.Dist.Pos}}
			} else {
				s.Mailbox <- ServerEvent{Kind: EventTransferPending, TransferMap: c.Teleport.Dist.Map}
				s.Mailbox <- ServerEvent{Kind: EventNewWorld, NewWorld: &NewWorldReply{Map: c.Teleport.Dist.Map, Pos: c.Teleport.Dist.Pos}}
			}
		}

		if c.Logout.State == model.LogoutPending && !now.Before(c.Logout.Deadline) {
			m.completeLogout(s, c)
		}
	}
}

// loadInventory populates c.Inventory from the item repository: rows with
// no container are worn/equipped, everything else sits in a bag
// (spec.md §6's item object-guid derivation never distinguishes the two,
// so this module does by container id alone).
func (m *Manager) loadInventory(c *model.Character) error {
	items, err := m.items.ListByOwner(m.ctx, int64(c.ID))
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.Container == 0 {
			c.Inventory.Equipped[it.Slot] = it
		} else {
			c.Inventory.Bag[it.Slot] = it
		}
	}
	return nil
}

// saveInventory persists every item currently held by c.
func (m *Manager) saveInventory(c *model.Character) {
	for _, it := range c.Inventory.Equipped {
		if err := m.items.Save(m.ctx, it); err != nil {
			m.log.Error("realm: saving equipped item", "guid", c.ID, "item", it.ObjectGUID(), "error", err)
		}
	}
	for _, it := range c.Inventory.Bag {
		if err := m.items.Save(m.ctx, it); err != nil {
			m.log.Error("realm: saving bag item", "guid", c.ID, "item", it.ObjectGUID(), "error", err)
		}
	}
}

// completeLogout persists the character and its inventory, removes it from
// the world and the character manager, and returns the session to the
// character-selection lobby.
func (m *Manager) completeLogout(s *Session, c *model.Character) {
	c.Logout.State = model.LogoutExecuting

	if err := m.characters.Save(m.ctx, db.CharacterRow{
		ID: int64(c.ID), AccountID: c.AccountID, Name: c.Name, MapID: c.MapID, Pos: c.Pos,
	}); err != nil {
		m.log.Error("realm: saving character on logout", "guid", c.ID, "error", err)
	}
	m.saveInventory(c)

	m.engine.Instances.GetOrCreateMap(c.MapID, c.InstanceID).Remove(c.ID)
	delete(m.byChar, c.ID)
	m.chars.Remove(c.ID)

	s.ActiveCharacter = nil
	s.State = StateCharacterSelection
	c.Logout.State = model.LogoutReturnToCharSelect
	s.Mailbox <- ServerEvent{Kind: EventLogoutComplete}
}

// cleanupDisconnected finalizes sessions that disconnected since the last
// tick: any still-active character is removed from the world and character
// manager before the session entry is forgotten entirely.
func (m *Manager) cleanupDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for addr, s := range m.sessions {
		if s.State != StateDisconnectPendingCleanup {
			continue
		}
		if s.ActiveCharacter != nil {
			if c, ok := m.chars.Find(*s.ActiveCharacter); ok {
				m.engine.Instances.GetOrCreateMap(c.MapID, c.InstanceID).Remove(c.ID)
				m.chars.Remove(c.ID)
			}
			delete(m.byChar, *s.ActiveCharacter)
		}
		s.State = StateDisconnected
		delete(m.sessions, addr)
	}
}

// flushUpdates drains each active character's PendingUpdates queue into a
// single SMSG_UPDATE_OBJECT on its owning session's mailbox, once per tick.
func (m *Manager) flushUpdates() {
	for guid, s := range m.byChar {
		c, ok := m.chars.Find(guid)
		if !ok || len(c.PendingUpdates) == 0 {
			continue
		}
		updates := c.PendingUpdates
		c.PendingUpdates = nil
		s.Mailbox <- ServerEvent{Kind: EventUpdateObject, Updates: updates}
	}
}
