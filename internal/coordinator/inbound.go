package coordinator

import (
	"github.com/rs/zerolog/log"

	"github.com/openvtt/tabletop/internal/models"
	"github.com/openvtt/tabletop/internal/protocol"
)

// HandleMessage applies one inbound authoritative message to canonical
// state. Recognized sprite messages merge field by field and move the
// entity to synced; unknown message types are ignored without touching
// state or the error field. Arrival order on the single connection is
// assumed to reflect causal order, so merges are last-write-wins at the
// field level.
func (c *Coordinator) HandleMessage(env protocol.Envelope) {
	payload, err := protocol.ParsePayload(env)
	if err != nil {
		// Reported, never fatal: a malformed frame must not crash the
		// interaction loop or disturb canonical state.
		log.Warn().Err(err).Str("type", string(env.Type)).Msg("dropping malformed inbound message")
		return
	}
	if payload == nil {
		log.Debug().Str("type", string(env.Type)).Msg("ignoring unknown inbound message type")
		return
	}

	switch p := payload.(type) {
	case protocol.TableDataPayload:
		c.handleTableData(p)
	case protocol.SpriteAddPayload:
		c.handleSpriteAdd(p)
	case protocol.SpriteUpdatePayload:
		c.handleSpriteUpdate(p)
	case protocol.SpriteRemovePayload:
		c.handleSpriteRemove(p)
	case protocol.SpriteRejectPayload:
		c.handleSpriteReject(p)
	default:
		// Parsed but locally-originated types (load_table) have no
		// inbound meaning; skip them.
		log.Debug().Str("type", string(env.Type)).Msg("inbound message type has no client handler")
	}
}

// handleTableData replaces or initializes a table wholesale. table_data is
// the one full-state message in the protocol; per-field merge applies to
// the sprite messages that follow it.
func (c *Coordinator) handleTableData(p protocol.TableDataPayload) {
	now := c.clock.Now()
	tbl := p.Table
	tbl.SyncStatus = models.SyncSynced
	tbl.LastSyncTime = &now
	c.registry.Upsert(tbl)

	c.mu.Lock()
	tableSprites := make(map[string]*models.Sprite, len(p.Sprites))
	for i := range p.Sprites {
		s := p.Sprites[i]
		s.ClampHP()
		tableSprites[s.ID] = &s
		c.spriteStatus[s.ID] = models.SyncSynced
	}
	c.sprites[tbl.ID] = tableSprites
	c.mu.Unlock()

	log.Info().Str("table_id", tbl.ID).Int("sprites", len(p.Sprites)).Msg("table data received")

	if err := c.bridge.SyncTableData(tbl, p.Sprites); err != nil {
		c.setError(err)
	}
	c.notify(Event{Kind: EventTableData, TableID: tbl.ID})
}

func (c *Coordinator) handleSpriteAdd(p protocol.SpriteAddPayload) {
	sprite := p.Sprite
	sprite.ClampHP()

	c.mu.Lock()
	if c.sprites[p.TableID] == nil {
		c.sprites[p.TableID] = make(map[string]*models.Sprite)
	}
	if _, exists := c.sprites[p.TableID][sprite.ID]; !exists {
		s := sprite
		c.sprites[p.TableID][sprite.ID] = &s
	}
	c.markSynced(sprite.ID)
	c.mu.Unlock()

	c.bridge.AddSprite(p.TableID, sprite)
	c.notify(Event{Kind: EventSpriteAdded, TableID: p.TableID, SpriteID: sprite.ID})
}

func (c *Coordinator) handleSpriteUpdate(p protocol.SpriteUpdatePayload) {
	c.mu.Lock()
	s, ok := c.sprites[p.TableID][p.SpriteID]
	if !ok {
		c.mu.Unlock()
		// Update for a sprite this client never saw: a validation
		// condition, handled as a silent no-op.
		return
	}
	applySpriteUpdate(s, p.Data)
	merged := *s
	c.markSynced(p.SpriteID)
	c.mu.Unlock()

	c.bridge.UpdateSprite(p.TableID, merged)
	c.notify(Event{Kind: EventSpriteUpdated, TableID: p.TableID, SpriteID: p.SpriteID})
}

func (c *Coordinator) handleSpriteRemove(p protocol.SpriteRemovePayload) {
	c.mu.Lock()
	tableSprites, ok := c.sprites[p.TableID]
	if !ok {
		c.mu.Unlock()
		return
	}
	if _, ok := tableSprites[p.SpriteID]; !ok {
		c.mu.Unlock()
		return
	}
	delete(tableSprites, p.SpriteID)
	delete(c.spriteStatus, p.SpriteID)
	c.mu.Unlock()

	c.bridge.RemoveSprite(p.TableID, p.SpriteID)
	c.notify(Event{Kind: EventSpriteRemoved, TableID: p.TableID, SpriteID: p.SpriteID})
}

// handleSpriteReject is the one path that reverts optimistic state: the
// server explicitly rejected a local change and supplied its authoritative
// snapshot, so the local sprite is replaced wholesale and flagged error.
func (c *Coordinator) handleSpriteReject(p protocol.SpriteRejectPayload) {
	sprite := p.Sprite
	sprite.ClampHP()

	c.mu.Lock()
	if c.sprites[p.TableID] == nil {
		c.sprites[p.TableID] = make(map[string]*models.Sprite)
	}
	s := sprite
	c.sprites[p.TableID][sprite.ID] = &s
	// Authoritative override: force the error status even if the local
	// lattice position would not normally allow it.
	c.spriteStatus[sprite.ID] = models.SyncError
	c.mu.Unlock()

	log.Warn().
		Str("sprite_id", p.SpriteID).
		Str("table_id", p.TableID).
		Str("reason", p.Reason).
		Msg("server rejected sprite change, reverted to authoritative state")

	c.bridge.UpdateSprite(p.TableID, sprite)
	c.notify(Event{Kind: EventSpriteReject, TableID: p.TableID, SpriteID: p.SpriteID})
}

// markSynced records an authoritative acknowledgment. An ack always means
// the server holds the entity, so this bypasses the local lattice rather
// than dropping out-of-band acks. Caller holds c.mu.
func (c *Coordinator) markSynced(spriteID string) {
	c.spriteStatus[spriteID] = models.SyncSynced
}
