// Package coordinator holds the canonical table and sprite state on the
// client. Local mutations apply optimistically, are pushed to the render
// bridge, and produce exactly one outbound protocol message each; inbound
// authoritative messages reconcile by field-level merge. The coordinator is
// the only writer of canonical state; everything else sees snapshots.
package coordinator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/openvtt/tabletop/internal/models"
	"github.com/openvtt/tabletop/internal/protocol"
	"github.com/openvtt/tabletop/internal/render"
	"github.com/openvtt/tabletop/internal/table"
)

// MessageSender delivers outbound protocol messages to the authoritative
// server. Implemented by the websocket transport.
type MessageSender interface {
	Send(env protocol.Envelope) error
}

// EventKind labels a canonical-state change for observers.
type EventKind string

const (
	EventTableData     EventKind = "table_data"
	EventTableSynced   EventKind = "table_synced"
	EventSpriteAdded   EventKind = "sprite_added"
	EventSpriteUpdated EventKind = "sprite_updated"
	EventSpriteRemoved EventKind = "sprite_removed"
	EventSpriteReject  EventKind = "sprite_rejected"
)

// Event is a read-only notification of a canonical-state change.
type Event struct {
	Kind     EventKind
	TableID  string
	SpriteID string
}

// Config holds coordinator tuning knobs.
type Config struct {
	// DebounceWindow is how long continuous position updates coalesce
	// before one message is sent per sprite.
	DebounceWindow time.Duration
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{DebounceWindow: 150 * time.Millisecond}
}

// Coordinator owns canonical sprite state and the per-entity sync lattice.
type Coordinator struct {
	registry *table.Registry
	bridge   *render.Bridge
	sender   MessageSender
	clock    clockwork.Clock
	debounce *Debouncer

	mu           sync.Mutex
	sprites      map[string]map[string]*models.Sprite // table id -> sprite id
	spriteStatus map[string]models.SyncStatus
	lastErr      error
	observers    []func(Event)
}

// New creates a coordinator. The sender may fail per message; failures are
// reported through LastError and never roll back optimistic state.
func New(registry *table.Registry, bridge *render.Bridge, sender MessageSender, clock clockwork.Clock, cfg Config) *Coordinator {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultConfig().DebounceWindow
	}
	return &Coordinator{
		registry:     registry,
		bridge:       bridge,
		sender:       sender,
		clock:        clock,
		debounce:     NewDebouncer(clock, cfg.DebounceWindow),
		sprites:      make(map[string]map[string]*models.Sprite),
		spriteStatus: make(map[string]models.SyncStatus),
	}
}

// Close cancels pending debounced sends. No timer callback fires after it
// returns.
func (c *Coordinator) Close() {
	c.debounce.Close()
}

// Subscribe registers an observer called after each canonical-state change.
// Observers receive events only; they read state through snapshots.
func (c *Coordinator) Subscribe(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Coordinator) notify(ev Event) {
	c.mu.Lock()
	listeners := make([]func(Event), len(c.observers))
	copy(listeners, c.observers)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// LastError returns the most recent component-level error, if any. Errors
// here are advisory: state is already applied and callers choose a retry
// policy.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ClearError resets the component error field.
func (c *Coordinator) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
}

func (c *Coordinator) setError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

// SyncTableData pushes full table state to the render bridge. It reports
// false and records a not-ready error when the engine is unavailable; the
// caller decides whether to retry.
func (c *Coordinator) SyncTableData(tableID string) bool {
	tbl, ok := c.registry.Get(tableID)
	if !ok {
		return false
	}
	sprites, _ := c.Snapshot(tableID)

	if err := c.bridge.SyncTableData(tbl, sprites); err != nil {
		c.setError(err)
		log.Warn().Err(err).Str("table_id", tableID).Msg("table sync to render engine failed")
		return false
	}
	c.notify(Event{Kind: EventTableSynced, TableID: tableID})
	return true
}

// LoadTable requests the full authoritative state of a table from the
// server.
func (c *Coordinator) LoadTable(tableID string) bool {
	env, err := protocol.NewEnvelope(protocol.TypeLoadTable, protocol.LoadTablePayload{TableID: tableID})
	if err != nil {
		c.setError(err)
		return false
	}
	now := c.clock.Now()
	c.registry.SetSyncStatus(tableID, models.SyncSyncing, now)
	if err := c.sender.Send(env); err != nil {
		c.setError(err)
		c.registry.SetSyncStatus(tableID, models.SyncError, now)
		return false
	}
	return true
}

// AddSprite optimistically places a sprite on a table and emits one
// sprite_add message. Sprites without an id get a generated one. A failed
// send leaves the sprite in place with an error status.
func (c *Coordinator) AddSprite(tableID string, sprite models.Sprite) bool {
	if _, ok := c.registry.Get(tableID); !ok {
		return false
	}
	if sprite.ID == "" {
		sprite.ID = uuid.New().String()
	}
	sprite.ClampHP()

	c.mu.Lock()
	if c.sprites[tableID] == nil {
		c.sprites[tableID] = make(map[string]*models.Sprite)
	}
	s := sprite
	c.sprites[tableID][sprite.ID] = &s
	c.spriteStatus[sprite.ID] = models.SyncLocal
	c.mu.Unlock()

	c.bridge.AddSprite(tableID, sprite)
	c.notify(Event{Kind: EventSpriteAdded, TableID: tableID, SpriteID: sprite.ID})

	env, err := protocol.NewEnvelope(protocol.TypeSpriteAdd, protocol.SpriteAddPayload{TableID: tableID, Sprite: sprite})
	if err != nil {
		c.setError(err)
		return true
	}
	c.emit(sprite.ID, env)
	return true
}

// UpdateSprite merges a partial update into a sprite and emits one
// sprite_update message. Unknown ids are a silent no-op.
func (c *Coordinator) UpdateSprite(tableID, spriteID string, update protocol.SpriteUpdate) bool {
	merged, ok := c.applyLocal(tableID, spriteID, update)
	if !ok {
		return false
	}

	c.bridge.UpdateSprite(tableID, merged)
	c.notify(Event{Kind: EventSpriteUpdated, TableID: tableID, SpriteID: spriteID})

	env, err := protocol.NewEnvelope(protocol.TypeSpriteUpdate, protocol.SpriteUpdatePayload{
		SpriteID:   spriteID,
		TableID:    tableID,
		UpdateType: updateTypeFor(update),
		Data:       update,
	})
	if err != nil {
		c.setError(err)
		return true
	}
	c.emit(spriteID, env)
	return true
}

// UpdateSpritePosition moves a sprite. Local state and the render bridge
// update immediately; the outbound message is debounced per sprite so a
// drag coalesces into one send carrying the final position.
func (c *Coordinator) UpdateSpritePosition(tableID, spriteID string, x, y float64) bool {
	update := protocol.SpriteUpdate{X: &x, Y: &y}
	merged, ok := c.applyLocal(tableID, spriteID, update)
	if !ok {
		return false
	}

	c.bridge.UpdateSprite(tableID, merged)
	c.notify(Event{Kind: EventSpriteUpdated, TableID: tableID, SpriteID: spriteID})

	c.debounce.Trigger("pos/"+tableID+"/"+spriteID, func() {
		sprite, ok := c.Sprite(tableID, spriteID)
		if !ok {
			return // removed while the debounce window was open
		}
		px, py := sprite.X, sprite.Y
		env, err := protocol.NewEnvelope(protocol.TypeSpriteUpdate, protocol.SpriteUpdatePayload{
			SpriteID:   spriteID,
			TableID:    tableID,
			UpdateType: "position",
			Data:       protocol.SpriteUpdate{X: &px, Y: &py},
		})
		if err != nil {
			c.setError(err)
			return
		}
		c.emit(spriteID, env)
	})
	return true
}

// RemoveSprite deletes a sprite and emits one sprite_remove message.
func (c *Coordinator) RemoveSprite(tableID, spriteID string) bool {
	c.mu.Lock()
	tableSprites, ok := c.sprites[tableID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	if _, ok := tableSprites[spriteID]; !ok {
		c.mu.Unlock()
		return false
	}
	delete(tableSprites, spriteID)
	delete(c.spriteStatus, spriteID)
	c.mu.Unlock()

	c.bridge.RemoveSprite(tableID, spriteID)
	c.notify(Event{Kind: EventSpriteRemoved, TableID: tableID, SpriteID: spriteID})

	env, err := protocol.NewEnvelope(protocol.TypeSpriteRemove, protocol.SpriteRemovePayload{SpriteID: spriteID, TableID: tableID})
	if err != nil {
		c.setError(err)
		return true
	}
	if err := c.sender.Send(env); err != nil {
		c.setError(err)
		log.Warn().Err(err).Str("sprite_id", spriteID).Msg("sprite remove send failed")
	}
	return true
}

// AdjustHP shifts a sprite's hit points by delta, clamped to
// [0, maxHp+tempHp].
func (c *Coordinator) AdjustHP(tableID, spriteID string, delta int) bool {
	sprite, ok := c.Sprite(tableID, spriteID)
	if !ok {
		return false
	}
	hp := sprite.HP + delta
	return c.UpdateSprite(tableID, spriteID, protocol.SpriteUpdate{HP: &hp})
}

// LinkCharacter links a character to a sprite, copying the character's
// current stat snapshot. The link is weak: later character edits do not
// propagate until SyncCharacterStats runs.
func (c *Coordinator) LinkCharacter(tableID, spriteID string, char models.Character) bool {
	hp := char.Stats.HP.Current
	maxHP := char.Stats.HP.Max
	tempHP := char.Stats.HP.Temp
	ac := char.Stats.AC
	return c.UpdateSprite(tableID, spriteID, protocol.SpriteUpdate{
		CharacterID: &char.ID,
		HP:          &hp,
		MaxHP:       &maxHP,
		TempHP:      &tempHP,
		AC:          &ac,
	})
}

// SyncCharacterStats re-copies a linked character's stats into the sprite.
// It refuses sprites linked to a different character.
func (c *Coordinator) SyncCharacterStats(tableID, spriteID string, char models.Character) bool {
	sprite, ok := c.Sprite(tableID, spriteID)
	if !ok || sprite.CharacterID != char.ID {
		return false
	}
	return c.LinkCharacter(tableID, spriteID, char)
}

// Sprite returns a copy of one sprite.
func (c *Coordinator) Sprite(tableID, spriteID string) (models.Sprite, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sprites[tableID][spriteID]
	if !ok {
		return models.Sprite{}, false
	}
	return *s, true
}

// Snapshot returns copies of every sprite on a table.
func (c *Coordinator) Snapshot(tableID string) ([]models.Sprite, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tableSprites, ok := c.sprites[tableID]
	if !ok {
		return nil, false
	}
	out := make([]models.Sprite, 0, len(tableSprites))
	for _, s := range tableSprites {
		out = append(out, *s)
	}
	return out, true
}

// SpriteStatus returns a sprite's position in the sync lattice.
func (c *Coordinator) SpriteStatus(spriteID string) (models.SyncStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.spriteStatus[spriteID]
	return st, ok
}

// applyLocal merges an update into canonical state and returns the merged
// sprite copy. Reports false for unknown table or sprite ids.
func (c *Coordinator) applyLocal(tableID, spriteID string, update protocol.SpriteUpdate) (models.Sprite, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sprites[tableID][spriteID]
	if !ok {
		return models.Sprite{}, false
	}
	applySpriteUpdate(s, update)
	return *s, true
}

// emit moves the sprite to syncing and sends one outbound message. A send
// failure records the error and marks the sprite error; the optimistic
// local state stays, because local state is the source of truth until an
// authoritative rejection arrives.
func (c *Coordinator) emit(spriteID string, env protocol.Envelope) {
	c.transitionSprite(spriteID, models.SyncSyncing)
	if err := c.sender.Send(env); err != nil {
		c.setError(err)
		c.transitionSprite(spriteID, models.SyncError)
		log.Warn().Err(err).Str("sprite_id", spriteID).Str("type", string(env.Type)).Msg("outbound send failed, keeping optimistic state")
	}
}

// transitionSprite advances a sprite through the sync lattice, ignoring
// illegal transitions.
func (c *Coordinator) transitionSprite(spriteID string, to models.SyncStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.spriteStatus[spriteID]
	if !ok {
		return
	}
	if !current.CanTransition(to) {
		log.Debug().
			Str("sprite_id", spriteID).
			Str("from", string(current)).
			Str("to", string(to)).
			Msg("illegal sprite sync transition ignored")
		return
	}
	c.spriteStatus[spriteID] = to
}
