// Package render is the boundary to the sandboxed rendering engine. The core
// never draws; it pushes state deltas through the Bridge and receives the
// engine's interaction events back through registered callbacks.
package render

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/openvtt/tabletop/internal/models"
)

// ErrNotReady is reported when the engine has not finished initializing.
// Always recoverable; callers decide whether and when to retry.
var ErrNotReady = errors.New("render engine not ready")

// Engine is the surface the core consumes from the rendering engine. The
// engine owns pixel-level drawing, hit-testing and (when configured) the
// camera; the core owns what state exists.
type Engine interface {
	IsReady() bool

	SyncTableData(table models.Table, sprites []models.Sprite) error
	AddSprite(tableID string, sprite models.Sprite)
	UpdateSprite(tableID string, sprite models.Sprite)
	RemoveSprite(tableID, spriteID string)

	// Coordinate helpers executed in the engine's own space, for layouts
	// where the engine rather than the core owns the camera.
	WorldToScreen(x, y float64) (float64, float64)
	ScreenToWorld(x, y float64) (float64, float64)

	BeginFogPreview(draftID string, mode models.FogMode, x, y float64)
	UpdateFogPreview(draftID string, x, y float64)
	IsFogRectValid(draftID string) bool
	CommitFogRect(draftID string)
	CancelFogPreview(draftID string)

	Render()
}

// Measurement is a completed distance measurement reported by the engine.
// Consumed read-only by the core.
type Measurement struct {
	StartX, StartY float64
	EndX, EndY     float64
	Distance       float64
	GridCells      float64
}

// Bridge adapts coordinator state into engine calls and fans engine events
// out to registered listeners. It is safe to call when the engine is not
// ready: state pushes report ErrNotReady instead of panicking.
type Bridge struct {
	engine Engine

	mu            sync.RWMutex
	onDoubleClick []func(spriteID string)
	onMeasurement []func(Measurement)
}

// NewBridge wraps an engine.
func NewBridge(engine Engine) *Bridge {
	return &Bridge{engine: engine}
}

// Ready reports whether the underlying engine accepts state pushes.
func (b *Bridge) Ready() bool {
	return b.engine != nil && b.engine.IsReady()
}

// SyncTableData pushes full table state to the engine.
func (b *Bridge) SyncTableData(table models.Table, sprites []models.Sprite) error {
	if !b.Ready() {
		return ErrNotReady
	}
	return b.engine.SyncTableData(table, sprites)
}

// AddSprite pushes a new sprite to the engine. A not-ready engine is logged
// and skipped; the canonical state already holds the sprite and the next
// full sync delivers it.
func (b *Bridge) AddSprite(tableID string, sprite models.Sprite) {
	if !b.Ready() {
		log.Debug().Str("sprite_id", sprite.ID).Msg("engine not ready, sprite add deferred to next full sync")
		return
	}
	b.engine.AddSprite(tableID, sprite)
}

// UpdateSprite pushes updated sprite state to the engine.
func (b *Bridge) UpdateSprite(tableID string, sprite models.Sprite) {
	if !b.Ready() {
		return
	}
	b.engine.UpdateSprite(tableID, sprite)
}

// RemoveSprite removes a sprite from the engine.
func (b *Bridge) RemoveSprite(tableID, spriteID string) {
	if !b.Ready() {
		return
	}
	b.engine.RemoveSprite(tableID, spriteID)
}

// BeginFogPreview starts a live draft-rectangle preview.
func (b *Bridge) BeginFogPreview(draftID string, mode models.FogMode, x, y float64) {
	if !b.Ready() {
		return
	}
	b.engine.BeginFogPreview(draftID, mode, x, y)
}

// UpdateFogPreview moves the live corner of a draft rectangle.
func (b *Bridge) UpdateFogPreview(draftID string, x, y float64) {
	if !b.Ready() {
		return
	}
	b.engine.UpdateFogPreview(draftID, x, y)
}

// IsFogRectValid asks the engine whether the draft has a usable size. A
// not-ready engine reports invalid, which finishes the draft as cancelled.
func (b *Bridge) IsFogRectValid(draftID string) bool {
	if !b.Ready() {
		return false
	}
	return b.engine.IsFogRectValid(draftID)
}

// CommitFogRect commits the draft inside the engine.
func (b *Bridge) CommitFogRect(draftID string) {
	if !b.Ready() {
		return
	}
	b.engine.CommitFogRect(draftID)
}

// CancelFogPreview discards the draft preview.
func (b *Bridge) CancelFogPreview(draftID string) {
	if !b.Ready() {
		return
	}
	b.engine.CancelFogPreview(draftID)
}

// Render triggers a redraw.
func (b *Bridge) Render() {
	if !b.Ready() {
		return
	}
	b.engine.Render()
}

// OnSpriteDoubleClick registers a listener for token double-clicks. The
// carried sprite id is a hand-off for stat-editing UI.
func (b *Bridge) OnSpriteDoubleClick(fn func(spriteID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDoubleClick = append(b.onDoubleClick, fn)
}

// OnMeasurement registers a listener for completed measurements.
func (b *Bridge) OnMeasurement(fn func(Measurement)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onMeasurement = append(b.onMeasurement, fn)
}

// EmitSpriteDoubleClick delivers an engine double-click event to listeners.
// Called by the engine glue, never by the core.
func (b *Bridge) EmitSpriteDoubleClick(spriteID string) {
	b.mu.RLock()
	listeners := make([]func(string), len(b.onDoubleClick))
	copy(listeners, b.onDoubleClick)
	b.mu.RUnlock()

	for _, fn := range listeners {
		fn(spriteID)
	}
}

// EmitMeasurement delivers a measurement-complete event to listeners.
func (b *Bridge) EmitMeasurement(m Measurement) {
	b.mu.RLock()
	listeners := make([]func(Measurement), len(b.onMeasurement))
	copy(listeners, b.onMeasurement)
	b.mu.RUnlock()

	for _, fn := range listeners {
		fn(m)
	}
}
