// Package renderfakes provides a scripted render engine for tests.
package renderfakes

import (
	"math"
	"sync"

	"github.com/openvtt/tabletop/internal/models"
)

// fogDraft tracks the corners of a previewed draft rectangle.
type fogDraft struct {
	mode           models.FogMode
	startX, startY float64
	endX, endY     float64
}

// Engine records every call the core makes and lets tests script readiness
// and fog-rectangle validity. The zero value is not usable; use New.
type Engine struct {
	mu sync.Mutex

	ready      bool
	minFogSize float64

	SyncedTables   []string
	AddedSprites   []models.Sprite
	UpdatedSprites []models.Sprite
	RemovedSprites []string
	Committed      []string
	Cancelled      []string
	RenderCount    int

	drafts map[string]*fogDraft
}

// New returns a ready engine that considers fog rectangles smaller than one
// world unit degenerate.
func New() *Engine {
	return &Engine{
		ready:      true,
		minFogSize: 1.0,
		drafts:     make(map[string]*fogDraft),
	}
}

// SetReady scripts the engine's readiness.
func (e *Engine) SetReady(ready bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = ready
}

func (e *Engine) IsReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

func (e *Engine) SyncTableData(table models.Table, sprites []models.Sprite) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.SyncedTables = append(e.SyncedTables, table.ID)
	return nil
}

func (e *Engine) AddSprite(tableID string, sprite models.Sprite) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.AddedSprites = append(e.AddedSprites, sprite)
}

func (e *Engine) UpdateSprite(tableID string, sprite models.Sprite) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.UpdatedSprites = append(e.UpdatedSprites, sprite)
}

func (e *Engine) RemoveSprite(tableID, spriteID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.RemovedSprites = append(e.RemovedSprites, spriteID)
}

func (e *Engine) WorldToScreen(x, y float64) (float64, float64) { return x, y }
func (e *Engine) ScreenToWorld(x, y float64) (float64, float64) { return x, y }

func (e *Engine) BeginFogPreview(draftID string, mode models.FogMode, x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drafts[draftID] = &fogDraft{mode: mode, startX: x, startY: y, endX: x, endY: y}
}

func (e *Engine) UpdateFogPreview(draftID string, x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.drafts[draftID]; ok {
		d.endX, d.endY = x, y
	}
}

func (e *Engine) IsFogRectValid(draftID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.drafts[draftID]
	if !ok {
		return false
	}
	return math.Abs(d.endX-d.startX) >= e.minFogSize && math.Abs(d.endY-d.startY) >= e.minFogSize
}

func (e *Engine) CommitFogRect(draftID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Committed = append(e.Committed, draftID)
	delete(e.drafts, draftID)
}

func (e *Engine) CancelFogPreview(draftID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Cancelled = append(e.Cancelled, draftID)
	delete(e.drafts, draftID)
}

func (e *Engine) Render() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.RenderCount++
}
