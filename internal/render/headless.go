package render

import (
	"github.com/rs/zerolog/log"

	"github.com/openvtt/tabletop/internal/models"
)

// HeadlessEngine is an always-ready engine that draws nothing. It backs the
// client binary when no rendering process is attached, keeping the sync core
// fully operational.
type HeadlessEngine struct{}

// NewHeadless returns a no-op engine.
func NewHeadless() *HeadlessEngine { return &HeadlessEngine{} }

func (e *HeadlessEngine) IsReady() bool { return true }

func (e *HeadlessEngine) SyncTableData(table models.Table, sprites []models.Sprite) error {
	log.Debug().Str("table_id", table.ID).Int("sprites", len(sprites)).Msg("headless: table synced")
	return nil
}

func (e *HeadlessEngine) AddSprite(tableID string, sprite models.Sprite)    {}
func (e *HeadlessEngine) UpdateSprite(tableID string, sprite models.Sprite) {}
func (e *HeadlessEngine) RemoveSprite(tableID, spriteID string)             {}

func (e *HeadlessEngine) WorldToScreen(x, y float64) (float64, float64) { return x, y }
func (e *HeadlessEngine) ScreenToWorld(x, y float64) (float64, float64) { return x, y }

func (e *HeadlessEngine) BeginFogPreview(draftID string, mode models.FogMode, x, y float64) {}
func (e *HeadlessEngine) UpdateFogPreview(draftID string, x, y float64)                     {}
func (e *HeadlessEngine) IsFogRectValid(draftID string) bool                                { return true }
func (e *HeadlessEngine) CommitFogRect(draftID string)                                      {}
func (e *HeadlessEngine) CancelFogPreview(draftID string)                                   {}

func (e *HeadlessEngine) Render() {}
