package coordinator

import (
	"github.com/openvtt/tabletop/internal/models"
	"github.com/openvtt/tabletop/internal/protocol"
)

// applySpriteUpdate merges a partial update into a sprite field by field.
// Nil fields are left untouched, so a position-only update can never clear
// stats or the character link. HP is clamped after every merge. This is the
// single merge path for both local optimistic edits and inbound
// reconciliation.
func applySpriteUpdate(s *models.Sprite, u protocol.SpriteUpdate) {
	if u.X != nil {
		s.X = *u.X
	}
	if u.Y != nil {
		s.Y = *u.Y
	}
	if u.Scale != nil {
		s.Scale = *u.Scale
	}
	if u.Rotation != nil {
		s.Rotation = *u.Rotation
	}
	if u.Layer != nil {
		s.Layer = *u.Layer
	}
	if u.Texture != nil {
		s.Texture = *u.Texture
	}
	if u.HP != nil {
		s.HP = *u.HP
	}
	if u.MaxHP != nil {
		s.MaxHP = *u.MaxHP
	}
	if u.TempHP != nil {
		s.TempHP = *u.TempHP
	}
	if u.AC != nil {
		s.AC = *u.AC
	}
	if u.AuraRadius != nil {
		s.AuraRadius = *u.AuraRadius
	}
	if u.CharacterID != nil {
		s.CharacterID = *u.CharacterID
	}
	s.ClampHP()
}

// updateTypeFor tags outbound sprite updates so the server can route
// position traffic cheaply.
func updateTypeFor(u protocol.SpriteUpdate) string {
	if u.PositionOnly() {
		return "position"
	}
	return "attrs"
}
