// Package protocol defines the JSON wire messages exchanged with the
// authoritative server. Messages are a tagged union: a type discriminant
// plus a type-specific payload, with unknown types parsing to nothing so the
// client stays forward compatible.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/openvtt/tabletop/internal/models"
)

// Type identifies the payload variant carried by an envelope.
type Type string

const (
	TypeLoadTable    Type = "load_table"
	TypeTableData    Type = "table_data"
	TypeSpriteAdd    Type = "sprite_add"
	TypeSpriteUpdate Type = "sprite_update"
	TypeSpriteRemove Type = "sprite_remove"
	TypeSpriteReject Type = "sprite_reject"
)

// Envelope is the outer frame of every protocol message.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// LoadTablePayload asks the server for the full state of a table.
type LoadTablePayload struct {
	TableID string `json:"table_id"`
}

// TableDataPayload carries full authoritative table state. It replaces or
// initializes the local table wholesale.
type TableDataPayload struct {
	Table   models.Table    `json:"table"`
	Sprites []models.Sprite `json:"sprites"`
}

// SpriteAddPayload places a new sprite on a table.
type SpriteAddPayload struct {
	TableID string        `json:"table_id"`
	Sprite  models.Sprite `json:"sprite_data"`
}

// SpriteUpdatePayload carries a partial sprite update. Only the fields set
// in Data are applied; everything else on the sprite is preserved.
type SpriteUpdatePayload struct {
	SpriteID   string       `json:"sprite_id"`
	TableID    string       `json:"table_id"`
	UpdateType string       `json:"update_type"`
	Data       SpriteUpdate `json:"data"`
}

// SpriteRemovePayload deletes a sprite from a table.
type SpriteRemovePayload struct {
	SpriteID string `json:"sprite_id"`
	TableID  string `json:"table_id"`
}

// SpriteRejectPayload is the server's authoritative rejection of a local
// sprite change. It carries the server-side snapshot the client must revert
// to; this is the only message that undoes optimistic state.
type SpriteRejectPayload struct {
	SpriteID string        `json:"sprite_id"`
	TableID  string        `json:"table_id"`
	Reason   string        `json:"reason"`
	Sprite   models.Sprite `json:"sprite_data"`
}

// SpriteUpdate is a field-level partial update. Nil fields are untouched on
// merge, so a position-only update can never clear stats or the character
// link.
type SpriteUpdate struct {
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Scale       *float64 `json:"scale,omitempty"`
	Rotation    *float64 `json:"rotation,omitempty"`
	Layer       *string  `json:"layer,omitempty"`
	Texture     *string  `json:"texture,omitempty"`
	HP          *int     `json:"hp,omitempty"`
	MaxHP       *int     `json:"max_hp,omitempty"`
	TempHP      *int     `json:"temp_hp,omitempty"`
	AC          *int     `json:"ac,omitempty"`
	AuraRadius  *float64 `json:"aura_radius,omitempty"`
	CharacterID *string  `json:"character_id,omitempty"`
}

// PositionOnly reports whether the update touches nothing but x/y. Used to
// tag outbound messages with a position update_type so the server can apply
// cheaper handling.
func (u SpriteUpdate) PositionOnly() bool {
	return (u.X != nil || u.Y != nil) &&
		u.Scale == nil && u.Rotation == nil && u.Layer == nil && u.Texture == nil &&
		u.HP == nil && u.MaxHP == nil && u.TempHP == nil && u.AC == nil &&
		u.AuraRadius == nil && u.CharacterID == nil
}

// NewEnvelope wraps a payload in an envelope of the given type.
func NewEnvelope(t Type, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{Type: t, Data: data}, nil
}

// ParsePayload parses an envelope's data into the payload struct for its
// type. Unknown types return (nil, nil): they are ignored, not errors.
func ParsePayload(env Envelope) (any, error) {
	switch env.Type {
	case TypeLoadTable:
		var payload LoadTablePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeTableData:
		var payload TableDataPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeSpriteAdd:
		var payload SpriteAddPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeSpriteUpdate:
		var payload SpriteUpdatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeSpriteRemove:
		var payload SpriteRemovePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeSpriteReject:
		var payload SpriteRejectPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown message type
	}
}
