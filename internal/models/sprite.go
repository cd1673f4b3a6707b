package models

// Sprite represents a positioned, renderable token placed on a table.
// CharacterID is a weak reference: linking copies a stat snapshot at link
// time, it never creates a live binding to the character.
type Sprite struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Scale       float64 `json:"scale"`
	Rotation    float64 `json:"rotation"`
	Layer       string  `json:"layer"`
	Texture     string  `json:"texture"`
	HP          int     `json:"hp"`
	MaxHP       int     `json:"max_hp"`
	TempHP      int     `json:"temp_hp"`
	AC          int     `json:"ac"`
	AuraRadius  float64 `json:"aura_radius"`
	CharacterID string  `json:"character_id,omitempty"`
}

// ClampHP forces hp back into [0, maxHp+tempHp]. Out-of-range values are a
// validation condition handled by clamping, never an error.
func (s *Sprite) ClampHP() {
	ceiling := s.MaxHP + s.TempHP
	if s.HP > ceiling {
		s.HP = ceiling
	}
	if s.HP < 0 {
		s.HP = 0
	}
}

// ApplyCharacterSnapshot copies the character's current stats into the
// sprite. Used both at link time and on an explicit re-sync.
func (s *Sprite) ApplyCharacterSnapshot(c Character) {
	s.CharacterID = c.ID
	s.HP = c.Stats.HP.Current
	s.MaxHP = c.Stats.HP.Max
	s.TempHP = c.Stats.HP.Temp
	s.AC = c.Stats.AC
	s.ClampHP()
}
