package models

// HitPoints holds a character's hit point pools.
type HitPoints struct {
	Current int `json:"current"`
	Max     int `json:"max"`
	Temp    int `json:"temp"`
}

// CharacterStats holds the stat block sprites snapshot at link time.
type CharacterStats struct {
	HP HitPoints `json:"hp"`
	AC int       `json:"ac"`
}

// Character is a named entity with persistent stats, owned independently of
// any sprite placement. Many sprites may link to one character.
type Character struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Stats CharacterStats `json:"stats"`
}
