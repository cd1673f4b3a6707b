package models

// FogMode selects whether a fog rectangle hides or reveals the area it covers.
type FogMode string

const (
	FogHide   FogMode = "hide"
	FogReveal FogMode = "reveal"
)

// FogRectangle is a committed fog-of-war edit in world coordinates. Drafts
// live inside the fog interaction machine and only become a FogRectangle once
// the drag finishes with a non-degenerate size.
type FogRectangle struct {
	ID     string  `json:"id"`
	Mode   FogMode `json:"mode"`
	StartX float64 `json:"start_x"`
	StartY float64 `json:"start_y"`
	EndX   float64 `json:"end_x"`
	EndY   float64 `json:"end_y"`
}
