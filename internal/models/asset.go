package models

// Asset describes a texture or image resource referenced by sprites and
// tables. The client caches these by id with a recency stamp so frequently
// used art survives across sessions.
type Asset struct {
	ID     string  `json:"asset_id"`
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}
