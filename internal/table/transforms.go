package table

import "github.com/openvtt/tabletop/internal/geom"

// TableToScreen converts a world point on the given table to screen
// coordinates. It reports false when the table id is unknown.
func (r *Registry) TableToScreen(id string, x, y float64) (float64, float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tables[id]
	if !exists {
		return 0, 0, false
	}
	sx, sy := t.Transform.Apply(x, y)
	return sx, sy, true
}

// ScreenToTable converts a screen point to world coordinates on the given
// table. It reports false when the table id is unknown or the transform is
// degenerate.
func (r *Registry) ScreenToTable(id string, sx, sy float64) (float64, float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tables[id]
	if !exists {
		return 0, 0, false
	}
	return t.Transform.Invert(sx, sy)
}

// PanViewport translates the table's viewport offset by (dx, dy) screen
// pixels.
func (r *Registry) PanViewport(id string, dx, dy float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tables[id]
	if !exists {
		return false
	}
	t.Transform = t.Transform.Translated(dx, dy)
	return true
}

// ZoomTable scales the table's viewport around the screen pivot (cx, cy).
// The resulting scale is clamped to the geom package's zoom range.
func (r *Registry) ZoomTable(id string, factor, cx, cy float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tables[id]
	if !exists {
		return false
	}
	t.Transform = t.Transform.ZoomedAround(factor, cx, cy)
	return true
}

// SnapToGrid rounds a world point to the table's grid. The snapped value is
// computed even when the grid overlay is hidden; callers decide whether to
// apply it.
func (r *Registry) SnapToGrid(id string, x, y float64) (float64, float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tables[id]
	if !exists {
		return 0, 0, false
	}
	gx, gy := geom.SnapToGrid(x, y, t.Grid.CellSide)
	return gx, gy, true
}

// VisibleBounds derives the world-space rectangle currently inside the
// table's screen area. Tables without an assigned screen area fall back to
// their full logical size as the area.
func (r *Registry) VisibleBounds(id string) (geom.Bounds, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tables[id]
	if !exists {
		return geom.Bounds{}, false
	}
	area, ok := r.areas[id]
	if !ok {
		area = geom.Rect{W: t.Width, H: t.Height}
	}
	return t.Transform.VisibleBounds(area)
}
