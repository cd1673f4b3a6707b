// Package geom provides the pure screen/world coordinate math used by the
// table registry. Transforms are plain values: every operation returns a new
// Transform, so repeated calls against a fixed table state are idempotent.
package geom

import "math"

// Zoom clamp bounds. Scales outside this range produce degenerate viewports
// (invisible or unbounded), so zoom operations clamp rather than fail.
const (
	MinScale = 0.1
	MaxScale = 10.0
)

const degenerateScale = 1e-10

// Transform maps world (table) coordinates to screen coordinates:
//
//	sx = x*ScaleX + OffsetX
//	sy = y*ScaleY + OffsetY
type Transform struct {
	ScaleX  float64 `json:"scale_x"`
	ScaleY  float64 `json:"scale_y"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// Apply converts world coordinates to screen coordinates.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return x*t.ScaleX + t.OffsetX, y*t.ScaleY + t.OffsetY
}

// Invert converts screen coordinates back to world coordinates. It reports
// false when either scale is too close to zero to invert.
func (t Transform) Invert(sx, sy float64) (float64, float64, bool) {
	if math.Abs(t.ScaleX) < degenerateScale || math.Abs(t.ScaleY) < degenerateScale {
		return 0, 0, false
	}
	return (sx - t.OffsetX) / t.ScaleX, (sy - t.OffsetY) / t.ScaleY, true
}

// Translated returns the transform panned by (dx, dy) screen pixels.
func (t Transform) Translated(dx, dy float64) Transform {
	t.OffsetX += dx
	t.OffsetY += dy
	return t
}

// ZoomedAround scales the transform by factor while keeping the world point
// under the screen pivot (cx, cy) fixed. The resulting scales are clamped to
// [MinScale, MaxScale] per axis.
func (t Transform) ZoomedAround(factor, cx, cy float64) Transform {
	wx, wy, ok := t.Invert(cx, cy)
	if !ok {
		return t
	}
	t.ScaleX = clampScale(t.ScaleX * factor)
	t.ScaleY = clampScale(t.ScaleY * factor)
	t.OffsetX = cx - wx*t.ScaleX
	t.OffsetY = cy - wy*t.ScaleY
	return t
}

func clampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

// SnapToGrid rounds a world point to the nearest multiple of the cell side.
// A non-positive cell side leaves the point unchanged.
func SnapToGrid(x, y, cellSide float64) (float64, float64) {
	if cellSide <= 0 {
		return x, y
	}
	return math.Round(x/cellSide) * cellSide, math.Round(y/cellSide) * cellSide
}

// Rect is an axis-aligned screen rectangle (an on-screen render area).
type Rect struct {
	X, Y, W, H float64
}

// Bounds is an axis-aligned world-space rectangle.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// VisibleBounds derives the world-space rectangle currently visible inside
// the given screen area under this transform. It reports false when the
// transform is not invertible.
func (t Transform) VisibleBounds(area Rect) (Bounds, bool) {
	x0, y0, ok := t.Invert(area.X, area.Y)
	if !ok {
		return Bounds{}, false
	}
	x1, y1, _ := t.Invert(area.X+area.W, area.Y+area.H)
	return Bounds{
		MinX: math.Min(x0, x1),
		MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1),
		MaxY: math.Max(y0, y1),
	}, true
}
