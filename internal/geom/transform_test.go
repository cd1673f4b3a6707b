package geom

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func TestApplyInvertRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		x, y float64
	}{
		{"identity origin", Identity(), 0, 0},
		{"identity point", Identity(), 100, 200},
		{"scaled", Transform{ScaleX: 2, ScaleY: 2}, 33.5, -17.25},
		{"scaled offset", Transform{ScaleX: 1.5, ScaleY: 0.75, OffsetX: 40, OffsetY: -120}, 512, 384},
		{"non-uniform", Transform{ScaleX: 0.3, ScaleY: 3.7, OffsetX: -5, OffsetY: 9}, 1e4, -1e4},
		{"negative point", Transform{ScaleX: 4, ScaleY: 4, OffsetX: 12, OffsetY: 12}, -250.5, -0.001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sx, sy := tt.tr.Apply(tt.x, tt.y)
			x, y, ok := tt.tr.Invert(sx, sy)
			if !ok {
				t.Fatalf("Invert(%v, %v) not ok", sx, sy)
			}
			if math.Abs(x-tt.x) > epsilon || math.Abs(y-tt.y) > epsilon {
				t.Errorf("round trip = (%v, %v), want (%v, %v)", x, y, tt.x, tt.y)
			}
		})
	}
}

func TestInvertDegenerateScale(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
	}{
		{"zero x scale", Transform{ScaleX: 0, ScaleY: 1}},
		{"zero y scale", Transform{ScaleX: 1, ScaleY: 0}},
		{"near-zero", Transform{ScaleX: 1e-12, ScaleY: 1e-12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, ok := tt.tr.Invert(10, 10); ok {
				t.Errorf("Invert ok for degenerate transform %+v", tt.tr)
			}
		})
	}
}

func TestZoomedAroundKeepsPivotFixed(t *testing.T) {
	tr := Transform{ScaleX: 1, ScaleY: 1, OffsetX: 100, OffsetY: 50}
	const cx, cy = 400.0, 300.0

	wx, wy, _ := tr.Invert(cx, cy)
	zoomed := tr.ZoomedAround(2, cx, cy)
	sx, sy := zoomed.Apply(wx, wy)

	if math.Abs(sx-cx) > epsilon || math.Abs(sy-cy) > epsilon {
		t.Errorf("pivot moved to (%v, %v), want (%v, %v)", sx, sy, cx, cy)
	}
	if zoomed.ScaleX != 2 || zoomed.ScaleY != 2 {
		t.Errorf("scale = (%v, %v), want (2, 2)", zoomed.ScaleX, zoomed.ScaleY)
	}
}

func TestZoomedAroundClamps(t *testing.T) {
	tests := []struct {
		name   string
		start  float64
		factor float64
		want   float64
	}{
		{"clamp high", 5, 100, MaxScale},
		{"clamp low", 0.5, 0.001, MinScale},
		{"within range", 1, 2, 2},
		{"already at max", MaxScale, 2, MaxScale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Transform{ScaleX: tt.start, ScaleY: tt.start}
			got := tr.ZoomedAround(tt.factor, 0, 0)
			if got.ScaleX != tt.want || got.ScaleY != tt.want {
				t.Errorf("scale = (%v, %v), want %v", got.ScaleX, got.ScaleY, tt.want)
			}
		})
	}
}

func TestZoomRepeatedIdempotentState(t *testing.T) {
	// Zooming is a pure function of the input transform: applying the same
	// operation to the same value twice must give the same result.
	tr := Transform{ScaleX: 1.5, ScaleY: 1.5, OffsetX: -30, OffsetY: 70}
	a := tr.ZoomedAround(1.25, 200, 150)
	b := tr.ZoomedAround(1.25, 200, 150)
	if a != b {
		t.Errorf("ZoomedAround not deterministic: %+v vs %+v", a, b)
	}
}

func TestSnapToGrid(t *testing.T) {
	tests := []struct {
		name         string
		x, y, cell   float64
		wantX, wantY float64
	}{
		{"on grid", 100, 150, 50, 100, 150},
		{"round down", 110, 160, 50, 100, 150},
		{"round up", 140, 180, 50, 150, 200},
		{"midpoint rounds away", 125, 175, 50, 150, 200},
		{"negative coords", -60, -40, 50, -50, -50},
		{"zero cell unchanged", 123, 456, 0, 123, 456},
		{"negative cell unchanged", 123, 456, -5, 123, 456},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gx, gy := SnapToGrid(tt.x, tt.y, tt.cell)
			if gx != tt.wantX || gy != tt.wantY {
				t.Errorf("SnapToGrid(%v, %v, %v) = (%v, %v), want (%v, %v)",
					tt.x, tt.y, tt.cell, gx, gy, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestVisibleBounds(t *testing.T) {
	tr := Transform{ScaleX: 2, ScaleY: 2, OffsetX: 100, OffsetY: 100}
	area := Rect{X: 0, Y: 0, W: 800, H: 600}

	got, ok := tr.VisibleBounds(area)
	if !ok {
		t.Fatal("VisibleBounds not ok")
	}
	want := Bounds{MinX: -50, MinY: -50, MaxX: 350, MaxY: 250}
	if got != want {
		t.Errorf("VisibleBounds = %+v, want %+v", got, want)
	}
}

func TestVisibleBoundsNegativeScale(t *testing.T) {
	// A mirrored viewport still yields min <= max.
	tr := Transform{ScaleX: -1, ScaleY: 1}
	got, ok := tr.VisibleBounds(Rect{X: 0, Y: 0, W: 100, H: 100})
	if !ok {
		t.Fatal("VisibleBounds not ok")
	}
	if got.MinX > got.MaxX || got.MinY > got.MaxY {
		t.Errorf("bounds not normalized: %+v", got)
	}
}

func TestVisibleBoundsDegenerate(t *testing.T) {
	tr := Transform{}
	if _, ok := tr.VisibleBounds(Rect{W: 100, H: 100}); ok {
		t.Error("VisibleBounds ok for zero-scale transform")
	}
}
