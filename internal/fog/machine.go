// Package fog converts pointer gestures into draft fog-of-war rectangles
// and, on completion, committed fog edits. One machine serves one
// interaction session: callers serialize pointer-down events (single active
// drag via pointer capture), so at most one draft is open at a time.
package fog

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openvtt/tabletop/internal/models"
	"github.com/openvtt/tabletop/internal/render"
)

// State is the machine's interaction state.
type State string

const (
	StateIdle      State = "idle"
	StateDrawing   State = "drawing"
	StateFinished  State = "finished"
	StateCancelled State = "cancelled"
)

// Machine is the draft-rectangle lifecycle state machine. It owns the draft
// exclusively; the render bridge only previews it.
type Machine struct {
	bridge *render.Bridge

	state   State
	draftID string
	mode    models.FogMode
	startX  float64
	startY  float64
	endX    float64
	endY    float64
}

// NewMachine creates an idle fog interaction machine.
func NewMachine(bridge *render.Bridge) *Machine {
	return &Machine{bridge: bridge, state: StateIdle}
}

// State returns the current interaction state. Finished and cancelled
// collapse back to idle on the next StartDraw.
func (m *Machine) State() State {
	return m.state
}

// StartDraw begins a draft rectangle at a world point and requests a live
// preview. It returns the allocated draft id; callers pass it to the
// follow-up calls of the same pointer stream.
func (m *Machine) StartDraw(x, y float64, mode models.FogMode) string {
	m.state = StateDrawing
	m.draftID = uuid.New().String()
	m.mode = mode
	m.startX, m.startY = x, y
	m.endX, m.endY = x, y

	m.bridge.BeginFogPreview(m.draftID, mode, x, y)

	log.Debug().Str("draft_id", m.draftID).Str("mode", string(mode)).Msg("fog draft started")
	return m.draftID
}

// UpdateDraw moves the live corner of the draft. Calls for any id other
// than the open draft, or outside the drawing state, are ignored silently:
// stale pointer-move events after a premature mouse-up must not resurrect a
// finished draft.
func (m *Machine) UpdateDraw(draftID string, x, y float64) {
	if m.state != StateDrawing || draftID != m.draftID {
		return
	}
	m.endX, m.endY = x, y
	m.bridge.UpdateFogPreview(draftID, x, y)
}

// FinishDraw completes the draft. A non-degenerate rectangle commits and is
// returned; a too-small one cancels and discards the draft — a normal
// outcome of a stray click, not an error.
func (m *Machine) FinishDraw(draftID string) (models.FogRectangle, bool) {
	if m.state != StateDrawing || draftID != m.draftID {
		return models.FogRectangle{}, false
	}

	if !m.bridge.IsFogRectValid(draftID) {
		m.state = StateCancelled
		m.bridge.CancelFogPreview(draftID)
		log.Debug().Str("draft_id", draftID).Msg("fog draft discarded, degenerate size")
		return models.FogRectangle{}, false
	}

	m.state = StateFinished
	m.bridge.CommitFogRect(draftID)

	rect := models.FogRectangle{
		ID:     draftID,
		Mode:   m.mode,
		StartX: m.startX,
		StartY: m.startY,
		EndX:   m.endX,
		EndY:   m.endY,
	}
	log.Info().Str("draft_id", draftID).Str("mode", string(m.mode)).Msg("fog rectangle committed")
	return rect, true
}

// CancelDraw abandons the open draft. Available at any point while drawing;
// calls for other ids are ignored.
func (m *Machine) CancelDraw(draftID string) {
	if m.state != StateDrawing || draftID != m.draftID {
		return
	}
	m.state = StateCancelled
	m.bridge.CancelFogPreview(draftID)
	log.Debug().Str("draft_id", draftID).Msg("fog draft cancelled")
}
