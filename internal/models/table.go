package models

import (
	"time"

	"github.com/openvtt/tabletop/internal/geom"
)

// GridSettings holds the grid overlay configuration for a table.
type GridSettings struct {
	ShowGrid bool    `json:"show_grid"`
	CellSide float64 `json:"cell_side"`
}

// Table represents one game map with its own coordinate space, viewport
// transform and grid. The table registry owns the set of tables and the
// single-active-table invariant.
type Table struct {
	ID           string         `json:"table_id"`
	Name         string         `json:"table_name"`
	Width        float64        `json:"width"`
	Height       float64        `json:"height"`
	Transform    geom.Transform `json:"transform"`
	Grid         GridSettings   `json:"grid"`
	SyncStatus   SyncStatus     `json:"sync_status"`
	LastSyncTime *time.Time     `json:"last_sync_time,omitempty"`
}

// NewTable returns a table with an identity viewport transform and the
// optimistic local sync status.
func NewTable(id, name string, width, height float64) Table {
	return Table{
		ID:         id,
		Name:       name,
		Width:      width,
		Height:     height,
		Transform:  geom.Identity(),
		Grid:       GridSettings{ShowGrid: true, CellSide: 50},
		SyncStatus: SyncLocal,
	}
}
