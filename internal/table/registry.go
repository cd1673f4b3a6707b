// Package table owns the set of Table entities, the active-table pointer and
// the on-screen area assigned to each table. All viewport math is delegated
// to the geom package; the registry only stores per-table transform state.
package table

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openvtt/tabletop/internal/geom"
	"github.com/openvtt/tabletop/internal/models"
)

// Registry manages the current set of tables in memory. At most one table is
// active at a time; the registry is the sole owner of that invariant.
type Registry struct {
	mu       sync.RWMutex
	tables   map[string]*models.Table
	areas    map[string]geom.Rect
	activeID string
}

// NewRegistry creates an empty table registry.
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]*models.Table),
		areas:  make(map[string]geom.Rect),
	}
}

// CreateTable registers a new table with an identity viewport. It returns
// false when a table with the same id already exists. New tables start with
// the optimistic local sync status.
func (r *Registry) CreateTable(id, name string, width, height float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[id]; exists {
		log.Warn().Str("table_id", id).Msg("create table ignored, id already exists")
		return false
	}

	t := models.NewTable(id, name, width, height)
	r.tables[id] = &t

	log.Info().Str("table_id", id).Str("table_name", name).Msg("table created")
	return true
}

// SetActiveTable marks the given table as active. It returns false when the
// id is unknown; exactly one table is active afterwards on success.
func (r *Registry) SetActiveTable(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[id]; !exists {
		return false
	}
	r.activeID = id
	return true
}

// RemoveTable releases the table. Removing the active table clears the
// active pointer without promoting another table.
func (r *Registry) RemoveTable(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[id]; !exists {
		return false
	}
	delete(r.tables, id)
	delete(r.areas, id)
	if r.activeID == id {
		r.activeID = ""
	}

	log.Info().Str("table_id", id).Msg("table removed")
	return true
}

// SetTableScreenArea assigns the on-screen region this table renders into,
// enabling split and multi-table layouts.
func (r *Registry) SetTableScreenArea(id string, area geom.Rect) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[id]; !exists {
		return false
	}
	r.areas[id] = area
	return true
}

// RefreshTables re-derives the full table list and active id from a store
// snapshot. This is a full re-sync, not an incremental update; do not call
// it on a hot path.
func (r *Registry) RefreshTables(snapshot []models.Table, activeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tables = make(map[string]*models.Table, len(snapshot))
	for i := range snapshot {
		t := snapshot[i]
		r.tables[t.ID] = &t
	}
	if _, exists := r.tables[activeID]; exists {
		r.activeID = activeID
	} else {
		r.activeID = ""
	}
	for id := range r.areas {
		if _, exists := r.tables[id]; !exists {
			delete(r.areas, id)
		}
	}

	log.Info().Int("tables", len(snapshot)).Str("active_id", r.activeID).Msg("table list refreshed")
}

// Upsert replaces or initializes a table, preserving any assigned screen
// area. Used by the sync coordinator when authoritative table data arrives.
func (r *Registry) Upsert(t models.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.ID] = &t
}

// Get returns a copy of the table with the given id.
func (r *Registry) Get(id string) (models.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.tables[id]
	if !exists {
		return models.Table{}, false
	}
	return *t, true
}

// Tables returns copies of all registered tables.
func (r *Registry) Tables() []models.Table {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, *t)
	}
	return out
}

// ActiveTable returns a copy of the active table, if any.
func (r *Registry) ActiveTable() (models.Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.activeID == "" {
		return models.Table{}, false
	}
	t, exists := r.tables[r.activeID]
	if !exists {
		return models.Table{}, false
	}
	return *t, true
}

// ActiveTableID returns the id of the active table, or "" when none is set.
func (r *Registry) ActiveTableID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeID
}

// SetSyncStatus moves a table through the sync lattice. Illegal transitions
// are ignored and reported false.
func (r *Registry) SetSyncStatus(id string, status models.SyncStatus, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tables[id]
	if !exists {
		return false
	}
	if !t.SyncStatus.CanTransition(status) {
		log.Warn().
			Str("table_id", id).
			Str("from", string(t.SyncStatus)).
			Str("to", string(status)).
			Msg("illegal table sync transition ignored")
		return false
	}
	t.SyncStatus = status
	if status == models.SyncSynced {
		t.LastSyncTime = &at
	}
	return true
}
