// Package inspect exposes a read-only HTTP view of the local sync state.
// It is a development aid for poking at the client's tables and sprites
// with curl or a browser while a session is running.
package inspect

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/openvtt/tabletop/internal/coordinator"
	"github.com/openvtt/tabletop/internal/models"
	"github.com/openvtt/tabletop/internal/table"
)

// TableSummary is the list-view shape returned by /api/tables.
type TableSummary struct {
	TableID      string     `json:"table_id"`
	Name         string     `json:"table_name"`
	Active       bool       `json:"active"`
	SpriteCount  int        `json:"sprite_count"`
	SyncStatus   string     `json:"sync_status"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
}

// TableState is the full snapshot shape returned by /api/tables/{id}/state.
// Statuses maps sprite id to its current sync status.
type TableState struct {
	Table    models.Table      `json:"table"`
	Sprites  []models.Sprite   `json:"sprites"`
	Statuses map[string]string `json:"sprite_statuses"`
	Active   bool              `json:"active"`
}

// Handler serves the inspection endpoints over a registry and coordinator.
type Handler struct {
	registry *table.Registry
	coord    *coordinator.Coordinator
}

// NewHandler creates an inspection handler.
func NewHandler(registry *table.Registry, coord *coordinator.Coordinator) *Handler {
	return &Handler{
		registry: registry,
		coord:    coord,
	}
}

// HandleListTables handles GET /api/tables.
func (h *Handler) HandleListTables(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	activeID := h.registry.ActiveTableID()
	tables := h.registry.Tables()
	summaries := make([]TableSummary, 0, len(tables))
	for _, t := range tables {
		sprites, _ := h.coord.Snapshot(t.ID)
		summaries = append(summaries, TableSummary{
			TableID:      t.ID,
			Name:         t.Name,
			Active:       t.ID == activeID,
			SpriteCount:  len(sprites),
			SyncStatus:   string(t.SyncStatus),
			LastSyncTime: t.LastSyncTime,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		log.Error().Err(err).Msg("failed to encode table summaries")
	}
}

// HandleGetTableState handles GET /api/tables/{id}/state.
func (h *Handler) HandleGetTableState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tableID := extractTableIDFromPath(r.URL.Path)
	if tableID == "" {
		http.Error(w, "Table ID is required", http.StatusBadRequest)
		return
	}

	t, ok := h.registry.Get(tableID)
	if !ok {
		http.Error(w, "Table not found", http.StatusNotFound)
		return
	}
	sprites, _ := h.coord.Snapshot(tableID)
	if sprites == nil {
		sprites = []models.Sprite{}
	}
	statuses := make(map[string]string, len(sprites))
	for _, s := range sprites {
		if st, ok := h.coord.SpriteStatus(s.ID); ok {
			statuses[s.ID] = string(st)
		}
	}

	state := TableState{
		Table:    t,
		Sprites:  sprites,
		Statuses: statuses,
		Active:   tableID == h.registry.ActiveTableID(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Str("table_id", tableID).Msg("failed to encode table state")
	}
}

// RegisterRoutes registers the inspection routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/tables", h.HandleListTables)

	mux.HandleFunc("/api/tables/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/state") {
			h.HandleGetTableState(w, r)
		} else {
			http.NotFound(w, r)
		}
	})
}

// NewServer builds the inspector HTTP server with CORS applied, so local
// web tooling on another port can query it.
func NewServer(addr string, h *Handler) *http.Server {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    addr,
		Handler: c.Handler(mux),
	}
}

// extractTableIDFromPath pulls the id out of /api/tables/{id}/state.
func extractTableIDFromPath(path string) string {
	const prefix = "/api/tables/"
	const suffix = "/state"

	if len(path) <= len(prefix)+len(suffix) {
		return ""
	}
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return ""
	}
	return path[len(prefix) : len(path)-len(suffix)]
}
