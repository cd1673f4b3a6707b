package models

// SyncStatus tracks how far an entity has progressed toward confirmation by
// the authoritative peer.
type SyncStatus string

const (
	// SyncLocal marks an entity created or edited here and not yet sent.
	SyncLocal SyncStatus = "local"
	// SyncSyncing marks an entity with an outbound message in flight.
	SyncSyncing SyncStatus = "syncing"
	// SyncSynced marks an entity acknowledged by the authoritative peer.
	SyncSynced SyncStatus = "synced"
	// SyncError marks an entity whose send failed or was rejected.
	SyncError SyncStatus = "error"
)

var syncTransitions = map[SyncStatus]map[SyncStatus]bool{
	SyncLocal:   {SyncSyncing: true},
	SyncSyncing: {SyncSynced: true, SyncError: true},
	SyncSynced:  {SyncSyncing: true},
	SyncError:   {SyncSyncing: true},
}

// CanTransition reports whether moving from s to next is a legal step in the
// sync lattice. A synced entity can only re-enter syncing through a new local
// mutation; it can never fall back to local.
func (s SyncStatus) CanTransition(next SyncStatus) bool {
	return syncTransitions[s][next]
}
