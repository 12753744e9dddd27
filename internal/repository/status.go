package repository

import (
	"context"
	"time"
)

// SyncState is the coarse state shown by sync indicators
type SyncState string

const (
	StateOffline SyncState = "offline"
	StateSyncing SyncState = "syncing"
	StateSynced  SyncState = "synced"
	StatePending SyncState = "pending"
	StateError   SyncState = "error"
)

// SyncStatus describes the queue and the last drain
type SyncStatus struct {
	State   SyncState
	Pending int
	Dead    int
	// Oldest is the creation time of the oldest pending item
	Oldest    *time.Time
	LastSync  time.Time
	LastError error
}

// Status reports the current sync state. A drain in progress wins over
// everything else, then a missing token, then failures, then pending work.
func (r *Repository) Status(ctx context.Context) (SyncStatus, error) {
	stats, err := r.store.QueueStats(ctx)
	if err != nil {
		return SyncStatus{}, err
	}

	r.stateMu.Lock()
	status := SyncStatus{
		Pending:   stats.Pending,
		Dead:      stats.Dead,
		Oldest:    stats.Oldest,
		LastSync:  r.lastSync,
		LastError: r.lastErr,
	}
	syncing := r.syncing
	r.stateMu.Unlock()

	switch {
	case syncing:
		status.State = StateSyncing
	case r.token(ctx) == "":
		status.State = StateOffline
	case status.Dead > 0 || status.LastError != nil:
		status.State = StateError
	case status.Pending > 0:
		status.State = StatePending
	default:
		status.State = StateSynced
	}
	return status, nil
}

func (r *Repository) setSyncing(v bool) {
	r.stateMu.Lock()
	r.syncing = v
	r.stateMu.Unlock()
}

// finishSync closes a drain. A drain that could not run to the end keeps
// its error; one that did has already recorded its last item failure.
func (r *Repository) finishSync(err error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.syncing = false
	if err != nil {
		r.lastErr = err
		return
	}
	r.lastSync = r.now()
}
