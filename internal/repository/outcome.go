package repository

import "fmt"

// Outcome tells a caller whether the server has seen a write
type Outcome int

const (
	// Confirmed writes were accepted by the server and cached
	Confirmed Outcome = iota + 1
	// Queued writes were applied locally and wait in the mutation queue
	Queued
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Queued:
		return "queued"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// WriteResult is the result of a write. Writes never fail because the server
// is unreachable; Outcome says which path was taken.
type WriteResult[T any] struct {
	Value       T
	Outcome     Outcome
	QueueItemID string
	// Cause is the remote error that forced queueing, nil when offline
	Cause error
}

// IsQueued reports whether the write is waiting in the mutation queue
func (w WriteResult[T]) IsQueued() bool {
	return w.Outcome == Queued
}

func confirmed[T any](v T) WriteResult[T] {
	return WriteResult[T]{Value: v, Outcome: Confirmed}
}

func queued[T any](v T, itemID string, cause error) WriteResult[T] {
	return WriteResult[T]{Value: v, Outcome: Queued, QueueItemID: itemID, Cause: cause}
}
