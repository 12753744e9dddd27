package repository

import (
	"context"

	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
)

// ListQueue returns every queued item, dead ones included, oldest first
func (r *Repository) ListQueue(ctx context.Context) ([]models.QueueItem, error) {
	return r.store.ListQueue(ctx)
}

// RetryQueueItem moves a dead item back to pending with a fresh attempt budget
func (r *Repository) RetryQueueItem(ctx context.Context, id string) error {
	if _, err := r.store.GetQueueItem(ctx, id); err != nil {
		return err
	}
	if err := r.store.ResetQueueItem(ctx, id); err != nil {
		return err
	}
	logger.Info("Queue item reset", "id", id)
	return nil
}

// RetryDead resets every dead item and returns how many were reset
func (r *Repository) RetryDead(ctx context.Context) (int, error) {
	items, err := r.store.ListQueue(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range items {
		if !item.IsDead() {
			continue
		}
		if err := r.store.ResetQueueItem(ctx, item.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// DropQueueItem discards a queued write. The optimistic cache row it
// produced is left as is until the next refresh from the server.
func (r *Repository) DropQueueItem(ctx context.Context, id string) error {
	if err := r.store.DeleteQueueItem(ctx, id); err != nil {
		return err
	}
	logger.Info("Queue item dropped", "id", id)
	return nil
}
