package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

const queueColumns = `seq, id, entity_type, method, entity_id, payload, created_at, attempts, status, last_error`

// Enqueue appends item to the tail of the queue. Missing id, timestamp and
// status are filled in; the stored item is returned with its sequence number.
func (s *SQLStore) Enqueue(ctx context.Context, item models.QueueItem) (models.QueueItem, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	item.CreatedAt = item.CreatedAt.UTC()
	if item.Status == "" {
		item.Status = constants.QueueStatusPending
	}
	if len(item.Payload) == 0 {
		item.Payload = []byte("{}")
	}

	err := s.scanOne(ctx, `
		INSERT INTO queue_items (id, entity_type, method, entity_id, payload, created_at, attempts, status, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`,
		[]any{
			item.ID, string(item.EntityType), string(item.Method), item.EntityID, string(item.Payload),
			formatTime(item.CreatedAt), item.Attempts, string(item.Status), item.LastError,
		},
		&item.Seq,
	)
	if err != nil {
		return models.QueueItem{}, fmt.Errorf("failed to enqueue %s %s: %w", item.Method, item.EntityType, err)
	}
	return item, nil
}

func (s *SQLStore) ListQueue(ctx context.Context) ([]models.QueueItem, error) {
	return s.listQueue(ctx, `SELECT `+queueColumns+` FROM queue_items ORDER BY seq`)
}

func (s *SQLStore) ListPending(ctx context.Context) ([]models.QueueItem, error) {
	return s.listQueue(ctx, `SELECT `+queueColumns+` FROM queue_items WHERE status = ? ORDER BY seq`,
		string(constants.QueueStatusPending))
}

func (s *SQLStore) listQueue(ctx context.Context, query string, args ...any) ([]models.QueueItem, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	items := []models.QueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLStore) GetQueueItem(ctx context.Context, id string) (models.QueueItem, error) {
	rows, err := s.query(ctx, `SELECT `+queueColumns+` FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return models.QueueItem{}, fmt.Errorf("failed to get queue item: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.QueueItem{}, err
		}
		return models.QueueItem{}, fmt.Errorf("queue item %s: %w", id, ErrNotFound)
	}
	return scanQueueItem(rows)
}

func (s *SQLStore) DeleteQueueItem(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return checkAffected(res, "queue item "+id)
}

// IncrementAttempts records one more failed replay of an item
func (s *SQLStore) IncrementAttempts(ctx context.Context, id string, lastError string) error {
	res, err := s.exec(ctx, `UPDATE queue_items SET attempts = attempts + 1, last_error = ? WHERE id = ?`, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	return checkAffected(res, "queue item "+id)
}

// MarkDead parks an item so drains skip it until it is retried
func (s *SQLStore) MarkDead(ctx context.Context, id string, lastError string) error {
	res, err := s.exec(ctx, `UPDATE queue_items SET status = ?, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		string(constants.QueueStatusDead), lastError, id)
	if err != nil {
		return fmt.Errorf("failed to mark queue item dead: %w", err)
	}
	return checkAffected(res, "queue item "+id)
}

// ResetQueueItem returns a dead item to pending with a fresh attempt count.
// It keeps its original position in the queue.
func (s *SQLStore) ResetQueueItem(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `UPDATE queue_items SET status = ?, attempts = 0, last_error = '' WHERE id = ?`,
		string(constants.QueueStatusPending), id)
	if err != nil {
		return fmt.Errorf("failed to reset queue item: %w", err)
	}
	return checkAffected(res, "queue item "+id)
}

func (s *SQLStore) QueueStats(ctx context.Context) (models.QueueStats, error) {
	rows, err := s.query(ctx, `SELECT status, COUNT(*), MIN(created_at) FROM queue_items GROUP BY status`)
	if err != nil {
		return models.QueueStats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}
	defer rows.Close()

	var stats models.QueueStats
	for rows.Next() {
		var (
			status string
			count  int
			oldest string
		)
		if err := rows.Scan(&status, &count, &oldest); err != nil {
			return models.QueueStats{}, fmt.Errorf("failed to scan queue stats: %w", err)
		}
		switch constants.QueueStatus(status) {
		case constants.QueueStatusPending:
			stats.Pending = count
			t, err := parseTime(oldest)
			if err != nil {
				return models.QueueStats{}, fmt.Errorf("invalid queue timestamp: %w", err)
			}
			if !t.IsZero() {
				stats.Oldest = &t
			}
		case constants.QueueStatusDead:
			stats.Dead = count
		}
	}
	return stats, rows.Err()
}

func scanQueueItem(r rowScanner) (models.QueueItem, error) {
	var (
		item       models.QueueItem
		entityType string
		method     string
		payload    string
		createdAt  string
		status     string
	)
	if err := r.Scan(&item.Seq, &item.ID, &entityType, &method, &item.EntityID, &payload,
		&createdAt, &item.Attempts, &status, &item.LastError); err != nil {
		return models.QueueItem{}, fmt.Errorf("failed to scan queue item: %w", err)
	}
	item.EntityType = constants.EntityType(entityType)
	item.Method = constants.Method(method)
	item.Status = constants.QueueStatus(status)
	item.Payload = []byte(payload)

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return models.QueueItem{}, fmt.Errorf("queue item %s has invalid created_at: %w", item.ID, err)
	}
	item.CreatedAt = t
	return item, nil
}
