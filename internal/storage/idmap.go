package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/tally/internal/models"
)

// PutIDMapping records that a local id was confirmed as a server id
func (s *SQLStore) PutIDMapping(ctx context.Context, m models.IDMapping) error {
	resolvedAt := m.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = s.now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO id_map (local_id, server_id, entity_type, resolved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			entity_type = excluded.entity_type,
			resolved_at = excluded.resolved_at`,
		m.LocalID, m.ServerID, string(m.EntityType), formatTime(resolvedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record id mapping: %w", err)
	}
	return nil
}

// ResolveID returns the server id recorded for id. Unmapped ids come back
// unchanged with ok=false.
func (s *SQLStore) ResolveID(ctx context.Context, id string) (string, bool, error) {
	var serverID string
	err := s.scanOne(ctx, `SELECT server_id FROM id_map WHERE local_id = ?`, []any{id}, &serverID)
	if errors.Is(err, ErrNotFound) {
		return id, false, nil
	}
	if err != nil {
		return id, false, fmt.Errorf("failed to resolve id %s: %w", id, err)
	}
	return serverID, true, nil
}
