package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/tally/internal/models"
)

// ReplacePublicChallenges swaps the cached public listing for a new snapshot,
// keeping the server's order.
func (s *SQLStore) ReplacePublicChallenges(ctx context.Context, challenges []models.Challenge) error {
	now := s.stamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.txExec(ctx, tx, `DELETE FROM public_challenges`); err != nil {
			return fmt.Errorf("failed to clear public challenges: %w", err)
		}
		for i, c := range challenges {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("failed to encode public challenge %s: %w", c.ID, err)
			}
			_, err = s.txExec(ctx, tx,
				`INSERT INTO public_challenges (id, position, data, fetched_at) VALUES (?, ?, ?, ?)`,
				c.ID, i, string(data), now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert public challenge %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) ListPublicChallenges(ctx context.Context) ([]models.Challenge, error) {
	rows, err := s.query(ctx, `SELECT data FROM public_challenges ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list public challenges: %w", err)
	}
	defer rows.Close()

	challenges := []models.Challenge{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan public challenge: %w", err)
		}
		var c models.Challenge
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("failed to decode public challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}
