package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/julianstephens/tally/internal/models"
)

func (s *SQLStore) UpsertFollowed(ctx context.Context, followed []models.Followed) error {
	if len(followed) == 0 {
		return nil
	}
	now := s.stamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, f := range followed {
			_, err := s.txExec(ctx, tx, `
				INSERT INTO followed (id, challenge_id, followed_at, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					challenge_id = excluded.challenge_id,
					followed_at = excluded.followed_at,
					updated_at = excluded.updated_at`,
				f.ID, f.ChallengeID, formatTime(f.FollowedAt.Time), now,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert follow %s: %w", f.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) ListFollowed(ctx context.Context) ([]models.Followed, error) {
	rows, err := s.query(ctx, `SELECT id, challenge_id, followed_at FROM followed ORDER BY followed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list follows: %w", err)
	}
	defer rows.Close()

	followed := []models.Followed{}
	for rows.Next() {
		var (
			f  models.Followed
			at string
		)
		if err := rows.Scan(&f.ID, &f.ChallengeID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan follow: %w", err)
		}
		t, err := parseTime(at)
		if err != nil {
			return nil, fmt.Errorf("follow %s has invalid followed_at: %w", f.ID, err)
		}
		f.FollowedAt = models.NewTimestamp(t)
		followed = append(followed, f)
	}
	return followed, rows.Err()
}

func (s *SQLStore) DeleteFollowed(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM followed WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	return checkAffected(res, "follow "+id)
}

func (s *SQLStore) RepointFollowed(ctx context.Context, fromChallengeID, toChallengeID string) error {
	_, err := s.exec(ctx, `UPDATE followed SET challenge_id = ?, updated_at = ? WHERE challenge_id = ?`,
		toChallengeID, s.stamp(), fromChallengeID)
	if err != nil {
		return fmt.Errorf("failed to repoint follows: %w", err)
	}
	return nil
}
