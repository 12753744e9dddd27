package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

const challengeColumns = `id, name, target, color, icon, timeframe_unit, start_date, end_date, year, is_public, archived, created_at`

// UpsertChallenges inserts or replaces each challenge by id. Replaying the
// same slice leaves the cache unchanged.
func (s *SQLStore) UpsertChallenges(ctx context.Context, challenges []models.Challenge) error {
	if len(challenges) == 0 {
		return nil
	}
	now := s.stamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, c := range challenges {
			_, err := s.txExec(ctx, tx, `
				INSERT INTO challenges (`+challengeColumns+`, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name,
					target = excluded.target,
					color = excluded.color,
					icon = excluded.icon,
					timeframe_unit = excluded.timeframe_unit,
					start_date = excluded.start_date,
					end_date = excluded.end_date,
					year = excluded.year,
					is_public = excluded.is_public,
					archived = excluded.archived,
					created_at = excluded.created_at,
					updated_at = excluded.updated_at`,
				c.ID, c.Name, c.Target, c.Color, c.Icon, string(c.TimeframeUnit),
				c.StartDate, c.EndDate, c.Year, c.IsPublic, c.Archived,
				formatTime(c.CreatedAt.Time), now,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert challenge %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) ListChallenges(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges`
	var args []any
	if filter.Active != nil {
		query += ` WHERE archived = ?`
		args = append(args, !*filter.Active)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	challenges := []models.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

func (s *SQLStore) GetChallenge(ctx context.Context, id string) (models.Challenge, error) {
	var (
		c         models.Challenge
		unit      string
		createdAt string
	)
	err := s.scanOne(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, []any{id},
		&c.ID, &c.Name, &c.Target, &c.Color, &c.Icon, &unit,
		&c.StartDate, &c.EndDate, &c.Year, &c.IsPublic, &c.Archived, &createdAt,
	)
	if err != nil {
		return models.Challenge{}, fmt.Errorf("challenge %s: %w", id, err)
	}
	return finishChallenge(c, unit, createdAt)
}

func (s *SQLStore) DeleteChallenge(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM challenges WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return checkAffected(res, "challenge "+id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(r rowScanner) (models.Challenge, error) {
	var (
		c         models.Challenge
		unit      string
		createdAt string
	)
	if err := r.Scan(
		&c.ID, &c.Name, &c.Target, &c.Color, &c.Icon, &unit,
		&c.StartDate, &c.EndDate, &c.Year, &c.IsPublic, &c.Archived, &createdAt,
	); err != nil {
		return models.Challenge{}, fmt.Errorf("failed to scan challenge: %w", err)
	}
	return finishChallenge(c, unit, createdAt)
}

func finishChallenge(c models.Challenge, unit, createdAt string) (models.Challenge, error) {
	c.TimeframeUnit = constants.TimeframeUnit(unit)
	t, err := parseTime(createdAt)
	if err != nil {
		return models.Challenge{}, fmt.Errorf("challenge %s has invalid created_at: %w", c.ID, err)
	}
	c.CreatedAt = models.NewTimestamp(t)
	return c, nil
}
