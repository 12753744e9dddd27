package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

const entryColumns = `id, challenge_id, date, count, note, feeling, sets, created_at`

func (s *SQLStore) UpsertEntries(ctx context.Context, entries []models.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := s.stamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			sets, err := encodeSets(e.Sets)
			if err != nil {
				return err
			}
			_, err = s.txExec(ctx, tx, `
				INSERT INTO entries (`+entryColumns+`, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					challenge_id = excluded.challenge_id,
					date = excluded.date,
					count = excluded.count,
					note = excluded.note,
					feeling = excluded.feeling,
					sets = excluded.sets,
					created_at = excluded.created_at,
					updated_at = excluded.updated_at`,
				e.ID, e.ChallengeID, e.Date, e.Count, e.Note, string(e.Feeling), sets,
				formatTime(e.CreatedAt.Time), now,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) ListEntries(ctx context.Context, filter models.EntryFilter) ([]models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE 1 = 1`
	var args []any
	if filter.ChallengeID != "" {
		query += ` AND challenge_id = ?`
		args = append(args, filter.ChallengeID)
	}
	if filter.Date != "" {
		query += ` AND date = ?`
		args = append(args, filter.Date)
	}
	query += ` ORDER BY date, created_at, id`

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) GetEntry(ctx context.Context, id string) (models.Entry, error) {
	rows, err := s.query(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	if err != nil {
		return models.Entry{}, fmt.Errorf("failed to get entry: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Entry{}, err
		}
		return models.Entry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return scanEntry(rows)
}

func (s *SQLStore) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return checkAffected(res, "entry "+id)
}

// DeleteEntriesForChallenge drops every cached entry of a challenge. It is
// not an error when there are none.
func (s *SQLStore) DeleteEntriesForChallenge(ctx context.Context, challengeID string) error {
	if _, err := s.exec(ctx, `DELETE FROM entries WHERE challenge_id = ?`, challengeID); err != nil {
		return fmt.Errorf("failed to delete entries for challenge %s: %w", challengeID, err)
	}
	return nil
}

func (s *SQLStore) RepointEntries(ctx context.Context, fromChallengeID, toChallengeID string) error {
	_, err := s.exec(ctx, `UPDATE entries SET challenge_id = ?, updated_at = ? WHERE challenge_id = ?`,
		toChallengeID, s.stamp(), fromChallengeID)
	if err != nil {
		return fmt.Errorf("failed to repoint entries: %w", err)
	}
	return nil
}

func scanEntry(r rowScanner) (models.Entry, error) {
	var (
		e         models.Entry
		feeling   string
		sets      string
		createdAt string
	)
	if err := r.Scan(&e.ID, &e.ChallengeID, &e.Date, &e.Count, &e.Note, &feeling, &sets, &createdAt); err != nil {
		return models.Entry{}, fmt.Errorf("failed to scan entry: %w", err)
	}
	e.Feeling = constants.Feeling(feeling)

	decoded, err := decodeSets(sets)
	if err != nil {
		return models.Entry{}, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e.Sets = decoded

	t, err := parseTime(createdAt)
	if err != nil {
		return models.Entry{}, fmt.Errorf("entry %s has invalid created_at: %w", e.ID, err)
	}
	e.CreatedAt = models.NewTimestamp(t)
	return e, nil
}

func encodeSets(sets []int) (string, error) {
	if len(sets) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(sets)
	if err != nil {
		return "", fmt.Errorf("failed to encode sets: %w", err)
	}
	return string(b), nil
}

func decodeSets(raw string) ([]int, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var sets []int
	if err := json.Unmarshal([]byte(raw), &sets); err != nil {
		return nil, fmt.Errorf("invalid sets column: %w", err)
	}
	return sets, nil
}
