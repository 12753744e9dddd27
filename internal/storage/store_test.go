package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
)

func setupStore(t *testing.T) *SQLStore {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleChallenge(id string) models.Challenge {
	return models.Challenge{
		ID:            id,
		Name:          "Pushups",
		Target:        10000,
		Color:         "#ff0000",
		Icon:          "dumbbell",
		TimeframeUnit: constants.TimeframeYear,
		Year:          2025,
		CreatedAt:     models.NewTimestamp(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)),
	}
}

func TestLoadBeforeInit(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing.db"))
	err := s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tally init")
}

func TestLoadAfterInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.db")
	ctx := context.Background()

	s := New(path)
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Close())

	reopened := New(path)
	require.NoError(t, reopened.Load(ctx))
	defer reopened.Close()

	n, err := reopened.Migrate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNotLoaded(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "tally.db"))
	_, err := s.ListChallenges(context.Background(), models.ChallengeFilter{})
	assert.ErrorIs(t, err, errNotLoaded)
}

func TestChallengeUpsertIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	batch := []models.Challenge{sampleChallenge("c1"), sampleChallenge("c2")}
	require.NoError(t, s.UpsertChallenges(ctx, batch))
	first, err := s.ListChallenges(ctx, models.ChallengeFilter{})
	require.NoError(t, err)

	require.NoError(t, s.UpsertChallenges(ctx, batch))
	second, err := s.ListChallenges(ctx, models.ChallengeFilter{})
	require.NoError(t, err)

	assert.Len(t, second, 2)
	assert.Equal(t, first, second)
}

func TestChallengeUpsertReplaces(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	c := sampleChallenge("c1")
	require.NoError(t, s.UpsertChallenges(ctx, []models.Challenge{c}))

	c.Name = "Squats"
	c.Archived = true
	require.NoError(t, s.UpsertChallenges(ctx, []models.Challenge{c}))

	got, err := s.GetChallenge(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestChallengeActiveFilter(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	archived := sampleChallenge("old")
	archived.Archived = true
	require.NoError(t, s.UpsertChallenges(ctx, []models.Challenge{sampleChallenge("live"), archived}))

	active := true
	got, err := s.ListChallenges(ctx, models.ChallengeFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].ID)

	inactive := false
	got, err = s.ListChallenges(ctx, models.ChallengeFilter{Active: &inactive})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].ID)
}

func TestChallengeNotFound(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.GetChallenge(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteChallenge(ctx, "nope"), ErrNotFound)
}

func TestEntriesRoundTripAndFilter(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	entries := []models.Entry{
		{ID: "e1", ChallengeID: "c1", Date: "2025-01-02", Count: 30, Sets: []int{10, 10, 10}, Feeling: constants.FeelingGood},
		{ID: "e2", ChallengeID: "c1", Date: "2025-01-03", Count: 5, Note: "tired"},
		{ID: "e3", ChallengeID: "c2", Date: "2025-01-02", Count: 1},
	}
	require.NoError(t, s.UpsertEntries(ctx, entries))

	got, err := s.ListEntries(ctx, models.EntryFilter{ChallengeID: "c1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int{10, 10, 10}, got[0].Sets)
	assert.Nil(t, got[1].Sets)
	assert.Equal(t, "tired", got[1].Note)

	byDate, err := s.ListEntries(ctx, models.EntryFilter{Date: "2025-01-02"})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	one, err := s.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, constants.FeelingGood, one.Feeling)
	assert.NoError(t, one.CheckSets())
}

func TestRepointAndDeleteEntries(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEntries(ctx, []models.Entry{
		{ID: "e1", ChallengeID: "local_x", Date: "2025-01-02", Count: 1},
		{ID: "e2", ChallengeID: "local_x", Date: "2025-01-03", Count: 2},
	}))
	require.NoError(t, s.UpsertFollowed(ctx, []models.Followed{{ID: "f1", ChallengeID: "local_x"}}))

	require.NoError(t, s.RepointEntries(ctx, "local_x", "srv_1"))
	require.NoError(t, s.RepointFollowed(ctx, "local_x", "srv_1"))

	got, err := s.ListEntries(ctx, models.EntryFilter{ChallengeID: "srv_1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	follows, err := s.ListFollowed(ctx)
	require.NoError(t, err)
	require.Len(t, follows, 1)
	assert.Equal(t, "srv_1", follows[0].ChallengeID)

	require.NoError(t, s.DeleteEntriesForChallenge(ctx, "srv_1"))
	got, err = s.ListEntries(ctx, models.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	// Nothing left to delete is fine
	assert.NoError(t, s.DeleteEntriesForChallenge(ctx, "srv_1"))
}

func TestFollowedDelete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFollowed(ctx, []models.Followed{{ID: "f1", ChallengeID: "c9"}}))
	require.NoError(t, s.DeleteFollowed(ctx, "f1"))
	assert.ErrorIs(t, s.DeleteFollowed(ctx, "f1"), ErrNotFound)
}

func TestPublicSnapshotReplaces(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplacePublicChallenges(ctx, []models.Challenge{sampleChallenge("p1"), sampleChallenge("p2")}))
	require.NoError(t, s.ReplacePublicChallenges(ctx, []models.Challenge{sampleChallenge("p3"), sampleChallenge("p1")}))

	got, err := s.ListPublicChallenges(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p3", got[0].ID)
	assert.Equal(t, "p1", got[1].ID)
}

func TestQueueFIFO(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		item, err := s.Enqueue(ctx, models.QueueItem{
			EntityType: constants.EntityEntry,
			Method:     constants.MethodPost,
			EntityID:   models.NewLocalID(),
			Payload:    json.RawMessage(`{"count":1}`),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, constants.QueueStatusPending, item.Status)
		assert.False(t, item.CreatedAt.IsZero())
		ids = append(ids, item.ID)
	}

	items, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, item := range items {
		assert.Equal(t, ids[i], item.ID)
		if i > 0 {
			assert.Greater(t, item.Seq, items[i-1].Seq)
		}
	}
	assert.JSONEq(t, `{"count":1}`, string(items[0].Payload))
}

func TestQueueAttemptsAndDeadLetter(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	item, err := s.Enqueue(ctx, models.QueueItem{
		EntityType: constants.EntityChallenge,
		Method:     constants.MethodDelete,
		EntityID:   "c1",
		Payload:    json.RawMessage(`{"id":"c1"}`),
	})
	require.NoError(t, err)

	require.NoError(t, s.IncrementAttempts(ctx, item.ID, "network down"))
	got, err := s.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "network down", got.LastError)

	require.NoError(t, s.MarkDead(ctx, item.ID, "forbidden"))
	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := s.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDead())

	stats, err := s.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.Dead)
	assert.Nil(t, stats.Oldest)

	require.NoError(t, s.ResetQueueItem(ctx, item.ID))
	got, err = s.GetQueueItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Attempts)
	assert.Equal(t, constants.QueueStatusPending, got.Status)

	stats, err = s.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.NotNil(t, stats.Oldest)

	require.NoError(t, s.DeleteQueueItem(ctx, item.ID))
	_, err = s.GetQueueItem(ctx, item.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.ErrorIs(t, s.IncrementAttempts(ctx, item.ID, "x"), ErrNotFound)
}

func TestIDMap(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	id, ok, err := s.ResolveID(ctx, "local_a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "local_a", id)

	require.NoError(t, s.PutIDMapping(ctx, models.IDMapping{
		LocalID: "local_a", ServerID: "srv_a", EntityType: constants.EntityChallenge,
	}))

	id, ok, err = s.ResolveID(ctx, "local_a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "srv_a", id)
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		dsn  string
		want Dialect
	}{
		{"/home/u/.config/tally/tally.db", DialectSQLite},
		{"postgres://u@localhost/tally", DialectPostgres},
		{"postgresql://u@localhost/tally", DialectPostgres},
		{"host=localhost dbname=tally user=u", DialectPostgres},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DialectFor(tt.dsn), tt.dsn)
	}
}

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a = ?, b = ? WHERE id = ?`
	assert.Equal(t, q, DialectSQLite.rebind(q))
	assert.Equal(t, `UPDATE t SET a = $1, b = $2 WHERE id = $3`, DialectPostgres.rebind(q))
}
