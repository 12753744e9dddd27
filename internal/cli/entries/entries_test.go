package entries

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/auth"
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/models"
)

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func setupTestApp(t *testing.T) (*cli.Context, *bytes.Buffer, models.Challenge) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database = filepath.Join(dir, "test.db")

	var out bytes.Buffer
	app, err := cli.New(cfg, filepath.Join(dir, "config.yaml"),
		cli.WithTokens(auth.Static("")),
		cli.WithOutput(&out),
		cli.WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	require.NoError(t, app.Store.Init(context.Background()))
	t.Cleanup(func() { _ = app.Store.Close() })

	res, err := app.Repo.CreateChallenge(context.Background(), models.ChallengePayload{
		Name:          "Pushups",
		Target:        1000,
		TimeframeUnit: "year",
		Year:          2025,
	})
	require.NoError(t, err)
	return app, &out, res.Value
}

func TestAddCmd_DefaultsToToday(t *testing.T) {
	app, out, ch := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, (&AddCmd{Challenge: ch.ID, Count: 25, Feeling: "good"}).Run(ctx, app))
	assert.Contains(t, out.String(), "Logged 25 on 2025-03-10")
	assert.Contains(t, out.String(), "queued, will sync later")

	list, err := app.Repo.ListEntries(ctx, models.EntryFilter{ChallengeID: ch.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "good", string(list[0].Feeling))
}

func TestAddCmd_CountFromSets(t *testing.T) {
	app, out, ch := setupTestApp(t)

	require.NoError(t, (&AddCmd{Challenge: ch.ID, Sets: "20,15,10", Date: "2025-03-09"}).Run(context.Background(), app))
	assert.Contains(t, out.String(), "Logged 45 on 2025-03-09")
}

func TestAddCmd_Invalid(t *testing.T) {
	app, _, ch := setupTestApp(t)
	ctx := context.Background()

	assert.Error(t, (&AddCmd{Challenge: ch.ID}).Run(ctx, app), "count or sets required")
	assert.Error(t, (&AddCmd{Challenge: ch.ID, Sets: "a,b"}).Run(ctx, app))

	err := (&AddCmd{Challenge: ch.ID, Count: 10, Sets: "5,4"}).Run(ctx, app)
	assert.ErrorIs(t, err, models.ErrSetsMismatch)

	err = (&AddCmd{Challenge: ch.ID, Count: 10, Date: "10/03/2025"}).Run(ctx, app)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestListCmd(t *testing.T) {
	app, out, ch := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, (&ListCmd{Challenge: ch.ID}).Run(ctx, app))
	assert.Equal(t, "No entries found.\n", out.String())

	require.NoError(t, (&AddCmd{Challenge: ch.ID, Count: 10, Date: "2025-03-09"}).Run(ctx, app))
	require.NoError(t, (&AddCmd{Challenge: ch.ID, Sets: "15,5", Note: "morning"}).Run(ctx, app))

	out.Reset()
	require.NoError(t, (&ListCmd{Challenge: ch.ID}).Run(ctx, app))
	assert.Contains(t, out.String(), "15,5")
	assert.Contains(t, out.String(), "morning")
	assert.Contains(t, out.String(), "2 entries, 30 total")

	out.Reset()
	require.NoError(t, (&ListCmd{Challenge: ch.ID, Date: "2025-03-09"}).Run(ctx, app))
	assert.Contains(t, out.String(), "1 entries, 10 total")
}

func TestEditCmd(t *testing.T) {
	app, out, ch := setupTestApp(t)
	ctx := context.Background()
	res, err := app.Repo.CreateEntry(ctx, models.EntryPayload{ChallengeID: ch.ID, Date: "2025-03-10", Sets: []int{10, 10}, Note: "first"})
	require.NoError(t, err)
	id := res.Value.ID

	assert.Error(t, (&EditCmd{ID: id, Count: -1}).Run(ctx, app), "an empty edit is rejected")

	require.NoError(t, (&EditCmd{ID: id, Count: 30, Sets: "none", ClearNote: true, Feeling: "tough"}).Run(ctx, app))
	assert.Contains(t, out.String(), "Updated entry: "+id+" (30 on 2025-03-10)")

	list, err := app.Repo.ListEntries(ctx, models.EntryFilter{ChallengeID: ch.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Sets)
	assert.Empty(t, list[0].Note)
	assert.Equal(t, "tough", string(list[0].Feeling))

	err = (&EditCmd{ID: id, Count: 30, Sets: "10,10"}).Run(ctx, app)
	assert.ErrorIs(t, err, models.ErrSetsMismatch)
}

func TestDeleteCmd(t *testing.T) {
	app, out, ch := setupTestApp(t)
	ctx := context.Background()
	res, err := app.Repo.CreateEntry(ctx, models.EntryPayload{ChallengeID: ch.ID, Date: "2025-03-10", Count: 5})
	require.NoError(t, err)

	require.NoError(t, (&DeleteCmd{ID: res.Value.ID}).Run(ctx, app))
	assert.Contains(t, out.String(), "Deleted entry: "+res.Value.ID)

	list, err := app.Repo.ListEntries(ctx, models.EntryFilter{ChallengeID: ch.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}
