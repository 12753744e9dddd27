package challenges

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

func setupTestApp(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database = filepath.Join(dir, "test.db")

	var out bytes.Buffer
	app, err := cli.New(cfg, filepath.Join(dir, "config.yaml"),
		cli.WithTokens(auth.Static("")),
		cli.WithOutput(&out),
		cli.WithClock(func() time.Time { return testNow }),
		cli.WithPrompts(func(string, string) (bool, error) { return false, nil }, nil),
	)
	require.NoError(t, err)
	require.NoError(t, app.Store.Init(context.Background()))
	t.Cleanup(func() { _ = app.Store.Close() })
	return app, &out
}

func addPushups(t *testing.T, app *cli.Context) models.Challenge {
	t.Helper()
	res, err := app.Repo.CreateChallenge(context.Background(), models.ChallengePayload{
		Name:          "Pushups",
		Target:        1000,
		TimeframeUnit: "year",
		Year:          2025,
	})
	require.NoError(t, err)
	return res.Value
}

func TestAddCmd_Offline(t *testing.T) {
	app, out := setupTestApp(t)
	ctx := context.Background()

	cmd := &AddCmd{Name: "Squats", Target: 500, Unit: "month", Color: "#ff0000"}
	require.NoError(t, cmd.Run(ctx, app))
	assert.Contains(t, out.String(), "Added challenge: Squats")
	assert.Contains(t, out.String(), "queued, will sync later")

	list, err := app.Repo.ListChallenges(ctx, models.ChallengeFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2025, list[0].Year, "year defaults to the current one")
	assert.Equal(t, "#ff0000", list[0].Color)
	assert.True(t, models.IsLocalID(list[0].ID))
}

func TestAddCmd_Invalid(t *testing.T) {
	app, _ := setupTestApp(t)

	err := (&AddCmd{Name: "Squats", Target: 0, Unit: "year"}).Run(context.Background(), app)
	assert.ErrorIs(t, err, models.ErrValidation)

	err = (&AddCmd{Name: "Run", Target: 100, Unit: "custom", Start: "2025-05-01"}).Run(context.Background(), app)
	assert.ErrorIs(t, err, models.ErrValidation, "custom timeframes need both dates")
}

func TestListCmd(t *testing.T) {
	app, out := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, (&ListCmd{}).Run(ctx, app))
	assert.Equal(t, "No challenges found.\n", out.String())

	ch := addPushups(t, app)
	out.Reset()
	require.NoError(t, (&ListCmd{}).Run(ctx, app))
	assert.Contains(t, out.String(), ch.ID)
	assert.Contains(t, out.String(), "Pushups")
	assert.Contains(t, out.String(), "unsynced")
}

func TestArchiveHidesFromDefaultList(t *testing.T) {
	app, out := setupTestApp(t)
	ctx := context.Background()
	ch := addPushups(t, app)

	require.NoError(t, (&ArchiveCmd{ID: ch.ID}).Run(ctx, app))
	assert.Contains(t, out.String(), "Archived challenge: "+ch.ID)

	out.Reset()
	require.NoError(t, (&ListCmd{}).Run(ctx, app))
	assert.Equal(t, "No challenges found.\n", out.String())

	out.Reset()
	require.NoError(t, (&ListCmd{Archived: true}).Run(ctx, app))
	assert.Contains(t, out.String(), "archived")

	require.NoError(t, (&UnarchiveCmd{ID: ch.ID}).Run(ctx, app))
	out.Reset()
	require.NoError(t, (&ListCmd{}).Run(ctx, app))
	assert.Contains(t, out.String(), ch.ID)
}

func TestEditCmd(t *testing.T) {
	app, out := setupTestApp(t)
	ctx := context.Background()
	ch := addPushups(t, app)

	assert.Error(t, (&EditCmd{ID: ch.ID}).Run(ctx, app), "an empty edit is rejected")

	require.NoError(t, (&EditCmd{ID: ch.ID, Name: "Pushups 2025", Target: 1200, Public: true}).Run(ctx, app))
	assert.Contains(t, out.String(), "Updated challenge: Pushups 2025")

	got, err := app.Repo.GetChallenge(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1200, got.Target)
	assert.True(t, got.IsPublic)

	require.NoError(t, (&EditCmd{ID: ch.ID, Private: true}).Run(ctx, app))
	got, err = app.Repo.GetChallenge(ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublic)
}

func TestDeleteCmd(t *testing.T) {
	app, out := setupTestApp(t)
	ctx := context.Background()
	ch := addPushups(t, app)

	require.NoError(t, (&DeleteCmd{ID: ch.ID}).Run(ctx, app))
	assert.Contains(t, out.String(), "Delete cancelled.")
	_, err := app.Repo.GetChallenge(ctx, ch.ID)
	require.NoError(t, err, "declined prompt keeps the challenge")

	require.NoError(t, (&DeleteCmd{ID: ch.ID, Yes: true}).Run(ctx, app))
	_, err = app.Repo.GetChallenge(ctx, ch.ID)
	assert.Error(t, err)
}

func TestStatsCmd(t *testing.T) {
	app, out := setupTestApp(t)
	ctx := context.Background()
	ch := addPushups(t, app)

	for _, p := range []models.EntryPayload{
		{ChallengeID: ch.ID, Date: "2025-03-09", Count: 20},
		{ChallengeID: ch.ID, Date: "2025-03-10", Sets: []int{15, 15}},
	} {
		_, err := app.Repo.CreateEntry(ctx, p)
		require.NoError(t, err)
	}

	require.NoError(t, (&StatsCmd{ID: ch.ID}).Run(ctx, app))
	assert.Contains(t, out.String(), "Pushups")
	assert.Contains(t, out.String(), "Progress:   50 / 1000")
	assert.Contains(t, out.String(), "Streak:     2 day(s)")
	assert.Contains(t, out.String(), "Best day:   2025-03-10 (30)")
}
