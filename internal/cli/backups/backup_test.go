package backups

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

func setupTestApp(t *testing.T, database string) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database = database
	if database == "" {
		cfg.Database = filepath.Join(dir, "test.db")
	}

	var out bytes.Buffer
	app, err := cli.New(cfg, filepath.Join(dir, "config.yaml"),
		cli.WithTokens(auth.Static("")),
		cli.WithOutput(&out),
		cli.WithClock(func() time.Time { return time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC) }),
		cli.WithPrompts(func(string, string) (bool, error) { return true, nil }, nil),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Store.Close() })
	return app, &out
}

func addChallenge(t *testing.T, app *cli.Context, name string) {
	t.Helper()
	_, err := app.Repo.CreateChallenge(context.Background(), models.ChallengePayload{Name: name, Target: 100, TimeframeUnit: "year", Year: 2025})
	require.NoError(t, err)
}

func TestCreateAndList(t *testing.T) {
	app, out := setupTestApp(t, "")
	ctx := context.Background()
	require.NoError(t, app.Store.Init(ctx))

	require.NoError(t, (&ListCmd{}).Run(app))
	assert.Contains(t, out.String(), "No backups found.")

	require.NoError(t, (&CreateCmd{}).Run(ctx, app))
	assert.Contains(t, out.String(), "Backup created: tally-")

	out.Reset()
	require.NoError(t, (&ListCmd{}).Run(app))
	assert.Contains(t, out.String(), "1 total")
	assert.Contains(t, out.String(), "tally-")
}

func TestCreateWithoutDatabase(t *testing.T) {
	app, _ := setupTestApp(t, "")

	assert.Error(t, (&CreateCmd{}).Run(context.Background(), app))
}

func TestRestore(t *testing.T) {
	app, out := setupTestApp(t, "")
	ctx := context.Background()
	require.NoError(t, app.Store.Init(ctx))
	addChallenge(t, app, "Pushups")

	require.NoError(t, (&CreateCmd{}).Run(ctx, app))
	backups, err := app.Backups().ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 1)

	addChallenge(t, app, "Squats")

	out.Reset()
	require.NoError(t, (&RestoreCmd{BackupFile: filepath.Base(backups[0].Path), Yes: true}).Run(ctx, app))
	assert.Contains(t, out.String(), "Database restored.")
	assert.Contains(t, out.String(), "Previous database saved as")

	require.NoError(t, app.Store.Load(ctx))
	list, err := app.Repo.ListChallenges(ctx, models.ChallengeFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Pushups", list[0].Name)

	pending, err := app.Repo.ListQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "the queue is restored with the cache")
}

func TestRestoreDeclined(t *testing.T) {
	app, out := setupTestApp(t, "")
	ctx := context.Background()
	require.NoError(t, app.Store.Init(ctx))
	require.NoError(t, (&CreateCmd{}).Run(ctx, app))
	app.Confirm = func(string, string) (bool, error) { return false, nil }

	backups, err := app.Backups().ListBackups()
	require.NoError(t, err)
	require.NoError(t, (&RestoreCmd{BackupFile: backups[0].Path}).Run(ctx, app))
	assert.Contains(t, out.String(), "Restore cancelled.")
}

func TestRestoreMissingFile(t *testing.T) {
	app, _ := setupTestApp(t, "")
	require.NoError(t, app.Store.Init(context.Background()))

	err := (&RestoreCmd{BackupFile: "tally-20250101-000000.db", Yes: true}).Run(context.Background(), app)
	assert.ErrorContains(t, err, "backup file not found")
}

func TestPostgresHasNoBackups(t *testing.T) {
	app, _ := setupTestApp(t, "postgres://tally@localhost:5432/tally")

	assert.ErrorIs(t, (&CreateCmd{}).Run(context.Background(), app), errPostgres)
	assert.ErrorIs(t, (&ListCmd{}).Run(app), errPostgres)
}
