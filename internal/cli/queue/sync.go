package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/repository"
)

const timeLayout = "2006-01-02 15:04"

type SyncCmd struct {
	MetricsFile string `help:"Write Prometheus metrics for this run to the given file." type:"path"`
}

func (c *SyncCmd) Run(ctx context.Context, app *cli.Context) error {
	synced, err := app.Repo.SyncQueue(ctx)
	if errors.Is(err, repository.ErrSyncInProgress) {
		app.Println(cli.Badge(repository.StateSyncing) + " another sync is already running")
		return nil
	}
	if errors.Is(err, repository.ErrNoToken) {
		return fmt.Errorf("%w: run 'tally auth login' or set %s", err, constants.TokenEnvVar)
	}
	if err != nil {
		return err
	}

	status, err := app.Repo.Status(ctx)
	if err != nil {
		return err
	}
	app.Printf("%s synced %d item(s)", cli.Badge(status.State), synced)
	if status.Pending > 0 {
		app.Printf(", %d still pending", status.Pending)
	}
	if status.Dead > 0 {
		app.Printf(", %d failed permanently", status.Dead)
	}
	app.Println()
	if status.LastError != nil {
		app.Println(cli.DimStyle.Render("last error: " + status.LastError.Error()))
	}

	if err := app.WriteMetrics(c.MetricsFile); err != nil {
		logger.Warn("Failed to write metrics", "error", err)
		return err
	}
	return nil
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx context.Context, app *cli.Context) error {
	status, err := app.Repo.Status(ctx)
	if err != nil {
		return err
	}

	app.Printf("%s %s\n", cli.Badge(status.State), describe(status))
	app.Printf("  Pending: %d\n", status.Pending)
	app.Printf("  Failed:  %d\n", status.Dead)
	if status.Oldest != nil {
		app.Printf("  Oldest:  %s (%s ago)\n", status.Oldest.Local().Format(timeLayout), app.Now().Sub(*status.Oldest).Round(time.Minute))
	}
	if !status.LastSync.IsZero() {
		app.Printf("  Synced:  %s\n", status.LastSync.Local().Format(timeLayout))
	}
	if status.LastError != nil {
		app.Printf("  Error:   %v\n", status.LastError)
	}
	return nil
}

func describe(s repository.SyncStatus) string {
	switch s.State {
	case repository.StateOffline:
		return "not signed in; writes are queued locally"
	case repository.StateSyncing:
		return "sync in progress"
	case repository.StateError:
		if s.Dead > 0 {
			return "some writes failed permanently; see 'tally queue list'"
		}
		return "last sync had failures; run 'tally sync' to retry"
	case repository.StatePending:
		return "writes are waiting; run 'tally sync'"
	default:
		return "everything is synced"
	}
}
