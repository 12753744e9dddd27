package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/tally/internal/cli"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context, app *cli.Context) error {
	app.PerformAutomaticBackup(ctx)

	count, err := app.Store.Migrate(ctx, func(msg string) {
		app.Println(msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		app.Println("No migrations to apply. Database is up to date.")
	} else {
		app.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
