package system

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/storage"
)

type InitCmd struct {
	Force bool `help:"Force reset by deleting the existing local database before initialization."`
}

func (c *InitCmd) Run(ctx context.Context, app *cli.Context) error {
	if c.Force {
		if app.Store.Dialect() != storage.DialectSQLite {
			return errors.New("--force is only supported for SQLite databases")
		}
		if err := removeDatabase(app); err != nil {
			return err
		}
	}

	if err := app.Store.Init(ctx); err != nil {
		return err
	}
	app.Printf("Initialized tally storage at: %s\n", app.Store.GetConfigPath())

	path := config.ExpandPath(app.ConfigPath)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(path, app.Config); err != nil {
			return err
		}
		app.Printf("Wrote default config to: %s\n", path)
	}
	return nil
}

func removeDatabase(app *cli.Context) error {
	dbPath := app.Store.GetConfigPath()
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to access existing database: %w", err)
	}

	// Close first so the file is not held open
	if err := app.Store.Close(); err != nil {
		return fmt.Errorf("failed to close existing database: %w", err)
	}
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete existing database: %w", err)
		}
	}
	app.Printf("Deleted existing database at: %s\n", dbPath)
	return nil
}
