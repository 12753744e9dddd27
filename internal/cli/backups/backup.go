package backups

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
)

var errPostgres = errors.New("backups are only available for the SQLite database; use pg_dump for PostgreSQL")

type CreateCmd struct{}

func (c *CreateCmd) Run(ctx context.Context, app *cli.Context) error {
	mgr := app.Backups()
	if mgr == nil {
		return errPostgres
	}
	backupPath, err := mgr.CreateBackup(ctx)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	app.Println(cli.SuccessStyle.Render("✓ Backup created: " + filepath.Base(backupPath)))
	return nil
}

type ListCmd struct{}

func (c *ListCmd) Run(app *cli.Context) error {
	mgr := app.Backups()
	if mgr == nil {
		return errPostgres
	}
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		app.Println("No backups found.")
		app.Printf("Backups are stored in: %s\n", mgr.GetBackupDir())
		return nil
	}

	app.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), constants.MaxBackups)
	t := cli.NewTable("CREATED", "FILE", "SIZE")
	for _, b := range backups {
		t.Row(b.Timestamp.Local().Format("2006-01-02 15:04:05"), filepath.Base(b.Path), fmt.Sprintf("%.1f KB", float64(b.Size)/1024.0))
	}
	app.Println(t.Render())
	app.Printf("\nBackup directory: %s\n", mgr.GetBackupDir())
	return nil
}

type RestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *RestoreCmd) Run(ctx context.Context, app *cli.Context) error {
	mgr := app.Backups()
	if mgr == nil {
		return errPostgres
	}

	backupPath, err := resolveBackup(mgr, c.BackupFile)
	if err != nil {
		return err
	}

	app.Println(cli.WarningStyle.Render("This replaces the local cache and queue with the backup."))
	app.Println(cli.DimStyle.Render("Queued writes made after the backup are lost unless synced first."))
	ok, err := app.ConfirmOrSkip(c.Yes, "Restore from "+filepath.Base(backupPath)+"?",
		"A backup of the current database is taken before restoring.")
	if err != nil {
		return err
	}
	if !ok {
		app.Println("Restore cancelled.")
		return nil
	}

	if err := app.Store.Close(); err != nil {
		logger.Warn("Failed to close database before restore", "error", err)
	}

	saved, err := mgr.RestoreBackup(ctx, backupPath)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	app.Println(cli.SuccessStyle.Render("✓ Database restored."))
	if saved != "" {
		app.Printf("Previous database saved as %s\n", filepath.Base(saved))
	}
	return nil
}

// resolveBackup accepts an absolute path, a path relative to the working
// directory, or a bare file name inside the backup directory
func resolveBackup(mgr *backup.Manager, name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("backup file not found: %s", name)
		}
		return name, nil
	}
	if _, err := os.Stat(name); err == nil {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", fmt.Errorf("failed to resolve backup path: %w", err)
		}
		return abs, nil
	}
	candidate := filepath.Join(mgr.GetBackupDir(), name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("backup file not found: tried current directory and %s", mgr.GetBackupDir())
}
