package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/storage"
)

// DBSetConnectionCmd stores a PostgreSQL connection string in the OS keyring
type DBSetConnectionCmd struct {
	ConnectionString string `arg:"" optional:"" help:"PostgreSQL connection string. Prompted for when omitted."`
}

func (cmd *DBSetConnectionCmd) Run(app *cli.Context) error {
	connStr := cmd.ConnectionString
	if connStr == "" {
		var err error
		if connStr, err = app.Secret("PostgreSQL connection string"); err != nil {
			return err
		}
	}
	if storage.DialectFor(connStr) != storage.DialectPostgres {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}

	if _, err := storage.ValidateConnString(connStr); err != nil {
		if !errors.Is(err, storage.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		// The keyring is encrypted, so a password is acceptable here
		app.Println(cli.WarningStyle.Render("⚠ Connection string contains embedded credentials."))
		app.Println("  It will be stored as-is in the encrypted OS keyring.")
	}

	if err := keyring.SetConnectionString(connStr); err != nil {
		return fmt.Errorf("failed to store connection string in keyring: %w", err)
	}
	app.Println("✓ Connection string stored in OS keyring")
	app.Printf("  Set database: %s in your config to use it\n", cli.KeyringDatabase)
	return nil
}

// DBShowConnectionCmd prints the stored connection string with the password masked
type DBShowConnectionCmd struct{}

func (cmd *DBShowConnectionCmd) Run(app *cli.Context) error {
	connStr, err := keyring.GetConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring. Use 'tally db set-connection' to store one")
		}
		return fmt.Errorf("failed to retrieve connection string from keyring: %w", err)
	}
	app.Println(maskPassword(connStr))
	return nil
}

type DBDeleteConnectionCmd struct{}

func (cmd *DBDeleteConnectionCmd) Run(app *cli.Context) error {
	if err := keyring.DeleteConnectionString(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return fmt.Errorf("failed to delete connection string from keyring: %w", err)
	}
	app.Println("✓ Connection string deleted from OS keyring")
	return nil
}

// maskPassword hides the password of a URL or key=value connection string
func maskPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		idx := strings.Index(connStr, "://")
		remaining := connStr[idx+3:]
		// The last @ separates user info from host
		if atIdx := strings.LastIndex(remaining, "@"); atIdx != -1 {
			userInfo := remaining[:atIdx]
			if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
				return connStr[:idx+3] + userInfo[:colonIdx] + ":****" + connStr[idx+3+atIdx:]
			}
		}
		return connStr
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=****"
			}
		}
		return strings.Join(parts, " ")
	}
	return connStr
}
