// Package account holds the sign-in commands. Tokens are issued by the
// identity provider; tally only stores and inspects them.
package account

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/julianstephens/tally/internal/auth"
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/repository"
)

const timeLayout = "2006-01-02 15:04"

type LoginCmd struct {
	Token string `help:"API token. Prompted for when omitted."`
}

func (c *LoginCmd) Run(app *cli.Context) error {
	tok := strings.TrimSpace(c.Token)
	if tok == "" {
		var err error
		if tok, err = app.Secret("API token"); err != nil {
			return err
		}
	}
	if tok == "" {
		return errors.New("token must not be empty")
	}

	info := auth.Inspect(tok)
	if auth.Expired(tok, app.Now()) {
		return fmt.Errorf("token expired at %s", info.ExpiresAt.Format(timeLayout))
	}

	if err := keyring.SetToken(tok); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	app.Println("✓ Signed in. Token stored in OS keyring.")
	if info.Subject != "" {
		app.Printf("  Account: %s\n", info.Subject)
	}
	return nil
}

type LogoutCmd struct{}

func (c *LogoutCmd) Run(app *cli.Context) error {
	if err := keyring.DeleteToken(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			app.Println("Not signed in.")
			return nil
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	app.Println("✓ Signed out. Writes will be queued until you sign in again.")
	return nil
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx context.Context, app *cli.Context) error {
	source := "keyring"
	tok := strings.TrimSpace(os.Getenv(constants.TokenEnvVar))
	if tok != "" {
		source = constants.TokenEnvVar
	} else {
		var err error
		if tok, err = auth.Keyring().Token(ctx); err != nil {
			return err
		}
	}

	if tok == "" {
		app.Println(cli.Badge(repository.StateOffline) + " not signed in")
		app.Println("Run 'tally auth login' to sync with the server.")
		return nil
	}

	info := auth.Inspect(tok)
	if auth.Expired(tok, app.Now()) {
		app.Printf("%s token from %s expired at %s\n", cli.Badge(repository.StateError), source, info.ExpiresAt.Format(timeLayout))
		return nil
	}
	app.Printf("%s signed in (token from %s)\n", cli.Badge(repository.StateSynced), source)
	if info.Subject != "" {
		app.Printf("  Account: %s\n", info.Subject)
	}
	if info.ExpiresAt != nil {
		app.Printf("  Expires: %s\n", info.ExpiresAt.Format(timeLayout))
	}
	app.Printf("  Server:  %s\n", app.Remote.BaseURL())
	return nil
}
