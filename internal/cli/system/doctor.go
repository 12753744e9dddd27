package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/auth"
	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/storage"
)

type DoctorCmd struct {
	Offline bool `help:"Skip the API reachability check."`
}

type check struct {
	name string
	// warnOnly checks never fail the run
	warnOnly bool
	needsDB  bool
	run      func(ctx context.Context, app *cli.Context) error
}

// skipError reports a check that does not apply to this setup
type skipError string

func (e skipError) Error() string { return string(e) }

func (cmd *DoctorCmd) Run(ctx context.Context, app *cli.Context) error {
	app.Println("Running diagnostics...")
	app.Println()

	checks := []check{
		{name: "Configuration", run: checkConfig},
		{name: "Clock/timezone", run: checkClock},
		{name: "Database reachable", run: checkDBReachable},
		{name: "Schema version", needsDB: true, run: checkSchemaVersion},
		{name: "Queue health", needsDB: true, warnOnly: true, run: checkQueue},
		{name: "Backups present", warnOnly: true, run: checkBackupsPresent},
		{name: "Keyring", warnOnly: true, run: checkKeyring},
		{name: "API token", warnOnly: true, run: checkToken},
	}
	if !cmd.Offline {
		checks = append(checks, check{name: "API reachable", warnOnly: true, run: checkAPI})
	}

	hasError := false
	dbReachable := false
	for _, c := range checks {
		if c.needsDB && !dbReachable {
			app.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx, app)
		var skip skipError
		switch {
		case err == nil:
			app.Printf("%s %s: OK\n", cli.SuccessStyle.Render("✓"), c.name)
			if c.name == "Database reachable" {
				dbReachable = true
			}
		case errors.As(err, &skip):
			app.Printf("⊘ %s: SKIPPED (%s)\n", c.name, skip)
		case c.warnOnly:
			app.Printf("%s %s: WARNING\n", cli.WarningStyle.Render("⚠"), c.name)
			app.Printf("   %v\n", err)
		default:
			app.Printf("%s %s: FAIL\n", cli.DangerStyle.Render("❌"), c.name)
			app.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	app.Println()
	if hasError {
		app.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	app.Println("All diagnostics passed!")
	return nil
}

func checkConfig(_ context.Context, app *cli.Context) error {
	return app.Config.Validate()
}

func checkClock(context.Context, *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}

func checkDBReachable(ctx context.Context, app *cli.Context) error {
	if err := app.Store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if s, ok := app.Store.(*storage.SQLStore); ok {
		return s.Ping(ctx)
	}
	return nil
}

func checkSchemaVersion(ctx context.Context, app *cli.Context) error {
	s, ok := app.Store.(*storage.SQLStore)
	if !ok {
		return skipError("store has no schema")
	}
	current, latest, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current != latest {
		return fmt.Errorf("schema version %d, expected %d - run 'tally migrate'", current, latest)
	}
	return nil
}

func checkQueue(ctx context.Context, app *cli.Context) error {
	stats, err := app.Store.QueueStats(ctx)
	if err != nil {
		return err
	}
	if stats.Dead > 0 {
		return fmt.Errorf("%d queued write(s) failed permanently - see 'tally queue list'", stats.Dead)
	}
	return nil
}

func checkBackupsPresent(_ context.Context, app *cli.Context) error {
	mgr := app.Backups()
	if mgr == nil {
		return skipError("not a SQLite database")
	}
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return errors.New("no backups found - consider creating one with 'tally backup create'")
	}
	return nil
}

func checkKeyring(context.Context, *cli.Context) error {
	if !keyring.IsAvailable() {
		return errors.New("OS keyring is not available; use TALLY_TOKEN instead")
	}
	return nil
}

func checkToken(ctx context.Context, app *cli.Context) error {
	tok, err := auth.Chain(auth.Env(constants.TokenEnvVar), auth.Keyring()).Token(ctx)
	if err != nil {
		return err
	}
	if tok == "" {
		return errors.New("not signed in - run 'tally auth login'")
	}
	if auth.Expired(tok, app.Now()) {
		return errors.New("stored token has expired - run 'tally auth login'")
	}
	return nil
}

func checkAPI(ctx context.Context, app *cli.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := app.Remote.ListPublicChallenges(ctx); err != nil {
		return fmt.Errorf("%s: %w", app.Remote.BaseURL(), err)
	}
	return nil
}
