package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/tally/internal/cli"
	"github.com/julianstephens/tally/internal/cli/account"
	"github.com/julianstephens/tally/internal/cli/backups"
	"github.com/julianstephens/tally/internal/cli/challenges"
	"github.com/julianstephens/tally/internal/cli/entries"
	"github.com/julianstephens/tally/internal/cli/follows"
	"github.com/julianstephens/tally/internal/cli/queue"
	"github.com/julianstephens/tally/internal/cli/system"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path" default:"${config_path}"`
	DB      string `name:"db" help:"Database path, PostgreSQL connection string without password, or 'keyring'. Overrides the config file."`
	Debug   bool   `help:"Log debug output to stderr."`

	Init    system.InitCmd    `cmd:"" help:"Initialize tally storage."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	DBCmd   struct {
		SetConnection    system.DBSetConnectionCmd    `cmd:"" help:"Store a PostgreSQL connection string in the OS keyring."`
		ShowConnection   system.DBShowConnectionCmd   `cmd:"" help:"Show the stored connection string with the password masked."`
		DeleteConnection system.DBDeleteConnectionCmd `cmd:"" help:"Remove the stored connection string."`
	} `cmd:"" name:"db" help:"Manage the database connection."`
	Auth struct {
		Login  account.LoginCmd  `cmd:"" help:"Save an API token to the OS keyring."`
		Logout account.LogoutCmd `cmd:"" help:"Remove the saved API token."`
		Status account.StatusCmd `cmd:"" help:"Show who you are signed in as." default:"1"`
	} `cmd:"" help:"Manage API credentials."`

	Challenge struct {
		Add       challenges.AddCmd       `cmd:"" help:"Create a challenge."`
		List      challenges.ListCmd      `cmd:"" help:"List challenges." default:"1"`
		Edit      challenges.EditCmd      `cmd:"" help:"Edit a challenge."`
		Archive   challenges.ArchiveCmd   `cmd:"" help:"Archive a challenge."`
		Unarchive challenges.UnarchiveCmd `cmd:"" help:"Restore an archived challenge."`
		Delete    challenges.DeleteCmd    `cmd:"" help:"Delete a challenge and its entries."`
	} `cmd:"" help:"Manage challenges."`
	Entry struct {
		Add    entries.AddCmd    `cmd:"" help:"Log an entry."`
		List   entries.ListCmd   `cmd:"" help:"List entries." default:"1"`
		Edit   entries.EditCmd   `cmd:"" help:"Edit an entry."`
		Delete entries.DeleteCmd `cmd:"" help:"Delete an entry."`
	} `cmd:"" help:"Manage entries."`
	Follow struct {
		Add    follows.FollowCmd   `cmd:"" help:"Follow a public challenge."`
		Delete follows.UnfollowCmd `cmd:"" help:"Stop following a challenge."`
		List   follows.ListCmd     `cmd:"" help:"List followed challenges." default:"1"`
	} `cmd:"" help:"Manage followed challenges."`
	Public struct {
		List follows.PublicCmd `cmd:"" help:"List public challenges." default:"1"`
	} `cmd:"" help:"Browse public challenges."`

	Stats  challenges.StatsCmd `cmd:"" help:"Show progress and pace for a challenge."`
	Sync   queue.SyncCmd       `cmd:"" help:"Replay queued writes against the server."`
	Status queue.StatusCmd     `cmd:"" help:"Show sync status."`
	Queue  struct {
		List  queue.ListCmd  `cmd:"" help:"List queued writes." default:"1"`
		Retry queue.RetryCmd `cmd:"" help:"Reset failed writes so the next sync replays them."`
		Drop  queue.DropCmd  `cmd:"" help:"Discard a queued write."`
	} `cmd:"" help:"Inspect the write queue."`
	Backup struct {
		Create  backups.CreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.ListCmd    `cmd:"" help:"List available backups."`
		Restore backups.RestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
}

// These commands open the store themselves or never touch it
var skipLoad = map[string]bool{
	"init":    true,
	"migrate": true,
	"doctor":  true,
	"db":      true,
	"auth":    true,
	"backup":  true,
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Offline-first tracker for counting challenges"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":     "v0.1.0",
			"config_path": constants.DefaultConfigPath,
		},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		errors.Fatal(err)
	}
	if CLI.DB != "" {
		cfg.Database = config.ExpandPath(CLI.DB)
	}
	cfg.Debug = cfg.Debug || CLI.Debug

	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: config.Dir(CLI.Config)}); err != nil {
		errors.Fatal(err)
	}

	command := strings.Fields(kctx.Command())[0]
	if command == "db" {
		// set-connection has to work before the keyring holds anything
		cfg.Database = constants.DefaultDBPath
	}

	app, err := cli.New(cfg, CLI.Config)
	if err != nil {
		errors.Fatal(err)
	}
	defer app.Store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	kctx.BindTo(ctx, (*context.Context)(nil))

	if !skipLoad[command] {
		if err := app.Store.Load(ctx); err != nil {
			errors.Fatal(err)
		}
	}

	if err := kctx.Run(app); err != nil {
		app.Store.Close()
		errors.Fatal(err)
	}

	if command != "sync" {
		if err := app.WriteMetrics(""); err != nil {
			logger.Warn("Failed to write metrics", "error", err)
		}
	}
}
