// Package cli holds what every tally command shares: the run context,
// prompts and output styles. Commands live in the subpackages.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/tally/internal/api"
	"github.com/julianstephens/tally/internal/auth"
	"github.com/julianstephens/tally/internal/backup"
	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/keyring"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/repository"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/telemetry"
)

// KeyringDatabase as the database setting reads the PostgreSQL connection
// string from the OS keyring
const KeyringDatabase = "keyring"

type Context struct {
	Config     config.Config
	ConfigPath string
	Store      storage.Provider
	Remote     *api.Client
	Repo       *repository.Repository
	Tokens     auth.TokenProvider
	Metrics    *telemetry.PrometheusSink

	Out     io.Writer
	Now     func() time.Time
	Confirm func(title, description string) (bool, error)
	Secret  func(title string) (string, error)
}

// Option adjusts a Context before the repository is built
type Option func(*Context)

func WithTokens(p auth.TokenProvider) Option {
	return func(c *Context) { c.Tokens = p }
}

func WithOutput(w io.Writer) Option {
	return func(c *Context) { c.Out = w }
}

func WithClock(now func() time.Time) Option {
	return func(c *Context) { c.Now = now }
}

// WithPrompts replaces the interactive prompts, mainly for tests
func WithPrompts(confirm func(title, description string) (bool, error), secret func(title string) (string, error)) Option {
	return func(c *Context) {
		if confirm != nil {
			c.Confirm = confirm
		}
		if secret != nil {
			c.Secret = secret
		}
	}
}

// New wires the store, API client and repository for cfg. The store is not
// opened; callers Load or Init it.
func New(cfg config.Config, configPath string, opts ...Option) (*Context, error) {
	dsn, err := ResolveDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	c := &Context{
		Config:     cfg,
		ConfigPath: configPath,
		Store:      storage.New(dsn),
		Remote: api.New(cfg.APIURL,
			api.WithTimeout(cfg.Timeout),
			api.WithUserAgent(cfg.UserAgent),
		),
		Metrics: telemetry.NewPrometheusSink(),
		Out:     os.Stdout,
		Now:     time.Now,
		Confirm: confirmPrompt,
		Secret:  secretPrompt,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Tokens == nil {
		c.Tokens = DefaultTokens(c.Now)
	}

	c.Repo = repository.New(c.Store, c.Remote, c.Tokens,
		repository.WithSink(telemetry.Multi{telemetry.LogSink{}, c.Metrics}),
		repository.WithMaxAttempts(cfg.MaxAttempts),
		repository.WithDrainLock(filepath.Join(c.Dir(), constants.DrainLockfileName)),
		repository.WithClock(c.Now),
	)
	return c, nil
}

// DefaultTokens reads TALLY_TOKEN first, then the keyring. Expired JWTs read
// as no token.
func DefaultTokens(now func() time.Time) auth.TokenProvider {
	return auth.FreshOnly(auth.Chain(auth.Env(constants.TokenEnvVar), auth.Keyring()), now)
}

// ResolveDatabase turns the database setting into a DSN. PostgreSQL URLs
// must not carry a password; store those in the keyring instead.
func ResolveDatabase(database string) (string, error) {
	if database == KeyringDatabase {
		connStr, err := keyring.GetConnectionString()
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return "", errors.New("no connection string found in keyring; run 'tally db set-connection' first")
			}
			return "", fmt.Errorf("failed to read connection string from keyring: %w", err)
		}
		return connStr, nil
	}
	if storage.DialectFor(database) == storage.DialectPostgres {
		if _, err := storage.ValidateConnString(database); err != nil {
			return "", err
		}
	}
	return config.ExpandPath(database), nil
}

// Dir is where logs, backups and the sync lock live
func (c *Context) Dir() string {
	return config.Dir(c.ConfigPath)
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}

// Backups returns the backup manager for a SQLite store, nil for PostgreSQL
func (c *Context) Backups() *backup.Manager {
	if c.Store.Dialect() != storage.DialectSQLite {
		return nil
	}
	return backup.NewManager(c.Store.GetConfigPath(), backup.WithClock(c.Now))
}

// PerformAutomaticBackup snapshots the database before a risky operation.
// Failures are logged and never interrupt the command.
func (c *Context) PerformAutomaticBackup(ctx context.Context) {
	mgr := c.Backups()
	if mgr == nil {
		return
	}
	if _, err := mgr.CreateBackup(ctx); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// WriteMetrics exports the counters collected during this run to path.
// An empty path falls back to the configured metrics file.
func (c *Context) WriteMetrics(path string) error {
	if path == "" {
		path = c.Config.MetricsFile
	}
	if path == "" {
		return nil
	}
	return c.Metrics.WriteTextfile(config.ExpandPath(path))
}

// ConfirmOrSkip asks for confirmation unless yes is already set
func (c *Context) ConfirmOrSkip(yes bool, title, description string) (bool, error) {
	if yes {
		return true, nil
	}
	return c.Confirm(title, description)
}

// ParseSets parses a comma separated list of per-set counts
func ParseSets(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var sets []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid set count %q: %w", part, err)
		}
		sets = append(sets, n)
	}
	return sets, nil
}
