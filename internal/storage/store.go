package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/migration"
	"github.com/julianstephens/tally/migrations"
)

var errNotLoaded = errors.New("storage not loaded, call Init or Load first")

// SQLStore is the local cache and mutation queue on top of database/sql.
// SQLite is the default; a PostgreSQL DSN selects the postgres dialect.
type SQLStore struct {
	dsn     string
	dialect Dialect
	db      *sql.DB
	now     func() time.Time
}

var _ Provider = (*SQLStore)(nil)

// New creates a store for the given SQLite path or PostgreSQL DSN. Nothing is
// opened until Init or Load.
func New(dsn string) *SQLStore {
	s := &SQLStore{
		dsn:     dsn,
		dialect: DialectFor(dsn),
		now:     time.Now,
	}
	if s.dialect == DialectPostgres {
		s.dsn = ensureSearchPath(dsn)
	}
	return s
}

// Init creates the database if needed and applies all migrations
func (s *SQLStore) Init(ctx context.Context) error {
	if s.dialect == DialectSQLite {
		dir := filepath.Dir(s.dsn)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := s.open(ctx); err != nil {
		return err
	}

	if s.dialect == DialectPostgres {
		if _, err := s.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.PostgresSchemaName); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if _, err := s.Migrate(ctx, func(msg string) { logger.Info(msg) }); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Load opens an initialized database and checks its schema version
func (s *SQLStore) Load(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	if s.dialect == DialectSQLite {
		if _, err := os.Stat(s.dsn); os.IsNotExist(err) {
			return fmt.Errorf("storage not initialized, run 'tally init' first")
		}
	}

	if err := s.open(ctx); err != nil {
		return err
	}

	runner, err := s.runner()
	if err != nil {
		return err
	}
	return runner.ValidateVersion(ctx)
}

// Migrate applies pending migrations and returns how many ran
func (s *SQLStore) Migrate(ctx context.Context, logFn func(string)) (int, error) {
	if s.db == nil {
		if err := s.open(ctx); err != nil {
			return 0, err
		}
	}
	runner, err := s.runner()
	if err != nil {
		return 0, err
	}
	return runner.ApplyMigrations(ctx, logFn)
}

// Ping checks that the database answers a trivial query
func (s *SQLStore) Ping(ctx context.Context) error {
	var one int
	if err := s.scanOne(ctx, "SELECT 1", nil, &one); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied and the latest known migration versions
func (s *SQLStore) SchemaVersion(ctx context.Context) (current, latest int, err error) {
	if s.db == nil {
		return 0, 0, errNotLoaded
	}
	runner, err := s.runner()
	if err != nil {
		return 0, 0, err
	}
	if current, err = runner.GetCurrentVersion(ctx); err != nil {
		return 0, 0, err
	}
	if latest, err = runner.GetLatestVersion(); err != nil {
		return 0, 0, err
	}
	return current, latest, nil
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// GetConfigPath returns the SQLite path, or a non-sensitive label for PostgreSQL
func (s *SQLStore) GetConfigPath() string {
	if s.dialect == DialectPostgres {
		return "postgresql"
	}
	return s.dsn
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// DB returns the underlying connection, nil before Init or Load
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) open(ctx context.Context) error {
	db, err := sql.Open(s.dialect.driverName(), s.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	switch s.dialect {
	case DialectSQLite:
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return fmt.Errorf("failed to apply pragmas: %w", err)
		}
	case DialectPostgres:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(s.dsn) {
				return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
			}
			return fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	s.db = db
	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", constants.SQLiteBusyTimeoutMs),
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLStore) runner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, string(s.dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to access %s migrations: %w", s.dialect, err)
	}
	return migration.NewRunner(s.db, subFS, migration.WithPlaceholder(s.dialect.placeholder)), nil
}

// exec runs a write with ?-placeholders rebound for the dialect
func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.db == nil {
		return nil, errNotLoaded
	}
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.db == nil {
		return nil, errNotLoaded
	}
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

// scanOne runs a single-row query and scans it, mapping sql.ErrNoRows to ErrNotFound
func (s *SQLStore) scanOne(ctx context.Context, query string, args []any, dest ...any) error {
	if s.db == nil {
		return errNotLoaded
	}
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// withTx runs fn in a transaction; the tx helpers rebind like exec
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return errNotLoaded
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) txExec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	return tx.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}

func checkAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
