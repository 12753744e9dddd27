// Package repository reconciles the local cache and mutation queue with the
// remote API. Reads fall back to the cache, writes are applied locally and
// queued whenever the server cannot confirm them, and SyncQueue replays the
// queue in order.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/julianstephens/tally/internal/api"
	"github.com/julianstephens/tally/internal/auth"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/telemetry"
)

var (
	// ErrNoToken is returned by SyncQueue when there is no token to replay with
	ErrNoToken = errors.New("not signed in: run 'tally auth login' to sync")
	// ErrSyncInProgress is returned when another drain is already running
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrUnresolvedLocalID fails a replay that references a local id whose
	// create has not been confirmed yet
	ErrUnresolvedLocalID = errors.New("references an unconfirmed local id")
	// ErrUnreadableCreate is returned when the server accepted a create but
	// its reply could not be decoded. The write is not queued again.
	ErrUnreadableCreate = errors.New("server accepted the create but its reply could not be read; list again to refresh")
)

// Remote is the server side of every operation. The token is passed per
// call so the repository owns token lookup.
type Remote interface {
	ListChallenges(ctx context.Context, token string, filter models.ChallengeFilter) ([]models.Challenge, error)
	CreateChallenge(ctx context.Context, token string, p models.ChallengePayload) (models.Challenge, error)
	UpdateChallenge(ctx context.Context, token, id string, p models.ChallengePatch) (models.Challenge, error)
	DeleteChallenge(ctx context.Context, token, id string) error

	ListEntries(ctx context.Context, token string, filter models.EntryFilter) ([]models.Entry, error)
	CreateEntry(ctx context.Context, token string, p models.EntryPayload) (models.Entry, error)
	UpdateEntry(ctx context.Context, token, id string, p models.EntryPatch) (models.Entry, error)
	DeleteEntry(ctx context.Context, token, id string) error

	ListFollowed(ctx context.Context, token string) ([]models.Followed, error)
	FollowChallenge(ctx context.Context, token string, p models.FollowPayload) (models.Followed, error)
	UnfollowChallenge(ctx context.Context, token, id string) error

	ListPublicChallenges(ctx context.Context) ([]models.Challenge, error)
}

// Store is the local state the repository owns
type Store interface {
	storage.ChallengeCache
	storage.EntryCache
	storage.FollowedCache
	storage.PublicCache
	storage.Queue
	storage.IDMap
}

// Repository is the single owner of writes to the cache and queue
type Repository struct {
	store       Store
	remote      Remote
	tokens      auth.TokenProvider
	sink        telemetry.Sink
	maxAttempts int
	lockPath    string
	now         func() time.Time
	newID       func() string

	drainMu sync.Mutex

	stateMu  sync.Mutex
	syncing  bool
	lastSync time.Time
	lastErr  error
}

// Option configures a Repository
type Option func(*Repository)

// WithSink sets where product events go. The default discards them.
func WithSink(s telemetry.Sink) Option {
	return func(r *Repository) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithMaxAttempts sets how many failed replays park an item as dead
func WithMaxAttempts(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithDrainLock guards SyncQueue across processes with a lockfile at path
func WithDrainLock(path string) Option {
	return func(r *Repository) {
		r.lockPath = path
	}
}

// WithClock replaces time.Now for timestamps on local rows and queue items
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator replaces the local id generator, mainly for tests
func WithIDGenerator(gen func() string) Option {
	return func(r *Repository) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// New builds a repository. A nil token provider means permanently offline.
func New(store Store, remote Remote, tokens auth.TokenProvider, opts ...Option) *Repository {
	if tokens == nil {
		tokens = auth.Static("")
	}
	r := &Repository{
		store:       store,
		remote:      remote,
		tokens:      tokens,
		sink:        telemetry.Nop{},
		maxAttempts: constants.DefaultMaxAttempts,
		now:         time.Now,
		newID:       models.NewLocalID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// token returns "" when offline. Provider failures are logged and read as
// offline so that reads and writes keep working.
func (r *Repository) token(ctx context.Context) string {
	tok, err := r.tokens.Token(ctx)
	if err != nil {
		logger.Warn("Token provider failed, working offline", "error", err)
		return ""
	}
	return tok
}

func (r *Repository) track(event string, props map[string]any) {
	telemetry.Safe(r.sink, event, props)
}

// resolve maps a confirmed local id to its server id. Unconfirmed local ids
// and server ids come back unchanged.
func (r *Repository) resolve(ctx context.Context, id string) (string, error) {
	if !models.IsLocalID(id) {
		return id, nil
	}
	resolved, _, err := r.store.ResolveID(ctx, id)
	return resolved, err
}

// pendingTargets is the set of ids that queued writes still target, with
// confirmed local ids resolved to their server ids
type pendingTargets struct {
	ids      map[string]bool
	deleting map[string]bool
}

func (r *Repository) pendingTargets(ctx context.Context) (pendingTargets, error) {
	items, err := r.store.ListPending(ctx)
	if err != nil {
		return pendingTargets{}, err
	}
	t := pendingTargets{ids: map[string]bool{}, deleting: map[string]bool{}}
	for _, item := range items {
		id, err := r.resolve(ctx, item.EntityID)
		if err != nil {
			return pendingTargets{}, err
		}
		t.ids[id] = true
		if item.Method == constants.MethodDelete {
			t.deleting[id] = true
		}
	}
	return t, nil
}

// hasPendingFor reports whether queued writes still target id, in which case
// a new write must queue behind them to keep their order
func (r *Repository) hasPendingFor(ctx context.Context, id string) (bool, error) {
	t, err := r.pendingTargets(ctx)
	if err != nil {
		return false, err
	}
	return t.ids[id], nil
}

// hasPendingCreate reports whether a challenge create for localID is queued
func (r *Repository) hasPendingCreate(ctx context.Context, localID string) (bool, error) {
	items, err := r.store.ListPending(ctx)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.EntityType == constants.EntityChallenge && item.Method == constants.MethodPost && item.EntityID == localID {
			return true, nil
		}
	}
	return false, nil
}

// checkChallengeRef makes sure an entry can point at challenge id: it is
// cached or its create is queued. known is false for a server id that is
// neither, which may only be sent to the server, never queued.
func (r *Repository) checkChallengeRef(ctx context.Context, id string) (known bool, err error) {
	_, err = r.store.GetChallenge(ctx, id)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if !models.IsLocalID(id) {
		return false, nil
	}
	pending, err := r.hasPendingCreate(ctx, id)
	if err != nil {
		return false, err
	}
	if !pending {
		return false, fmt.Errorf("%w: unknown challenge %s", models.ErrValidation, id)
	}
	return true, nil
}

// canReachRemote decides whether a write targeting ids goes to the server
// first. Unconfirmed local ids and ids with queued writes go straight to the
// queue.
func (r *Repository) canReachRemote(ctx context.Context, tok string, ids ...string) (bool, error) {
	if tok == "" {
		return false, nil
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if models.IsLocalID(id) {
			return false, nil
		}
		pending, err := r.hasPendingFor(ctx, id)
		if err != nil {
			return false, err
		}
		if pending {
			return false, nil
		}
	}
	return true, nil
}

// isUnreadableReply reports whether a remote call reached the server and got
// a 2xx reply that could not be decoded
func isUnreadableReply(err error) bool {
	var apiErr *api.Error
	return errors.As(err, &apiErr) && apiErr.Kind == api.KindParse && apiErr.Status >= 200 && apiErr.Status < 300
}

func ignoreNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
