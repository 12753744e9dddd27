package storage

import (
	"context"
	"errors"

	"github.com/julianstephens/tally/internal/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// ChallengeCache holds the last-known state of the user's challenges
type ChallengeCache interface {
	UpsertChallenges(ctx context.Context, challenges []models.Challenge) error
	ListChallenges(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, error)
	GetChallenge(ctx context.Context, id string) (models.Challenge, error)
	DeleteChallenge(ctx context.Context, id string) error
}

// EntryCache holds the last-known state of entries
type EntryCache interface {
	UpsertEntries(ctx context.Context, entries []models.Entry) error
	ListEntries(ctx context.Context, filter models.EntryFilter) ([]models.Entry, error)
	GetEntry(ctx context.Context, id string) (models.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	DeleteEntriesForChallenge(ctx context.Context, challengeID string) error
	// RepointEntries moves entries from one challenge id to another
	RepointEntries(ctx context.Context, fromChallengeID, toChallengeID string) error
}

// FollowedCache holds the last-known state of follows
type FollowedCache interface {
	UpsertFollowed(ctx context.Context, followed []models.Followed) error
	ListFollowed(ctx context.Context) ([]models.Followed, error)
	DeleteFollowed(ctx context.Context, id string) error
	RepointFollowed(ctx context.Context, fromChallengeID, toChallengeID string) error
}

// PublicCache holds the last fetched snapshot of public challenges
type PublicCache interface {
	ReplacePublicChallenges(ctx context.Context, challenges []models.Challenge) error
	ListPublicChallenges(ctx context.Context) ([]models.Challenge, error)
}

// Queue is the durable FIFO of writes waiting for server confirmation
type Queue interface {
	Enqueue(ctx context.Context, item models.QueueItem) (models.QueueItem, error)
	// ListQueue returns every item, dead ones included, in insertion order
	ListQueue(ctx context.Context) ([]models.QueueItem, error)
	// ListPending returns the items a drain should replay, in insertion order
	ListPending(ctx context.Context) ([]models.QueueItem, error)
	GetQueueItem(ctx context.Context, id string) (models.QueueItem, error)
	DeleteQueueItem(ctx context.Context, id string) error
	IncrementAttempts(ctx context.Context, id string, lastError string) error
	MarkDead(ctx context.Context, id string, lastError string) error
	ResetQueueItem(ctx context.Context, id string) error
	QueueStats(ctx context.Context) (models.QueueStats, error)
}

// IDMap remembers which server id each confirmed local id became
type IDMap interface {
	PutIDMapping(ctx context.Context, mapping models.IDMapping) error
	// ResolveID returns the server id for a local id, or id itself when unmapped
	ResolveID(ctx context.Context, id string) (string, bool, error)
}

// Provider is a complete local store
type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Migrate(ctx context.Context, logFn func(string)) (int, error)
	Close() error

	ChallengeCache
	EntryCache
	FollowedCache
	PublicCache
	Queue
	IDMap

	// Utils
	GetConfigPath() string
	Dialect() Dialect
}
