package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/api"
	"github.com/julianstephens/tally/internal/auth"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/telemetry"
)

// fakeRemote is an in-memory server. errs fails every call to an operation
// until cleared; hook runs at the start of every call.
type fakeRemote struct {
	mu         sync.Mutex
	seq        int
	challenges map[string]models.Challenge
	entries    map[string]models.Entry
	followed   map[string]models.Followed
	public     []models.Challenge
	errs       map[string]error
	calls      []string
	hook       func(op string)

	createdEntries []models.EntryPayload
	updatedIDs     []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		challenges: map[string]models.Challenge{},
		entries:    map[string]models.Entry{},
		followed:   map[string]models.Followed{},
		errs:       map[string]error{},
	}
}

func (f *fakeRemote) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

func (f *fakeRemote) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// enter records the call and returns the injected error for op, if any.
// It must be called without f.mu held.
func (f *fakeRemote) enter(op string) error {
	f.mu.Lock()
	hook := f.hook
	f.calls = append(f.calls, op)
	err := f.errs[op]
	f.mu.Unlock()
	if hook != nil {
		hook(op)
	}
	return err
}

func (f *fakeRemote) nextID() string {
	f.seq++
	return fmt.Sprintf("srv_%d", f.seq)
}

func (f *fakeRemote) ListChallenges(_ context.Context, _ string, filter models.ChallengeFilter) ([]models.Challenge, error) {
	if err := f.enter("ListChallenges"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Challenge
	for _, c := range f.challenges {
		if filter.Active != nil && c.Archived == *filter.Active {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRemote) CreateChallenge(_ context.Context, _ string, p models.ChallengePayload) (models.Challenge, error) {
	if err := f.enter("CreateChallenge"); err != nil {
		return models.Challenge{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := models.NewChallenge(f.nextID(), p, testNow)
	f.challenges[c.ID] = c
	return c, nil
}

func (f *fakeRemote) UpdateChallenge(_ context.Context, _ string, id string, p models.ChallengePatch) (models.Challenge, error) {
	if err := f.enter("UpdateChallenge"); err != nil {
		return models.Challenge{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return models.Challenge{}, &api.Error{Kind: api.KindNotFound, Status: 404}
	}
	c = c.Apply(p)
	f.challenges[id] = c
	f.updatedIDs = append(f.updatedIDs, id)
	return c, nil
}

func (f *fakeRemote) DeleteChallenge(_ context.Context, _ string, id string) error {
	if err := f.enter("DeleteChallenge"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.challenges[id]; !ok {
		return &api.Error{Kind: api.KindNotFound, Status: 404}
	}
	delete(f.challenges, id)
	return nil
}

func (f *fakeRemote) ListEntries(_ context.Context, _ string, filter models.EntryFilter) ([]models.Entry, error) {
	if err := f.enter("ListEntries"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Entry
	for _, e := range f.entries {
		if filter.ChallengeID != "" && e.ChallengeID != filter.ChallengeID {
			continue
		}
		if filter.Date != "" && e.Date != filter.Date {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRemote) CreateEntry(_ context.Context, _ string, p models.EntryPayload) (models.Entry, error) {
	if err := f.enter("CreateEntry"); err != nil {
		return models.Entry{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.challenges[p.ChallengeID]; !ok {
		return models.Entry{}, &api.Error{Kind: api.KindBadRequest, Status: 400, Message: "unknown challenge"}
	}
	e := models.NewEntry(f.nextID(), p, testNow)
	f.entries[e.ID] = e
	f.createdEntries = append(f.createdEntries, p)
	return e, nil
}

func (f *fakeRemote) UpdateEntry(_ context.Context, _ string, id string, p models.EntryPatch) (models.Entry, error) {
	if err := f.enter("UpdateEntry"); err != nil {
		return models.Entry{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return models.Entry{}, &api.Error{Kind: api.KindNotFound, Status: 404}
	}
	e = e.Apply(p)
	f.entries[id] = e
	return e, nil
}

func (f *fakeRemote) DeleteEntry(_ context.Context, _ string, id string) error {
	if err := f.enter("DeleteEntry"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[id]; !ok {
		return &api.Error{Kind: api.KindNotFound, Status: 404}
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeRemote) ListFollowed(context.Context, string) ([]models.Followed, error) {
	if err := f.enter("ListFollowed"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Followed
	for _, fl := range f.followed {
		out = append(out, fl)
	}
	return out, nil
}

func (f *fakeRemote) FollowChallenge(_ context.Context, _ string, p models.FollowPayload) (models.Followed, error) {
	if err := f.enter("FollowChallenge"); err != nil {
		return models.Followed{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fl := models.NewFollowed(f.nextID(), p, testNow)
	f.followed[fl.ID] = fl
	return fl, nil
}

func (f *fakeRemote) UnfollowChallenge(_ context.Context, _ string, id string) error {
	if err := f.enter("UnfollowChallenge"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.followed[id]; !ok {
		return &api.Error{Kind: api.KindNotFound, Status: 404}
	}
	delete(f.followed, id)
	return nil
}

func (f *fakeRemote) ListPublicChallenges(context.Context) ([]models.Challenge, error) {
	if err := f.enter("ListPublicChallenges"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Challenge(nil), f.public...), nil
}

// tokenBox is a token provider tests can switch on and off
type tokenBox struct {
	mu  sync.Mutex
	tok string
}

func (b *tokenBox) set(tok string) {
	b.mu.Lock()
	b.tok = tok
	b.mu.Unlock()
}

func (b *tokenBox) Token(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tok, nil
}

var _ auth.TokenProvider = (*tokenBox)(nil)

// recordingSink keeps every tracked event
type recordingSink struct {
	mu     sync.Mutex
	events []string
	props  []map[string]any
}

func (s *recordingSink) Track(event string, props map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.props = append(s.props, props)
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

var _ telemetry.Sink = (*recordingSink)(nil)

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

var (
	networkDown = &api.Error{Kind: api.KindNetwork, Message: "connection refused"}
	serverDown  = &api.Error{Kind: api.KindServerError, Status: 503, Message: "service unavailable"}
)

type harness struct {
	repo   *Repository
	store  *storage.SQLStore
	remote *fakeRemote
	tokens *tokenBox
	sink   *recordingSink
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store := storage.New(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		store:  store,
		remote: newFakeRemote(),
		tokens: &tokenBox{},
		sink:   &recordingSink{},
	}

	n := 0
	base := []Option{
		WithSink(h.sink),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("%s%d", constants.LocalIDPrefix, n)
		}),
	}
	h.repo = New(store, h.remote, h.tokens, append(base, opts...)...)
	return h
}

func (h *harness) pending(t *testing.T) []models.QueueItem {
	t.Helper()
	items, err := h.store.ListPending(context.Background())
	require.NoError(t, err)
	return items
}

func pushups() models.ChallengePayload {
	return models.ChallengePayload{
		Name:          "Pushups",
		Target:        10000,
		Color:         "#ff0000",
		Icon:          "dumbbell",
		TimeframeUnit: constants.TimeframeYear,
		Year:          2025,
	}
}
