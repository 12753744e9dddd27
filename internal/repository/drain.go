package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/tally/internal/api"
	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/lockfile"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/telemetry"
)

// errUndecodable marks a stored payload that can never be replayed
var errUndecodable = errors.New("undecodable queue item")

// SyncQueue replays pending queue items in insertion order and returns how
// many were confirmed. Failed items stay queued with attempts+1 unless they
// failed permanently or ran out of attempts, in which case they are parked
// as dead. A network or auth failure stops the drain without charging any
// item. Only one drain runs at a time.
func (r *Repository) SyncQueue(ctx context.Context) (int, error) {
	if !r.drainMu.TryLock() {
		return 0, ErrSyncInProgress
	}
	defer r.drainMu.Unlock()

	tok := r.token(ctx)
	if tok == "" {
		return 0, ErrNoToken
	}

	if r.lockPath != "" {
		lock, err := lockfile.Acquire(r.lockPath)
		if errors.Is(err, lockfile.ErrLocked) {
			return 0, ErrSyncInProgress
		}
		if err != nil {
			return 0, fmt.Errorf("failed to acquire sync lock: %w", err)
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("Failed to release sync lock", "path", r.lockPath, "error", err)
			}
		}()
	}

	r.setSyncing(true)
	synced, err := r.drain(ctx, tok)
	r.finishSync(err)
	return synced, err
}

func (r *Repository) drain(ctx context.Context, tok string) (int, error) {
	items, err := r.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	logger.Debug("Draining queue", "pending", len(items))

	synced := 0
	var lastFailure error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return synced, err
		}

		replayErr := r.replay(ctx, tok, item)
		if replayErr == nil {
			if err := r.store.DeleteQueueItem(ctx, item.ID); err != nil {
				return synced, err
			}
			synced++
			r.track(telemetry.EventQueueItemSynced, queueProps(item))
			continue
		}

		lastFailure = replayErr
		if haltsDrain(replayErr) {
			// Nothing later in the queue can succeed either, and none of it
			// should be charged an attempt for it
			logger.Info("Stopping queue drain", "id", item.ID, "error", replayErr)
			break
		}
		if err := r.recordFailure(ctx, item, replayErr); err != nil {
			return synced, err
		}
	}

	if lastFailure != nil {
		logger.Info("Queue drain finished with failures", "synced", synced, "lastError", lastFailure)
	} else {
		logger.Info("Queue drain finished", "synced", synced)
	}
	r.stateMu.Lock()
	r.lastErr = lastFailure
	r.stateMu.Unlock()
	return synced, nil
}

func (r *Repository) replay(ctx context.Context, tok string, item models.QueueItem) error {
	m, err := Decode(item)
	if err != nil {
		return fmt.Errorf("%w: %w", errUndecodable, err)
	}
	return m.Accept(&replayer{r: r, ctx: ctx, tok: tok})
}

// recordFailure bumps the attempt counter or parks the item
func (r *Repository) recordFailure(ctx context.Context, item models.QueueItem, cause error) error {
	msg := cause.Error()
	if isPermanent(item, cause) || item.Attempts+1 >= r.maxAttempts {
		logger.Warn("Parking queue item", "id", item.ID, "entity", item.EntityType, "method", item.Method,
			"attempts", item.Attempts+1, "error", cause)
		if err := r.store.MarkDead(ctx, item.ID, msg); err != nil {
			return err
		}
		props := queueProps(item)
		props["error"] = msg
		r.track(telemetry.EventQueueItemDead, props)
		return nil
	}
	logger.Debug("Queue item failed, will retry", "id", item.ID, "attempts", item.Attempts+1, "error", cause)
	return r.store.IncrementAttempts(ctx, item.ID, msg)
}

// haltsDrain reports whether err means the server cannot be used at all
// right now, as opposed to rejecting one item
func haltsDrain(err error) bool {
	return errors.Is(err, api.ErrNetwork) || errors.Is(err, api.ErrUnauthorized)
}

// isPermanent reports whether replaying item again cannot succeed
func isPermanent(item models.QueueItem, err error) bool {
	if errors.Is(err, errUndecodable) {
		return true
	}
	// Other local errors are transient, e.g. a dependent item waiting for
	// its parent create
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Kind {
	case api.KindBadRequest, api.KindForbidden, api.KindConflict, api.KindParse:
		return true
	case api.KindNotFound:
		return item.Method != constants.MethodDelete
	default:
		return false
	}
}

func queueProps(item models.QueueItem) map[string]any {
	return map[string]any{
		"queueItemId": item.ID,
		"entityType":  string(item.EntityType),
		"method":      string(item.Method),
		"attempts":    item.Attempts,
	}
}

// replayer sends one decoded mutation to the server and reconciles the cache
// with the answer
type replayer struct {
	r   *Repository
	ctx context.Context
	tok string
}

// resolveRef maps id through the id map. A local id that is still unmapped
// cannot be sent to the server.
func (p *replayer) resolveRef(id string) (string, error) {
	resolved, err := p.r.resolve(p.ctx, id)
	if err != nil {
		return "", err
	}
	if models.IsLocalID(resolved) {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedLocalID, resolved)
	}
	return resolved, nil
}

// confirmCreate records that localID became serverID. Cache bookkeeping
// failures are logged; the server already holds the write.
func (p *replayer) confirmCreate(entity constants.EntityType, localID, serverID string, swap func() error) {
	mapping := models.IDMapping{
		LocalID:    localID,
		ServerID:   serverID,
		EntityType: entity,
		ResolvedAt: p.r.now(),
	}
	if err := p.r.store.PutIDMapping(p.ctx, mapping); err != nil {
		logger.Error("Failed to record id mapping", "localId", localID, "serverId", serverID, "error", err)
	}
	if err := swap(); err != nil {
		logger.Error("Failed to replace local cache row", "localId", localID, "serverId", serverID, "error", err)
	}
}

func (p *replayer) VisitCreateChallenge(m CreateChallenge) error {
	created, err := p.r.remote.CreateChallenge(p.ctx, p.tok, m.Payload)
	if err != nil {
		return err
	}
	p.confirmCreate(constants.EntityChallenge, m.LocalID, created.ID, func() error {
		if err := ignoreNotFound(p.r.store.DeleteChallenge(p.ctx, m.LocalID)); err != nil {
			return err
		}
		if err := p.r.store.UpsertChallenges(p.ctx, []models.Challenge{created}); err != nil {
			return err
		}
		if err := p.r.store.RepointEntries(p.ctx, m.LocalID, created.ID); err != nil {
			return err
		}
		return p.r.store.RepointFollowed(p.ctx, m.LocalID, created.ID)
	})
	return nil
}

func (p *replayer) VisitUpdateChallenge(m UpdateChallenge) error {
	id, err := p.resolveRef(m.ID)
	if err != nil {
		return err
	}
	updated, err := p.r.remote.UpdateChallenge(p.ctx, p.tok, id, m.Patch)
	if err != nil {
		return err
	}
	if err := p.r.store.UpsertChallenges(p.ctx, []models.Challenge{updated}); err != nil {
		logger.Error("Failed to cache replayed challenge update", "id", id, "error", err)
	}
	return nil
}

func (p *replayer) VisitDeleteChallenge(m DeleteChallenge) error {
	id, err := p.resolveRef(m.ID)
	if err != nil {
		return err
	}
	if err := p.r.remote.DeleteChallenge(p.ctx, p.tok, id); err != nil && !errors.Is(err, api.ErrNotFound) {
		return err
	}
	if err := p.r.dropChallenge(p.ctx, id); err != nil {
		logger.Error("Failed to drop replayed challenge delete", "id", id, "error", err)
	}
	return nil
}

func (p *replayer) VisitCreateEntry(m CreateEntry) error {
	payload := m.Payload
	challengeID, err := p.resolveRef(payload.ChallengeID)
	if err != nil {
		return err
	}
	payload.ChallengeID = challengeID

	created, err := p.r.remote.CreateEntry(p.ctx, p.tok, payload)
	if err != nil {
		return err
	}
	p.confirmCreate(constants.EntityEntry, m.LocalID, created.ID, func() error {
		if err := ignoreNotFound(p.r.store.DeleteEntry(p.ctx, m.LocalID)); err != nil {
			return err
		}
		return p.r.store.UpsertEntries(p.ctx, []models.Entry{created})
	})
	return nil
}

func (p *replayer) VisitUpdateEntry(m UpdateEntry) error {
	id, err := p.resolveRef(m.ID)
	if err != nil {
		return err
	}
	updated, err := p.r.remote.UpdateEntry(p.ctx, p.tok, id, m.Patch)
	if err != nil {
		return err
	}
	if err := p.r.store.UpsertEntries(p.ctx, []models.Entry{updated}); err != nil {
		logger.Error("Failed to cache replayed entry update", "id", id, "error", err)
	}
	return nil
}

func (p *replayer) VisitDeleteEntry(m DeleteEntry) error {
	id, err := p.resolveRef(m.ID)
	if err != nil {
		return err
	}
	if err := p.r.remote.DeleteEntry(p.ctx, p.tok, id); err != nil && !errors.Is(err, api.ErrNotFound) {
		return err
	}
	if err := ignoreNotFound(p.r.store.DeleteEntry(p.ctx, id)); err != nil {
		logger.Error("Failed to drop replayed entry delete", "id", id, "error", err)
	}
	return nil
}

func (p *replayer) VisitCreateFollowed(m CreateFollowed) error {
	payload := m.Payload
	challengeID, err := p.resolveRef(payload.ChallengeID)
	if err != nil {
		return err
	}
	payload.ChallengeID = challengeID

	created, err := p.r.remote.FollowChallenge(p.ctx, p.tok, payload)
	if err != nil {
		return err
	}
	p.confirmCreate(constants.EntityFollowed, m.LocalID, created.ID, func() error {
		if err := ignoreNotFound(p.r.store.DeleteFollowed(p.ctx, m.LocalID)); err != nil {
			return err
		}
		return p.r.store.UpsertFollowed(p.ctx, []models.Followed{created})
	})
	return nil
}

func (p *replayer) VisitDeleteFollowed(m DeleteFollowed) error {
	id, err := p.resolveRef(m.ID)
	if err != nil {
		return err
	}
	if err := p.r.remote.UnfollowChallenge(p.ctx, p.tok, id); err != nil && !errors.Is(err, api.ErrNotFound) {
		return err
	}
	if err := ignoreNotFound(p.r.store.DeleteFollowed(p.ctx, id)); err != nil {
		logger.Error("Failed to drop replayed unfollow", "id", id, "error", err)
	}
	return nil
}
