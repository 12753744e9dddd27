package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/tally/internal/api"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/storage"
	"github.com/julianstephens/tally/internal/telemetry"
)

// ListChallenges returns the cached challenges matching filter, refreshed
// from the server first when signed in. Remote failures are not errors.
// Rows with queued writes keep their local state until the queue drains.
func (r *Repository) ListChallenges(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, error) {
	local, err := r.store.ListChallenges(ctx, filter)
	if err != nil {
		return nil, err
	}
	tok := r.token(ctx)
	if tok == "" {
		return local, nil
	}

	remote, err := r.remote.ListChallenges(ctx, tok, filter)
	if err != nil {
		logger.Debug("Listing challenges from cache", "error", err)
		return local, nil
	}
	pending, err := r.pendingTargets(ctx)
	if err != nil {
		return nil, err
	}
	fresh := remote[:0]
	for _, c := range remote {
		if !pending.ids[c.ID] {
			fresh = append(fresh, c)
		}
	}
	if err := r.store.UpsertChallenges(ctx, fresh); err != nil {
		return nil, err
	}
	return r.store.ListChallenges(ctx, filter)
}

// GetChallenge reads one challenge from the cache
func (r *Repository) GetChallenge(ctx context.Context, id string) (models.Challenge, error) {
	resolved, err := r.resolve(ctx, id)
	if err != nil {
		return models.Challenge{}, err
	}
	return r.store.GetChallenge(ctx, resolved)
}

// ListPublicChallenges needs no token. The last successful listing is kept
// as a snapshot and returned when the server is unreachable.
func (r *Repository) ListPublicChallenges(ctx context.Context) ([]models.Challenge, error) {
	remote, err := r.remote.ListPublicChallenges(ctx)
	if err != nil {
		logger.Debug("Listing public challenges from snapshot", "error", err)
		return r.store.ListPublicChallenges(ctx)
	}
	if err := r.store.ReplacePublicChallenges(ctx, remote); err != nil {
		return nil, err
	}
	return r.store.ListPublicChallenges(ctx)
}

// CreateChallenge validates p and creates it on the server, or locally under
// a fresh local id when the server cannot confirm it.
func (r *Repository) CreateChallenge(ctx context.Context, p models.ChallengePayload) (WriteResult[models.Challenge], error) {
	p, err := p.Normalize(r.now())
	if err != nil {
		return WriteResult[models.Challenge]{}, err
	}

	var cause error
	if tok := r.token(ctx); tok != "" {
		created, err := r.remote.CreateChallenge(ctx, tok, p)
		if err == nil {
			if err := r.store.UpsertChallenges(ctx, []models.Challenge{created}); err != nil {
				return WriteResult[models.Challenge]{}, err
			}
			r.track(telemetry.EventChallengeCreated, challengeProps(created))
			return confirmed(created), nil
		}
		if isUnreadableReply(err) {
			return WriteResult[models.Challenge]{}, fmt.Errorf("%w: %w", ErrUnreadableCreate, err)
		}
		logger.Info("Queueing challenge create", "error", err)
		cause = err
	}

	local := models.NewChallenge(r.newID(), p, r.now())
	if err := r.store.UpsertChallenges(ctx, []models.Challenge{local}); err != nil {
		return WriteResult[models.Challenge]{}, err
	}
	item, err := r.enqueue(ctx, CreateChallenge{LocalID: local.ID, Payload: p})
	if err != nil {
		return WriteResult[models.Challenge]{}, err
	}
	return queued(local, item.ID, cause), nil
}

// UpdateChallenge applies patch to challenge id
func (r *Repository) UpdateChallenge(ctx context.Context, id string, patch models.ChallengePatch) (WriteResult[models.Challenge], error) {
	return r.updateChallenge(ctx, id, patch, telemetry.EventChallengeUpdated)
}

// ArchiveChallenge sets or clears the archived flag
func (r *Repository) ArchiveChallenge(ctx context.Context, id string, archived bool) (WriteResult[models.Challenge], error) {
	return r.updateChallenge(ctx, id, models.ChallengePatch{Archived: &archived}, telemetry.EventChallengeArchived)
}

func (r *Repository) updateChallenge(ctx context.Context, id string, patch models.ChallengePatch, event string) (WriteResult[models.Challenge], error) {
	if patch.IsEmpty() {
		return WriteResult[models.Challenge]{}, fmt.Errorf("%w: nothing to update", models.ErrValidation)
	}
	if err := patch.Validate(); err != nil {
		return WriteResult[models.Challenge]{}, err
	}
	id, err := r.resolve(ctx, id)
	if err != nil {
		return WriteResult[models.Challenge]{}, err
	}

	cached, cacheErr := r.store.GetChallenge(ctx, id)
	if cacheErr != nil && !errors.Is(cacheErr, storage.ErrNotFound) {
		return WriteResult[models.Challenge]{}, cacheErr
	}
	if cacheErr == nil {
		if err := cached.Apply(patch).ValidateTimeframe(); err != nil {
			return WriteResult[models.Challenge]{}, err
		}
	}

	var cause error
	tok := r.token(ctx)
	online, err := r.canReachRemote(ctx, tok, id)
	if err != nil {
		return WriteResult[models.Challenge]{}, err
	}
	if online {
		updated, err := r.remote.UpdateChallenge(ctx, tok, id, patch)
		if err == nil {
			if err := r.store.UpsertChallenges(ctx, []models.Challenge{updated}); err != nil {
				return WriteResult[models.Challenge]{}, err
			}
			props := challengeProps(updated)
			props["fields"] = challengePatchFields(patch)
			r.track(event, props)
			return confirmed(updated), nil
		}
		logger.Info("Queueing challenge update", "id", id, "error", err)
		cause = err
	}

	local := models.Challenge{ID: id}.Apply(patch)
	if cacheErr == nil {
		local = cached.Apply(patch)
		if err := r.store.UpsertChallenges(ctx, []models.Challenge{local}); err != nil {
			return WriteResult[models.Challenge]{}, err
		}
	}
	item, err := r.enqueue(ctx, UpdateChallenge{ID: id, Patch: patch})
	if err != nil {
		return WriteResult[models.Challenge]{}, err
	}
	return queued(local, item.ID, cause), nil
}

// DeleteChallenge removes a challenge and its cached entries. The result
// value is the id that was deleted.
func (r *Repository) DeleteChallenge(ctx context.Context, id string) (WriteResult[string], error) {
	id, err := r.resolve(ctx, id)
	if err != nil {
		return WriteResult[string]{}, err
	}

	var cause error
	tok := r.token(ctx)
	online, err := r.canReachRemote(ctx, tok, id)
	if err != nil {
		return WriteResult[string]{}, err
	}
	if online {
		err := r.remote.DeleteChallenge(ctx, tok, id)
		if err == nil || errors.Is(err, api.ErrNotFound) {
			if err := r.dropChallenge(ctx, id); err != nil {
				return WriteResult[string]{}, err
			}
			r.track(telemetry.EventChallengeDeleted, map[string]any{"challengeId": id})
			return confirmed(id), nil
		}
		logger.Info("Queueing challenge delete", "id", id, "error", err)
		cause = err
	}

	if err := r.dropChallenge(ctx, id); err != nil {
		return WriteResult[string]{}, err
	}
	item, err := r.enqueue(ctx, DeleteChallenge{ID: id})
	if err != nil {
		return WriteResult[string]{}, err
	}
	return queued(id, item.ID, cause), nil
}

func (r *Repository) dropChallenge(ctx context.Context, id string) error {
	if err := ignoreNotFound(r.store.DeleteChallenge(ctx, id)); err != nil {
		return err
	}
	return r.store.DeleteEntriesForChallenge(ctx, id)
}

func (r *Repository) enqueue(ctx context.Context, m Mutation) (models.QueueItem, error) {
	item, err := Encode(m)
	if err != nil {
		return models.QueueItem{}, err
	}
	item.CreatedAt = r.now()
	stored, err := r.store.Enqueue(ctx, item)
	if err != nil {
		return models.QueueItem{}, err
	}
	logger.Debug("Queued mutation", "id", stored.ID, "method", stored.Method, "entity", stored.EntityType, "target", stored.EntityID)
	return stored, nil
}

func challengeProps(c models.Challenge) map[string]any {
	return map[string]any{
		"challengeId":   c.ID,
		"target":        c.Target,
		"timeframeUnit": string(c.TimeframeUnit),
		"isPublic":      c.IsPublic,
		"archived":      c.Archived,
	}
}

func challengePatchFields(p models.ChallengePatch) []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Name != nil, "name")
	add(p.Target != nil, "target")
	add(p.Color != nil, "color")
	add(p.Icon != nil, "icon")
	add(p.TimeframeUnit != nil, "timeframeUnit")
	add(p.StartDate != nil, "startDate")
	add(p.EndDate != nil, "endDate")
	add(p.Year != nil, "year")
	add(p.IsPublic != nil, "isPublic")
	add(p.Archived != nil, "archived")
	return fields
}
