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

// ListEntries returns cached entries matching filter, refreshed from the
// server first when signed in
func (r *Repository) ListEntries(ctx context.Context, filter models.EntryFilter) ([]models.Entry, error) {
	if filter.ChallengeID != "" {
		resolved, err := r.resolve(ctx, filter.ChallengeID)
		if err != nil {
			return nil, err
		}
		filter.ChallengeID = resolved
	}

	local, err := r.store.ListEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	tok := r.token(ctx)
	if tok == "" || models.IsLocalID(filter.ChallengeID) {
		return local, nil
	}

	remote, err := r.remote.ListEntries(ctx, tok, filter)
	if err != nil {
		logger.Debug("Listing entries from cache", "error", err)
		return local, nil
	}
	pending, err := r.pendingTargets(ctx)
	if err != nil {
		return nil, err
	}
	fresh := remote[:0]
	for _, e := range remote {
		if !pending.ids[e.ID] && !pending.deleting[e.ChallengeID] {
			fresh = append(fresh, e)
		}
	}
	if err := r.store.UpsertEntries(ctx, fresh); err != nil {
		return nil, err
	}
	return r.store.ListEntries(ctx, filter)
}

// CreateEntry logs a count against a challenge. The challenge must be cached
// or have its create queued; an entry for a challenge that only exists
// locally is queued behind that create.
func (r *Repository) CreateEntry(ctx context.Context, p models.EntryPayload) (WriteResult[models.Entry], error) {
	p, err := models.NormalizeEntryPayload(p)
	if err != nil {
		return WriteResult[models.Entry]{}, err
	}
	if p.ChallengeID, err = r.resolve(ctx, p.ChallengeID); err != nil {
		return WriteResult[models.Entry]{}, err
	}

	known, err := r.checkChallengeRef(ctx, p.ChallengeID)
	if err != nil {
		return WriteResult[models.Entry]{}, err
	}

	var cause error
	tok := r.token(ctx)
	online, err := r.canReachRemote(ctx, tok, p.ChallengeID)
	if err != nil {
		return WriteResult[models.Entry]{}, err
	}
	if !online && !known {
		return WriteResult[models.Entry]{}, fmt.Errorf("%w: unknown challenge %s", models.ErrValidation, p.ChallengeID)
	}
	if online {
		created, err := r.remote.CreateEntry(ctx, tok, p)
		if err == nil {
			if err := r.store.UpsertEntries(ctx, []models.Entry{created}); err != nil {
				return WriteResult[models.Entry]{}, err
			}
			r.track(telemetry.EventEntryCreated, entryProps(created))
			return confirmed(created), nil
		}
		if isUnreadableReply(err) {
			return WriteResult[models.Entry]{}, fmt.Errorf("%w: %w", ErrUnreadableCreate, err)
		}
		if !known {
			// Only the server can vouch for a challenge the cache has never seen
			return WriteResult[models.Entry]{}, fmt.Errorf("failed to create entry for uncached challenge %s: %w", p.ChallengeID, err)
		}
		logger.Info("Queueing entry create", "challengeId", p.ChallengeID, "error", err)
		cause = err
	}

	local := models.NewEntry(r.newID(), p, r.now())
	if err := r.store.UpsertEntries(ctx, []models.Entry{local}); err != nil {
		return WriteResult[models.Entry]{}, err
	}
	item, err := r.enqueue(ctx, CreateEntry{LocalID: local.ID, Payload: p})
	if err != nil {
		return WriteResult[models.Entry]{}, err
	}
	return queued(local, item.ID, cause), nil
}

// UpdateEntry applies patch to entry id. When the entry is cached the merged
// result must still satisfy the sets-sum rule.
func (r *Repository) UpdateEntry(ctx context.Context, id string, patch models.EntryPatch) (WriteResult[models.Entry], error) {
	patch, err := models.NormalizeEntryPatch(patch)
	if err != nil {
		return WriteResult[models.Entry]{}, err
	}
	if patch == (models.EntryPatch{}) {
		return WriteResult[models.Entry]{}, fmt.Errorf("%w: nothing to update", models.ErrValidation)
	}
	if id, err = r.resolve(ctx, id); err != nil {
		return WriteResult[models.Entry]{}, err
	}

	cached, cacheErr := r.store.GetEntry(ctx, id)
	if cacheErr != nil && !errors.Is(cacheErr, storage.ErrNotFound) {
		return WriteResult[models.Entry]{}, cacheErr
	}
	if cacheErr == nil {
		if err := cached.Apply(patch).CheckSets(); err != nil {
			return WriteResult[models.Entry]{}, err
		}
	}

	var cause error
	tok := r.token(ctx)
	online, err := r.canReachRemote(ctx, tok, id)
	if err != nil {
		return WriteResult[models.Entry]{}, err
	}
	if online {
		updated, err := r.remote.UpdateEntry(ctx, tok, id, patch)
		if err == nil {
			if err := r.store.UpsertEntries(ctx, []models.Entry{updated}); err != nil {
				return WriteResult[models.Entry]{}, err
			}
			r.track(telemetry.EventEntryUpdated, entryProps(updated))
			return confirmed(updated), nil
		}
		logger.Info("Queueing entry update", "id", id, "error", err)
		cause = err
	}

	local := models.Entry{ID: id}.Apply(patch)
	if cacheErr == nil {
		local = cached.Apply(patch)
		if err := r.store.UpsertEntries(ctx, []models.Entry{local}); err != nil {
			return WriteResult[models.Entry]{}, err
		}
	}
	item, err := r.enqueue(ctx, UpdateEntry{ID: id, Patch: patch})
	if err != nil {
		return WriteResult[models.Entry]{}, err
	}
	return queued(local, item.ID, cause), nil
}

// DeleteEntry removes entry id
func (r *Repository) DeleteEntry(ctx context.Context, id string) (WriteResult[string], error) {
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
		err := r.remote.DeleteEntry(ctx, tok, id)
		if err == nil || errors.Is(err, api.ErrNotFound) {
			if err := ignoreNotFound(r.store.DeleteEntry(ctx, id)); err != nil {
				return WriteResult[string]{}, err
			}
			r.track(telemetry.EventEntryDeleted, map[string]any{"entryId": id})
			return confirmed(id), nil
		}
		logger.Info("Queueing entry delete", "id", id, "error", err)
		cause = err
	}

	if err := ignoreNotFound(r.store.DeleteEntry(ctx, id)); err != nil {
		return WriteResult[string]{}, err
	}
	item, err := r.enqueue(ctx, DeleteEntry{ID: id})
	if err != nil {
		return WriteResult[string]{}, err
	}
	return queued(id, item.ID, cause), nil
}

func entryProps(e models.Entry) map[string]any {
	props := map[string]any{
		"entryId":     e.ID,
		"challengeId": e.ChallengeID,
		"count":       e.Count,
		"hasSets":     len(e.Sets) > 0,
		"hasNote":     e.Note != "",
	}
	if e.Feeling != "" {
		props["feeling"] = string(e.Feeling)
	}
	return props
}
