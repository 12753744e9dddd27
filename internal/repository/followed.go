package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/tally/internal/api"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/telemetry"
)

// ListFollowed returns cached follows, refreshed from the server when signed in
func (r *Repository) ListFollowed(ctx context.Context) ([]models.Followed, error) {
	local, err := r.store.ListFollowed(ctx)
	if err != nil {
		return nil, err
	}
	tok := r.token(ctx)
	if tok == "" {
		return local, nil
	}

	remote, err := r.remote.ListFollowed(ctx, tok)
	if err != nil {
		logger.Debug("Listing follows from cache", "error", err)
		return local, nil
	}
	pending, err := r.pendingTargets(ctx)
	if err != nil {
		return nil, err
	}
	fresh := remote[:0]
	for _, f := range remote {
		if !pending.ids[f.ID] {
			fresh = append(fresh, f)
		}
	}
	if err := r.store.UpsertFollowed(ctx, fresh); err != nil {
		return nil, err
	}
	return r.store.ListFollowed(ctx)
}

// FollowChallenge subscribes to a public challenge
func (r *Repository) FollowChallenge(ctx context.Context, p models.FollowPayload) (WriteResult[models.Followed], error) {
	if err := p.Validate(); err != nil {
		return WriteResult[models.Followed]{}, err
	}
	var err error
	if p.ChallengeID, err = r.resolve(ctx, p.ChallengeID); err != nil {
		return WriteResult[models.Followed]{}, err
	}

	var cause error
	tok := r.token(ctx)
	online, err := r.canReachRemote(ctx, tok, p.ChallengeID)
	if err != nil {
		return WriteResult[models.Followed]{}, err
	}
	if online {
		created, err := r.remote.FollowChallenge(ctx, tok, p)
		if err == nil {
			if err := r.store.UpsertFollowed(ctx, []models.Followed{created}); err != nil {
				return WriteResult[models.Followed]{}, err
			}
			r.track(telemetry.EventChallengeFollowed, map[string]any{"followId": created.ID, "challengeId": created.ChallengeID})
			return confirmed(created), nil
		}
		if isUnreadableReply(err) {
			return WriteResult[models.Followed]{}, fmt.Errorf("%w: %w", ErrUnreadableCreate, err)
		}
		logger.Info("Queueing follow", "challengeId", p.ChallengeID, "error", err)
		cause = err
	}

	local := models.NewFollowed(r.newID(), p, r.now())
	if err := r.store.UpsertFollowed(ctx, []models.Followed{local}); err != nil {
		return WriteResult[models.Followed]{}, err
	}
	item, err := r.enqueue(ctx, CreateFollowed{LocalID: local.ID, Payload: p})
	if err != nil {
		return WriteResult[models.Followed]{}, err
	}
	return queued(local, item.ID, cause), nil
}

// UnfollowChallenge removes follow id
func (r *Repository) UnfollowChallenge(ctx context.Context, id string) (WriteResult[string], error) {
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
		err := r.remote.UnfollowChallenge(ctx, tok, id)
		if err == nil || errors.Is(err, api.ErrNotFound) {
			if err := ignoreNotFound(r.store.DeleteFollowed(ctx, id)); err != nil {
				return WriteResult[string]{}, err
			}
			r.track(telemetry.EventChallengeUnfollowed, map[string]any{"followId": id})
			return confirmed(id), nil
		}
		logger.Info("Queueing unfollow", "id", id, "error", err)
		cause = err
	}

	if err := ignoreNotFound(r.store.DeleteFollowed(ctx, id)); err != nil {
		return WriteResult[string]{}, err
	}
	item, err := r.enqueue(ctx, DeleteFollowed{ID: id})
	if err != nil {
		return WriteResult[string]{}, err
	}
	return queued(id, item.ID, cause), nil
}
