package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/julianstephens/tally/internal/models"
)

const (
	challengesPath       = "/api/v1/challenges"
	entriesPath          = "/api/v1/entries"
	followedPath         = "/api/v1/followed"
	publicChallengesPath = "/api/v1/public/challenges"
)

func (c *Client) ListChallenges(ctx context.Context, token string, filter models.ChallengeFilter) ([]models.Challenge, error) {
	query := url.Values{}
	if filter.Active != nil {
		query.Set("active", strconv.FormatBool(*filter.Active))
	}
	var out []models.Challenge
	if err := c.do(ctx, http.MethodGet, challengesPath, query, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateChallenge(ctx context.Context, token string, p models.ChallengePayload) (models.Challenge, error) {
	var out models.Challenge
	err := c.do(ctx, http.MethodPost, challengesPath, nil, token, p, &out)
	return out, err
}

func (c *Client) UpdateChallenge(ctx context.Context, token, id string, p models.ChallengePatch) (models.Challenge, error) {
	var out models.Challenge
	err := c.do(ctx, http.MethodPatch, pathID(challengesPath, id), nil, token, p, &out)
	return out, err
}

func (c *Client) DeleteChallenge(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, pathID(challengesPath, id), nil, token, nil, nil)
}

func (c *Client) ListEntries(ctx context.Context, token string, filter models.EntryFilter) ([]models.Entry, error) {
	query := url.Values{}
	if filter.ChallengeID != "" {
		query.Set("challengeId", filter.ChallengeID)
	}
	if filter.Date != "" {
		query.Set("date", filter.Date)
	}
	var out []models.Entry
	if err := c.do(ctx, http.MethodGet, entriesPath, query, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateEntry(ctx context.Context, token string, p models.EntryPayload) (models.Entry, error) {
	var out models.Entry
	err := c.do(ctx, http.MethodPost, entriesPath, nil, token, p, &out)
	return out, err
}

func (c *Client) UpdateEntry(ctx context.Context, token, id string, p models.EntryPatch) (models.Entry, error) {
	var out models.Entry
	err := c.do(ctx, http.MethodPatch, pathID(entriesPath, id), nil, token, p, &out)
	return out, err
}

func (c *Client) DeleteEntry(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, pathID(entriesPath, id), nil, token, nil, nil)
}

func (c *Client) ListFollowed(ctx context.Context, token string) ([]models.Followed, error) {
	var out []models.Followed
	if err := c.do(ctx, http.MethodGet, followedPath, nil, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FollowChallenge(ctx context.Context, token string, p models.FollowPayload) (models.Followed, error) {
	var out models.Followed
	err := c.do(ctx, http.MethodPost, followedPath, nil, token, p, &out)
	return out, err
}

func (c *Client) UnfollowChallenge(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, pathID(followedPath, id), nil, token, nil, nil)
}

// ListPublicChallenges needs no token
func (c *Client) ListPublicChallenges(ctx context.Context) ([]models.Challenge, error) {
	var out []models.Challenge
	if err := c.do(ctx, http.MethodGet, publicChallengesPath, nil, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
