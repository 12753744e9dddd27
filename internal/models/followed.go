package models

import "time"

// Followed is a subscription to someone else's public challenge
type Followed struct {
	ID          string    `json:"id"`
	ChallengeID string    `json:"challengeId"`
	FollowedAt  Timestamp `json:"followedAt"`
}

// FollowPayload is the body of a follow create
type FollowPayload struct {
	ChallengeID string `json:"challengeId" validate:"required"`
}

func (p FollowPayload) Validate() error {
	return validateStruct(p)
}

// NewFollowed builds the local representation of a follow
func NewFollowed(id string, p FollowPayload, at time.Time) Followed {
	return Followed{
		ID:          id,
		ChallengeID: p.ChallengeID,
		FollowedAt:  NewTimestamp(at),
	}
}
