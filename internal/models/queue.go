package models

import (
	"encoding/json"
	"time"

	"github.com/julianstephens/tally/internal/constants"
)

// QueueItem is a write that could not be confirmed against the server yet
type QueueItem struct {
	ID         string                `json:"id"`
	Seq        int64                 `json:"seq"`
	EntityType constants.EntityType  `json:"entityType"`
	Method     constants.Method      `json:"method"`
	EntityID   string                `json:"entityId"` // local id for creates, target id otherwise
	Payload    json.RawMessage       `json:"payload"`
	CreatedAt  time.Time             `json:"createdAt"`
	Attempts   int                   `json:"attempts"`
	Status     constants.QueueStatus `json:"status"`
	LastError  string                `json:"lastError,omitempty"`
}

// IsDead reports whether the item was parked after exhausting its retries
func (q QueueItem) IsDead() bool {
	return q.Status == constants.QueueStatusDead
}

// QueueStats summarizes the mutation queue
type QueueStats struct {
	Pending int
	Dead    int
	Oldest  *time.Time
}

// IDMapping records the server id a local id resolved to
type IDMapping struct {
	LocalID    string
	ServerID   string
	EntityType constants.EntityType
	ResolvedAt time.Time
}
