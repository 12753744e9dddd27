// Package telemetry receives product events from the repository. Sinks are
// fire-and-forget: they must not block and cannot fail the caller.
package telemetry

import (
	"fmt"
	"sort"

	"github.com/julianstephens/tally/internal/logger"
)

// Event names
const (
	EventChallengeCreated    = "challenge_created"
	EventChallengeUpdated    = "challenge_updated"
	EventChallengeArchived   = "challenge_archived"
	EventChallengeDeleted    = "challenge_deleted"
	EventEntryCreated        = "entry_created"
	EventEntryUpdated        = "entry_updated"
	EventEntryDeleted        = "entry_deleted"
	EventChallengeFollowed   = "challenge_followed"
	EventChallengeUnfollowed = "challenge_unfollowed"
	EventQueueItemSynced     = "queue_item_synced"
	EventQueueItemDead       = "queue_item_dead"
)

// Sink receives events with free-form properties
type Sink interface {
	Track(event string, props map[string]any)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(event string, props map[string]any)

func (f SinkFunc) Track(event string, props map[string]any) {
	f(event, props)
}

// Nop discards every event
type Nop struct{}

func (Nop) Track(string, map[string]any) {}

// LogSink writes each event as a structured info line
type LogSink struct{}

func (LogSink) Track(event string, props map[string]any) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyvals := make([]interface{}, 0, 2+2*len(keys))
	keyvals = append(keyvals, "event", event)
	for _, k := range keys {
		keyvals = append(keyvals, k, props[k])
	}
	logger.Info("Telemetry event", keyvals...)
}

// Multi fans each event out to every sink
type Multi []Sink

func (m Multi) Track(event string, props map[string]any) {
	for _, s := range m {
		Safe(s, event, props)
	}
}

// Safe calls s.Track and swallows any panic, logging it instead
func Safe(s Sink, event string, props map[string]any) {
	if s == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Telemetry sink panicked", "event", event, "panic", fmt.Sprint(r))
		}
	}()
	s.Track(event, props)
}
