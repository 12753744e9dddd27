package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/julianstephens/tally/internal/constants"
)

// PrometheusSink counts events in its own registry. The CLI is short-lived,
// so the registry is exported with WriteTextfile for a node-exporter
// textfile collector rather than served.
type PrometheusSink struct {
	registry   *prometheus.Registry
	events     *prometheus.CounterVec
	entryCount prometheus.Counter
	synced     *prometheus.CounterVec
}

func NewPrometheusSink() *PrometheusSink {
	s := &PrometheusSink{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: constants.MetricsNamespace,
				Name:      "events_total",
				Help:      "Confirmed writes and queue replays by event",
			},
			[]string{"event"},
		),
		entryCount: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: constants.MetricsNamespace,
				Name:      "entry_count_total",
				Help:      "Sum of counts logged in confirmed entry creates",
			},
		),
		synced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: constants.MetricsNamespace,
				Name:      "queue_items_total",
				Help:      "Queue items that finished a drain, by entity and outcome",
			},
			[]string{"entity", "outcome"},
		),
	}
	s.registry.MustRegister(s.events, s.entryCount, s.synced)
	return s
}

func (s *PrometheusSink) Track(event string, props map[string]any) {
	s.events.WithLabelValues(event).Inc()

	switch event {
	case EventEntryCreated:
		if n, ok := props["count"].(int); ok && n > 0 {
			s.entryCount.Add(float64(n))
		}
	case EventQueueItemSynced, EventQueueItemDead:
		entity, _ := props["entityType"].(string)
		outcome := "synced"
		if event == EventQueueItemDead {
			outcome = "dead"
		}
		s.synced.WithLabelValues(entity, outcome).Inc()
	}
}

// Registry exposes the gatherer, mainly for tests
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

// WriteTextfile atomically writes the current metrics in text exposition format
func (s *PrometheusSink) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
