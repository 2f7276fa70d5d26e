package citation

import (
	"time"

	"github.com/google/uuid"
)

// BaseEvent carries the fields every domain event shares.
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewBaseEvent stamps a fresh event envelope for the given aggregate.
func NewBaseEvent(aggregateID string) BaseEvent {
	return BaseEvent{
		EventID:     uuid.NewString(),
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
	}
}

// AnalyticsComputedEvent is published after an analytics view completes.
type AnalyticsComputedEvent struct {
	BaseEvent
	View         string        `json:"view"`
	ScopeKey     string        `json:"scope_key"`
	ScopeSize    int           `json:"scope_size"`
	EdgeCount    int           `json:"edge_count"`
	Uncalibrated bool          `json:"uncalibrated,omitempty"`
	Duration     time.Duration `json:"duration_ms"`
}

// NewAnalyticsComputedEvent builds the completion event for one view run.
func NewAnalyticsComputedEvent(view, scopeKey string, scopeSize, edgeCount int, uncalibrated bool, d time.Duration) *AnalyticsComputedEvent {
	return &AnalyticsComputedEvent{
		BaseEvent:    NewBaseEvent(scopeKey),
		View:         view,
		ScopeKey:     scopeKey,
		ScopeSize:    scopeSize,
		EdgeCount:    edgeCount,
		Uncalibrated: uncalibrated,
		Duration:     d,
	}
}

// CalibrationUpdatedEvent announces a refreshed calibration snapshot.
// Consumers drop their cached copy so the next scoring run picks it up.
type CalibrationUpdatedEvent struct {
	BaseEvent
	P95Forward float64   `json:"p95_forward"`
	AsOf       time.Time `json:"as_of"`
}

// NewCalibrationUpdatedEvent builds the announcement for a new snapshot.
func NewCalibrationUpdatedEvent(c *Calibration) *CalibrationUpdatedEvent {
	return &CalibrationUpdatedEvent{
		BaseEvent:  NewBaseEvent("calibration"),
		P95Forward: c.P95Forward,
		AsOf:       c.AsOf,
	}
}

// ExportSnapshotEvent is published after a risk-radar snapshot lands in
// object storage.
type ExportSnapshotEvent struct {
	BaseEvent
	ObjectKey string `json:"object_key"`
	ScopeKey  string `json:"scope_key"`
	Assets    int    `json:"assets"`
}

// NewExportSnapshotEvent builds the export notification.
func NewExportSnapshotEvent(objectKey, scopeKey string, assets int) *ExportSnapshotEvent {
	return &ExportSnapshotEvent{
		BaseEvent: NewBaseEvent(objectKey),
		ObjectKey: objectKey,
		ScopeKey:  scopeKey,
		Assets:    assets,
	}
}
