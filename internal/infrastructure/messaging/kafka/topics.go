// Package kafka provides the event producer and the background consumer for
// the analytics event topics.
package kafka

// Topic names.  analytics.* topics are emitted by the service; the
// calibration topic is consumed by the worker to invalidate caches.
const (
	TopicViewComputed       = "analytics.view_computed"
	TopicExportCreated      = "analytics.export_created"
	TopicCalibrationUpdated = "calibration.updated"
)

// AllTopics lists every topic this service touches, for provisioning and
// health checks.
var AllTopics = []string{
	TopicViewComputed,
	TopicExportCreated,
	TopicCalibrationUpdated,
}
