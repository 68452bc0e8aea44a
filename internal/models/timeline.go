package models

import "time"

// TimelinePoint represents a single compact point in a service timeline.
type TimelinePoint struct {
	ClassName string           `json:"className"`
	Label     string           `json:"label"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Details   []TimelineDetail `json:"details,omitempty"`
}

// TimelineDetail records a sample in which the service was not running.
type TimelineDetail struct {
	Timestamp time.Time     `json:"timestamp"`
	Status    ServiceStatus `json:"status"`
	Version   string        `json:"version,omitempty"`
}

// ServiceTimeline aggregates timeline points for a single JAR service.
type ServiceTimeline struct {
	ServiceID   string          `json:"service_id"`
	ServiceName string          `json:"service_name"`
	Timeline    []TimelinePoint `json:"timeline"`
}
