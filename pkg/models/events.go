package models

import "time"

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// CapabilityViolationEventData is the payload of the engine-level alert
// raised when a manifest attempts a denied capability. Distinct from
// ordinary per-message failures: it marks the manifest, not the
// message.
type CapabilityViolationEventData struct {
	DeviceType string    `json:"device_type"`
	ManifestID string    `json:"manifest_id"`
	Version    string    `json:"version"`
	Violation  string    `json:"violation"`
	Timestamp  time.Time `json:"timestamp"`
}
