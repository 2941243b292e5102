package models

import "time"

// ManifestStatus tracks a manifest through its lifecycle. Only one
// manifest is active per device type at a time.
type ManifestStatus string

const (
	ManifestSubmitted  ManifestStatus = "submitted"
	ManifestCertified  ManifestStatus = "certified"
	ManifestRejected   ManifestStatus = "rejected"
	ManifestActive     ManifestStatus = "active"
	ManifestDeprecated ManifestStatus = "deprecated"
	// ManifestUnsafe marks a manifest that triggered a capability
	// violation in production; it stays inactive pending re-review.
	ManifestUnsafe ManifestStatus = "unsafe"
)

// ManifestInfo is the metadata the platform keeps about a submitted
// manifest. The source itself is owned by the loader.
type ManifestInfo struct {
	ID          string         `json:"id"`
	DeviceType  string         `json:"device_type"`
	Version     string         `json:"version"`
	Status      ManifestStatus `json:"status"`
	SubmittedAt time.Time      `json:"submitted_at"`
}
