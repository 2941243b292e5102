package models

import "time"

// Violation is one certification rule breach, tagged with the rule
// identifier and, where applicable, the sample that triggered it.
type Violation struct {
	Rule    string `json:"rule"`
	Sample  string `json:"sample,omitempty"`
	Message string `json:"message"`
}

// SampleRun records the execution outcome for one named sample payload,
// kept in the report so reviewers can inspect the produced fields.
type SampleRun struct {
	Sample string          `json:"sample"`
	Result ExecutionResult `json:"result"`
}

// CertificationReport is the verdict of one certification run.
// Approval requires zero violations across all samples.
type CertificationReport struct {
	ReportID    string      `json:"report_id"`
	DeviceType  string      `json:"device_type"`
	Passed      bool        `json:"passed"`
	Violations  []Violation `json:"violations,omitempty"`
	Samples     []SampleRun `json:"samples,omitempty"`
	GeneratedAt time.Time   `json:"generated_at"`
}
