/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package certify validates a submitted manifest against static rules
// and sample payloads and issues a pass/fail report.
//
// The pipeline is deterministic and side-effect free with respect to
// durable platform state: it never writes normalized data anywhere
// outside the report. All violations are collected in one pass so
// authors see everything at once.
package certify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fieldpipe/pkg/logger"
	"github.com/carverauto/fieldpipe/pkg/manifest"
	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/registry"
	"github.com/carverauto/fieldpipe/pkg/sandbox"
)

// Sample is one named sample payload submitted with a manifest.
type Sample struct {
	Name    string `json:"name"`
	Payload string `json:"payload"`
}

// Pipeline certifies manifests. Safe for concurrent use.
type Pipeline struct {
	loader  *manifest.Loader
	runtime *sandbox.Runtime
	log     logger.Logger
}

// New builds a Pipeline. A nil catalog means the process-wide standard
// catalog; zero limits mean the certification defaults.
func New(catalog *registry.Catalog, limits models.ExecutionLimits, log logger.Logger) *Pipeline {
	if limits == (models.ExecutionLimits{}) {
		limits = models.CertificationExecutionLimits()
	}

	limits.Normalize()

	if log == nil {
		log = logger.NewTestLogger(nil)
	}

	return &Pipeline{
		loader:  manifest.NewLoader(catalog, limits, log),
		runtime: sandbox.NewRuntime(limits, log),
		log:     log,
	}
}

// Certify runs the full pipeline: static rules, one sandboxed normalize
// invocation per sample, declared-descriptor cross-checks, and the
// non-empty-result rule. Approval requires zero violations across all
// samples.
func (p *Pipeline) Certify(ctx context.Context, info models.ManifestInfo, source string, samples []Sample) models.CertificationReport {
	report := models.CertificationReport{
		ReportID:    uuid.New().String(),
		DeviceType:  info.DeviceType,
		GeneratedAt: time.Now(),
	}

	if len(samples) == 0 {
		report.Violations = append(report.Violations, models.Violation{
			Rule:    RuleSamples,
			Message: "at least one sample payload is required",
		})
	}

	report.Violations = append(report.Violations, staticCheck(info.DeviceType+".star", source)...)

	m, err := p.loader.Load(ctx, info, source)
	if err != nil {
		report.Violations = append(report.Violations, loadViolation(err))
		report.Passed = false

		p.logVerdict(&report)

		return report
	}

	report.Violations = append(report.Violations, nameCheck(m.FieldDescriptors())...)

	for _, sample := range samples {
		result := p.runtime.Normalize(ctx, m, sample.Payload)
		report.Samples = append(report.Samples, models.SampleRun{Sample: sample.Name, Result: result})

		if !result.Completed() {
			report.Violations = append(report.Violations, runViolation(sample.Name, result))
		}
	}

	report.Passed = len(report.Violations) == 0

	p.logVerdict(&report)

	return report
}

func loadViolation(err error) models.Violation {
	rule := RuleContract

	switch {
	case errors.Is(err, manifest.ErrLoadViolation):
		rule = RuleRunCapability
	case errors.Is(err, manifest.ErrInconsistentDescriptors), errors.Is(err, manifest.ErrNoDescriptors):
		rule = RuleDescriptorSet
	}

	return models.Violation{Rule: rule, Message: err.Error()}
}

func runViolation(sample string, result models.ExecutionResult) models.Violation {
	v := models.Violation{Rule: RuleRunFailed, Sample: sample}

	if result.Failure != nil {
		v.Message = result.Failure.Message

		switch result.Failure.Kind {
		case models.FailureEmptyResult:
			v.Rule = RuleRunEmpty
		case models.FailureDescriptorMismatch:
			v.Rule = RuleRunUndeclared
		case models.FailureCapabilityViolation:
			v.Rule = RuleRunCapability
		case models.FailureTimeout:
			v.Rule = RuleRunTimeout
		}
	}

	return v
}

func (p *Pipeline) logVerdict(report *models.CertificationReport) {
	event := p.log.Info()
	if !report.Passed {
		event = p.log.Warn()
	}

	event.
		Str("report_id", report.ReportID).
		Str("device_type", report.DeviceType).
		Bool("passed", report.Passed).
		Int("violations", len(report.Violations)).
		Msg("Certification verdict")
}
