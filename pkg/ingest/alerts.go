package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fieldpipe/pkg/logger"
	"github.com/carverauto/fieldpipe/pkg/models"
)

const violationEventType = "com.carverauto.fieldpipe.manifest.capability_violation"

// AlertPublisher publishes engine-level capability-violation alerts as
// CloudEvents on JetStream, separate from ordinary per-message failure
// logging.
type AlertPublisher struct {
	js      jetstream.JetStream
	subject string
	log     logger.Logger
}

// NewAlertPublisher creates an AlertPublisher for the given subject.
func NewAlertPublisher(js jetstream.JetStream, subject string, log logger.Logger) *AlertPublisher {
	return &AlertPublisher{js: js, subject: subject, log: log}
}

// CapabilityViolation implements engine.ViolationAlerter. Publishing is
// best effort: a transport error is logged, never propagated back into
// the execution path.
func (a *AlertPublisher) CapabilityViolation(ctx context.Context, info models.ManifestInfo, failure *models.Failure) {
	now := time.Now()

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          "fieldpipe/engine",
		Type:            violationEventType,
		DataContentType: "application/json",
		Subject:         a.subject,
		Time:            &now,
		Data: models.CapabilityViolationEventData{
			DeviceType: info.DeviceType,
			ManifestID: info.ID,
			Version:    info.Version,
			Violation:  failure.Message,
			Timestamp:  now,
		},
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to marshal capability violation event")
		return
	}

	if _, err := a.js.Publish(ctx, a.subject, eventBytes); err != nil {
		a.log.Error().
			Err(err).
			Str("device_type", info.DeviceType).
			Msg("Failed to publish capability violation event")
	}
}
