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

// Package ingest receives raw device payloads from the message
// transport, runs them through the execution engine one at a time, and
// hands each completed field sequence to the storage collaborator.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fieldpipe/pkg/engine"
	"github.com/carverauto/fieldpipe/pkg/logger"
	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/store"
)

var (
	// ErrDropMessage marks a message as permanently unprocessable:
	// manifest execution is deterministic, so redelivery would fail the
	// same way. The consumer acknowledges and drops it.
	ErrDropMessage = errors.New("message dropped")

	// ErrEmptyMessage is returned for messages with no payload.
	ErrEmptyMessage = errors.New("empty message received")
)

// Processor runs one inbound message through the engine.
type Processor struct {
	engine *engine.Engine
	store  store.Store
	log    logger.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(eng *engine.Engine, st store.Store, log logger.Logger) *Processor {
	if log == nil {
		log = logger.NewTestLogger(nil)
	}

	return &Processor{engine: eng, store: st, log: log}
}

// deviceTypeFromSubject extracts the device type from the last subject
// token, e.g. "fieldpipe.raw.thermostat" -> "thermostat".
func deviceTypeFromSubject(subject string) string {
	idx := strings.LastIndex(subject, ".")
	if idx < 0 || idx == len(subject)-1 {
		return ""
	}

	return subject[idx+1:]
}

// Process handles exactly one payload. Failed invocations drop the
// message: the engine never retries and never stores inconsistent
// data. Only storage errors are retryable.
func (p *Processor) Process(ctx context.Context, msg jetstream.Msg) error {
	data := msg.Data()
	if len(data) == 0 {
		return fmt.Errorf("%w: %w", ErrDropMessage, ErrEmptyMessage)
	}

	deviceType := deviceTypeFromSubject(msg.Subject())
	if deviceType == "" {
		return fmt.Errorf("%w: subject %q carries no device type", ErrDropMessage, msg.Subject())
	}

	messageID := msg.Headers().Get("Nats-Msg-Id")
	if messageID == "" {
		messageID = uuid.New().String()
	}

	result, err := p.engine.Normalize(ctx, deviceType, string(data))
	if err != nil {
		if errors.Is(err, engine.ErrNoActiveManifest) || errors.Is(err, engine.ErrManifestUnsafe) {
			p.log.Warn().
				Str("device_type", deviceType).
				Err(err).
				Msg("Message dropped without execution")

			return fmt.Errorf("%w: %w", ErrDropMessage, err)
		}

		return err
	}

	if !result.Completed() {
		p.logFailure(deviceType, messageID, &result)

		return fmt.Errorf("%w: %s", ErrDropMessage, result.Failure.Error())
	}

	if err := p.store.StoreFields(ctx, deviceType, messageID, result.Fields); err != nil {
		return fmt.Errorf("failed to store fields for message %s: %w", messageID, err)
	}

	p.log.Debug().
		Str("device_type", deviceType).
		Str("message_id", messageID).
		Int("fields", len(result.Fields)).
		Msg("Message normalized")

	return nil
}

func (p *Processor) logFailure(deviceType, messageID string, result *models.ExecutionResult) {
	p.log.Warn().
		Str("device_type", deviceType).
		Str("message_id", messageID).
		Str("state", string(result.State)).
		Str("failure", result.Failure.Error()).
		Msg("Normalization failed, message dropped")
}
