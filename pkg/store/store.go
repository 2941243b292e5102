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

// Package store is the boundary to the storage collaborator: it
// receives the ordered field sequence produced for one message, each
// record tagged with its descriptor's canonical name, value and
// resolved unit.
package store

import (
	"context"

	"github.com/carverauto/fieldpipe/pkg/models"
)

// Store persists normalized fields. Implementations must treat one
// StoreFields call as one message's complete output; partial sequences
// are never handed in.
type Store interface {
	StoreFields(ctx context.Context, deviceType, messageID string, fields []models.Field) error
	Close()
}

// Noop discards everything. Used by the certification pipeline and the
// pre-submission CLI, which must never write normalized data.
type Noop struct{}

// StoreFields implements Store by dropping the fields.
func (Noop) StoreFields(_ context.Context, _, _ string, _ []models.Field) error {
	return nil
}

// Close implements Store.
func (Noop) Close() {}
