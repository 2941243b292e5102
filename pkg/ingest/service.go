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

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fieldpipe/pkg/engine"
	"github.com/carverauto/fieldpipe/pkg/lifecycle"
	"github.com/carverauto/fieldpipe/pkg/logger"
	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/natsutil"
	"github.com/carverauto/fieldpipe/pkg/store"
)

const manifestExt = ".star"

// Service is the ingester daemon: it connects the transport, loads the
// certified manifests, and pumps raw payloads through the engine into
// the store.
type Service struct {
	cfg      *Config
	nc       *nats.Conn
	js       jetstream.JetStream
	engine   *engine.Engine
	store    store.Store
	consumer *Consumer
	wg       sync.WaitGroup
	log      logger.Logger
}

// NewService validates the config and builds an unstarted service.
func NewService(cfg *Config, log logger.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewTestLogger(nil)
	}

	return &Service{cfg: cfg, log: log}, nil
}

// Start implements lifecycle.Service. It brings up NATS, storage, the
// engine with its manifest directory, and the pull consumer loop.
func (s *Service) Start(ctx context.Context) error {
	opts, err := natsutil.ConnectOptions(s.cfg.Security)
	if err != nil {
		return fmt.Errorf("failed to build NATS TLS config: %w", err)
	}

	nc, err := nats.Connect(s.cfg.NATSURL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	s.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	s.js = js

	if _, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     s.cfg.StreamName,
		Subjects: []string{s.cfg.Subject},
	}); err != nil {
		nc.Close()
		return fmt.Errorf("failed to ensure stream %s: %w", s.cfg.StreamName, err)
	}

	s.store, err = s.openStore(ctx)
	if err != nil {
		nc.Close()
		return err
	}

	var alerter engine.ViolationAlerter
	if s.cfg.AlertSubject != "" {
		alerter = NewAlertPublisher(js, s.cfg.AlertSubject, s.log)
	}

	s.engine = engine.New(nil, s.cfg.Limits, s.log, alerter)

	if err := s.loadManifests(ctx); err != nil {
		s.store.Close()
		nc.Close()

		return err
	}

	s.consumer, err = NewConsumer(ctx, js, s.cfg.StreamName, s.cfg.ConsumerName, s.cfg.Subject, s.log)
	if err != nil {
		s.store.Close()
		nc.Close()

		return err
	}

	processor := NewProcessor(s.engine, s.store, s.log)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.consumer.ProcessMessages(ctx, processor)
	}()

	s.log.Info().
		Str("stream", s.cfg.StreamName).
		Str("consumer", s.cfg.ConsumerName).
		Msg("Ingester started")

	return nil
}

// Stop implements lifecycle.Service.
func (s *Service) Stop(_ context.Context) error {
	if s.nc != nil {
		s.nc.Close()
	}

	s.wg.Wait()

	if s.store != nil {
		s.store.Close()
	}

	s.log.Info().Msg("Ingester stopped")

	return nil
}

func (s *Service) openStore(ctx context.Context) (store.Store, error) {
	if s.cfg.Database == nil {
		s.log.Warn().Msg("No database configured, normalized fields will be discarded")
		return store.Noop{}, nil
	}

	pg, err := store.NewPostgres(ctx, s.cfg.Database, s.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open field store: %w", err)
	}

	return pg, nil
}

// loadManifests activates every certified manifest source in the
// manifest directory. The file base name is the device type. A source
// that fails contract verification is skipped, not fatal: one bad
// manifest must not take down ingestion for every other device type.
func (s *Service) loadManifests(ctx context.Context) error {
	entries, err := os.ReadDir(s.cfg.ManifestDir)
	if err != nil {
		return fmt.Errorf("failed to read manifest directory: %w", err)
	}

	loaded := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), manifestExt) {
			continue
		}

		path := filepath.Join(s.cfg.ManifestDir, entry.Name())

		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read manifest %s: %w", path, err)
		}

		info := models.ManifestInfo{
			ID:          uuid.New().String(),
			DeviceType:  strings.TrimSuffix(entry.Name(), manifestExt),
			Version:     "1",
			Status:      models.ManifestCertified,
			SubmittedAt: time.Now(),
		}

		if err := s.engine.Activate(ctx, info, string(source)); err != nil {
			s.log.Error().
				Err(err).
				Str("path", path).
				Msg("Skipping manifest that failed contract verification")

			continue
		}

		loaded++
	}

	if loaded == 0 {
		s.log.Warn().
			Str("dir", s.cfg.ManifestDir).
			Msg("No manifests activated, all inbound messages will be dropped")
	}

	return nil
}

var _ lifecycle.Service = (*Service)(nil)
