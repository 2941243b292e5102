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

package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/fieldpipe/pkg/logger"
	"github.com/carverauto/fieldpipe/pkg/models"
)

var (
	ErrMissingHost     = errors.New("host is required")
	ErrMissingDatabase = errors.New("database is required")
)

const defaultPostgresPort = 5432

// PostgresConfig configures the normalized-field writer.
type PostgresConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	Database        string `json:"database"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	SSLMode         string `json:"ssl_mode"`
	ApplicationName string `json:"application_name"`
	MaxConnections  int32  `json:"max_connections"`
}

func (c *PostgresConfig) Validate() error {
	if c.Host == "" {
		return ErrMissingHost
	}

	if c.Database == "" {
		return ErrMissingDatabase
	}

	return nil
}

// Postgres writes each message's field sequence into the
// normalized_fields table, one row per field, inside one batch.
type Postgres struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

const insertFieldSQL = `
	INSERT INTO normalized_fields
		(device_type, message_id, position, name, canonical_name, value_type, unit, value, stored_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// NewPostgres dials the configured database and returns a Store backed
// by a pgx pool.
func NewPostgres(ctx context.Context, cfg *PostgresConfig, log logger.Logger) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	connURL := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			connURL.User = url.User(cfg.Username)
		}
	}

	query := connURL.Query()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)

	if cfg.ApplicationName != "" {
		query.Set("application_name", cfg.ApplicationName)
	}

	connURL.RawQuery = query.Encode()

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("store: failed to parse connection string: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: failed to ping database: %w", err)
	}

	return &Postgres{pool: pool, log: log}, nil
}

// StoreFields implements Store.
func (p *Postgres) StoreFields(ctx context.Context, deviceType, messageID string, fields []models.Field) error {
	if len(fields) == 0 {
		return nil
	}

	now := time.Now()
	batch := &pgx.Batch{}

	for i, f := range fields {
		batch.Queue(insertFieldSQL,
			deviceType,
			messageID,
			i,
			f.Descriptor.Name,
			f.Descriptor.CanonicalName(),
			string(f.Descriptor.ValueType),
			string(f.Descriptor.Unit),
			f.Value.String(),
			now,
		)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for range fields {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("store: failed to insert field batch for message %s: %w", messageID, err)
		}
	}

	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
