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

// Package config loads service configuration from JSON files, with an
// environment-variable escape hatch for containerized deployments.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/carverauto/fieldpipe/pkg/logger"
)

var (
	errLoadConfigFailed = errors.New("failed to load configuration")
	errInvalidConfig    = errors.New("invalid configuration")
)

// envConfigJSON, when set, takes precedence over the file path: its
// value is the complete JSON configuration.
const envConfigJSON = "FIELDPIPE_CONFIG_JSON"

// Validator is implemented by config structs that check themselves
// after loading.
type Validator interface {
	Validate() error
}

// ConfigLoader loads configuration from a source into dst.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Config holds the configuration loading dependencies.
type Config struct {
	loader ConfigLoader
	logger logger.Logger
}

// NewConfig initializes a Config with a file loader. If log is nil, a
// quiet logger is used.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger(nil)
	}

	return &Config{
		loader: &FileConfigLoader{},
		logger: log,
	}
}

// NewConfigWithDefaults returns a Config suitable for main().
func NewConfigWithDefaults() *Config {
	return NewConfig(nil)
}

// LoadAndValidate loads configuration into dst and runs its Validate
// hook when present. The FIELDPIPE_CONFIG_JSON environment variable, if
// set, overrides the file entirely.
func (c *Config) LoadAndValidate(ctx context.Context, path string, dst interface{}) error {
	if raw := os.Getenv(envConfigJSON); raw != "" {
		if err := unmarshalJSON([]byte(raw), dst); err != nil {
			return fmt.Errorf("%w: %s: %w", errLoadConfigFailed, envConfigJSON, err)
		}

		c.logger.Info().Msg("Loaded configuration from environment")
	} else if err := c.loader.Load(ctx, path, dst); err != nil {
		return fmt.Errorf("%w: %w", errLoadConfigFailed, err)
	}

	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", errInvalidConfig, err)
		}
	}

	return nil
}
