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

package main

import (
	"context"
	"flag"
	"log"

	"github.com/carverauto/fieldpipe/pkg/config"
	"github.com/carverauto/fieldpipe/pkg/ingest"
	"github.com/carverauto/fieldpipe/pkg/lifecycle"
	"github.com/carverauto/fieldpipe/pkg/logger"
)

func main() {
	configPath := flag.String("config", "/etc/fieldpipe/ingester.json", "Path to ingester config file")
	flag.Parse()

	ctx := context.Background()
	cfgLoader := config.NewConfigWithDefaults()

	var cfg ingest.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logCfg := cfg.Logging
	if logCfg == nil {
		logCfg = logger.DefaultConfig()
	}

	appLogger, err := logger.NewComponent("ingester", logCfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	svc, err := ingest.NewService(&cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize ingester service: %v", err)
	}

	if err := lifecycle.Run(ctx, svc, appLogger); err != nil {
		log.Fatalf("Ingester failed: %v", err)
	}
}
