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

// The certifier runs a manifest through the full certification
// pipeline against a set of representative sample payloads and prints
// the report. Exit code 0 means certified.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/fieldpipe/pkg/certify"
	"github.com/carverauto/fieldpipe/pkg/models"
)

func main() {
	var (
		manifestPath = flag.String("manifest", "", "Path to the manifest source file")
		dataPath     = flag.String("data", "", "Sample payload file, or a directory of sample files")
		deviceType   = flag.String("device-type", "", "Device type (defaults to the manifest file base name)")
		version      = flag.String("version", "1", "Manifest version")
	)
	flag.Parse()

	if *manifestPath == "" || *dataPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	source, err := os.ReadFile(*manifestPath)
	if err != nil {
		log.Fatalf("Failed to read manifest: %v", err)
	}

	samples, err := loadSamples(*dataPath)
	if err != nil {
		log.Fatalf("Failed to load samples: %v", err)
	}

	dt := *deviceType
	if dt == "" {
		base := filepath.Base(*manifestPath)
		dt = strings.TrimSuffix(base, filepath.Ext(base))
	}

	info := models.ManifestInfo{
		ID:          uuid.New().String(),
		DeviceType:  dt,
		Version:     *version,
		Status:      models.ManifestSubmitted,
		SubmittedAt: time.Now(),
	}

	pipeline := certify.New(nil, models.ExecutionLimits{}, nil)
	report := pipeline.Certify(context.Background(), info, string(source), samples)

	fmt.Print(certify.Render(&report))

	if !report.Passed {
		os.Exit(1)
	}
}

// loadSamples reads one payload per file. A directory contributes
// every regular file it contains, ordered by name so reports are
// stable.
func loadSamples(path string) ([]certify.Sample, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !stat.IsDir() {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		return []certify.Sample{{Name: filepath.Base(path), Payload: string(payload)}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var samples []certify.Sample

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		payload, err := os.ReadFile(filepath.Join(path, entry.Name()))
		if err != nil {
			return nil, err
		}

		samples = append(samples, certify.Sample{Name: entry.Name(), Payload: string(payload)})
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })

	return samples, nil
}
