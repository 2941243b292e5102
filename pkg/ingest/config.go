package ingest

import (
	"errors"

	"github.com/carverauto/fieldpipe/pkg/logger"
	"github.com/carverauto/fieldpipe/pkg/models"
	"github.com/carverauto/fieldpipe/pkg/store"
)

var (
	ErrMissingNATSURL      = errors.New("nats_url is required")
	ErrMissingStreamName   = errors.New("stream_name is required")
	ErrMissingConsumerName = errors.New("consumer_name is required")
	ErrMissingSubject      = errors.New("subject is required")
	ErrMissingManifestDir  = errors.New("manifest_dir is required")
)

// Config wires the ingester daemon: NATS transport in, storage out,
// active manifests loaded from a directory of certified sources.
type Config struct {
	NATSURL      string                 `json:"nats_url"`
	Subject      string                 `json:"subject"`
	StreamName   string                 `json:"stream_name"`
	ConsumerName string                 `json:"consumer_name"`
	AlertSubject string                 `json:"alert_subject"`
	ManifestDir  string                 `json:"manifest_dir"`
	Limits       models.ExecutionLimits `json:"limits"`
	Security     *models.SecurityConfig `json:"security,omitempty"`
	Database     *store.PostgresConfig  `json:"database"`
	Logging      *logger.Config         `json:"logging"`
}

func (c *Config) Validate() error {
	if c.NATSURL == "" {
		return ErrMissingNATSURL
	}

	if c.Subject == "" {
		return ErrMissingSubject
	}

	if c.StreamName == "" {
		return ErrMissingStreamName
	}

	if c.ConsumerName == "" {
		return ErrMissingConsumerName
	}

	if c.ManifestDir == "" {
		return ErrMissingManifestDir
	}

	if c.Database != nil {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}

	c.Limits.Normalize()

	return nil
}
