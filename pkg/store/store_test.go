package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fieldpipe/pkg/models"
)

func TestPostgresConfigValidate(t *testing.T) {
	cfg := &PostgresConfig{Host: "localhost", Database: "fieldpipe"}
	require.NoError(t, cfg.Validate())

	cfg = &PostgresConfig{Database: "fieldpipe"}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingHost)

	cfg = &PostgresConfig{Host: "localhost"}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingDatabase)
}

func TestNoopStore(t *testing.T) {
	var s Store = Noop{}

	fields := []models.Field{
		{
			Descriptor: models.FieldDescriptor{Name: "temperature", ValueType: models.TypeDouble},
			Value:      models.DoubleValue(21.5),
		},
	}

	require.NoError(t, s.StoreFields(context.Background(), "thermostat", "msg-1", fields))
	s.Close()
}
