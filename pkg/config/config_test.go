package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type validatedConfig struct {
	Name string `json:"name"`
}

var errNoName = errors.New("name is required")

func (c *validatedConfig) Validate() error {
	if c.Name == "" {
		return errNoName
	}

	return nil
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfigFile(t, `{"name": "ingester", "count": 3}`)

	var cfg testConfig

	require.NoError(t, NewConfigWithDefaults().LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "ingester", cfg.Name)
	assert.Equal(t, 3, cfg.Count)
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	var cfg testConfig

	err := NewConfigWithDefaults().LoadAndValidate(context.Background(), "/nonexistent/config.json", &cfg)
	require.Error(t, err)
}

func TestLoadAndValidateBadJSON(t *testing.T) {
	path := writeConfigFile(t, `{"name": `)

	var cfg testConfig

	err := NewConfigWithDefaults().LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
}

func TestLoadAndValidateRunsValidator(t *testing.T) {
	path := writeConfigFile(t, `{"name": ""}`)

	var cfg validatedConfig

	err := NewConfigWithDefaults().LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errNoName)
}

func TestLoadFromEnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `{"name": "from-file"}`)

	t.Setenv(envConfigJSON, `{"name": "from-env"}`)

	var cfg testConfig

	require.NoError(t, NewConfigWithDefaults().LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "from-env", cfg.Name)
}

func TestLoadFromEnvironmentBadJSON(t *testing.T) {
	t.Setenv(envConfigJSON, `{`)

	var cfg testConfig

	err := NewConfigWithDefaults().LoadAndValidate(context.Background(), "unused.json", &cfg)
	require.Error(t, err)
}
