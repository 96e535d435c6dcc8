package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"todone/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: https://api.todone.test
database:
  path: /tmp/todone-test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 10, cfg.Remote.TimeoutSeconds)
	assert.Equal(t, models.DefaultSyncBatchSize, cfg.Sync.BatchSize)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Sync.PollIntervalDuration())
	assert.Equal(t, 15*time.Second, cfg.Sync.ConnectivityProbeDuration())
	assert.Equal(t, 2*time.Second, cfg.Sync.InitialDelayDuration())
	assert.Equal(t, time.Minute, cfg.Sync.MaxDelayDuration())
	assert.Equal(t, float64(2), cfg.Sync.BackoffFactor)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TODONE_TEST_API_KEY", "secret-key")

	path := writeConfig(t, `
remote:
  base_url: https://api.todone.test
  api_key: ${TODONE_TEST_API_KEY}
database:
  path: /tmp/todone-test.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.Remote.APIKey)
}

func TestLoad_MissingRemote(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/todone-test.db
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: https://api.todone.test
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_SyncOverrides(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: https://api.todone.test
database:
  path: /tmp/todone-test.db
sync:
  poll_interval: 10s
  max_retries: 3
  initial_delay: 1s
  max_delay: 20s
  backoff_factor: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Sync.PollIntervalDuration())
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.Equal(t, 20*time.Second, cfg.Sync.MaxDelayDuration())
	assert.Equal(t, float64(3), cfg.Sync.BackoffFactor)
}

func TestValidateProjects(t *testing.T) {
	err := ValidateProjects([]models.Project{
		{ID: "p1", Name: "Inbox"},
		{ID: "p2", Name: "Work"},
	})
	assert.NoError(t, err)

	err = ValidateProjects([]models.Project{{Name: "no id"}})
	assert.Error(t, err)

	err = ValidateProjects([]models.Project{
		{ID: "dup", Name: "a"},
		{ID: "dup", Name: "b"},
	})
	assert.Error(t, err)
}

func TestLoad_SeedProjects(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: https://api.todone.test
database:
  path: /tmp/todone-test.db
projects:
  - id: inbox
    name: Inbox
    color: grey
labels:
  - id: errand
    name: errand
    color: green
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Projects, 1)
	assert.Equal(t, "inbox", cfg.Projects[0].ID)
	require.Len(t, cfg.Labels, 1)
	assert.Equal(t, "errand", cfg.Labels[0].ID)
}
