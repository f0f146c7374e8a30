package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should overlay the file on the defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "collector.yaml")
		contents := `
secret: s3cret
project_keys: [web, mobile]
elasticsearch:
  enabled: true
  addresses: ["http://localhost:9200"]
otlp:
  endpoint: localhost:4317
`
		require.Nil(t, os.WriteFile(path, []byte(contents), 0o600))

		cfg, err := Load(path)
		require.Nil(t, err)
		assert.Equal(t, ":8090", cfg.ListenAddress)
		assert.Equal(t, "s3cret", cfg.Secret)
		assert.Equal(t, []string{"web", "mobile"}, cfg.ProjectKeys)
		assert.True(t, cfg.Elasticsearch.Enabled)
		assert.Equal(t, "flare_events", cfg.Elasticsearch.EventsIndex)
		assert.Equal(t, "localhost:4317", cfg.OTLP.Endpoint)
		assert.Equal(t, "flare-collector", cfg.OTLP.ServiceName)
		assert.Nil(t, cfg.Validate())
	})

	t.Run("should fail on a missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.NotNil(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("should require a secret", func(t *testing.T) {
		cfg := Default()
		assert.True(t, errors.Is(cfg.Validate(), ErrMissingSecret))
	})

	t.Run("should pick up the secret from the environment", func(t *testing.T) {
		t.Setenv("FLARE_COLLECTOR_SECRET", "from-env")
		cfg := Default()
		cfg.ApplyEnv()
		assert.Equal(t, "from-env", cfg.Secret)
		assert.Nil(t, cfg.Validate())
	})
}

func TestConfig_AllowsProjectKey(t *testing.T) {
	t.Run("should accept any key without an allow-list", func(t *testing.T) {
		assert.True(t, Default().AllowsProjectKey("anything"))
	})

	t.Run("should only accept listed keys", func(t *testing.T) {
		cfg := Default()
		cfg.ProjectKeys = []string{"web"}
		assert.True(t, cfg.AllowsProjectKey("web"))
		assert.False(t, cfg.AllowsProjectKey("mobile"))
		assert.False(t, cfg.AllowsProjectKey(""))
	})
}
