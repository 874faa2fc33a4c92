package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfigHasSaneDefaults(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "badger", config.Store.Type)
	assert.Equal(t, "sqlite", config.Queue.Type)
	assert.NotEmpty(t, config.Storage.Root)
}

func TestLoadFromFilesLayersLaterFileOverEarlier(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000
host = "0.0.0.0"
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9100
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
}

func TestApplyEnvOverridesTakesPriorityOverDefaults(t *testing.T) {
	t.Setenv("MERIDIAN_SERVER_PORT", "7777")
	t.Setenv("MERIDIAN_STORE_TYPE", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("STORAGE_ROOT", "/mnt/storage")

	config := NewDefaultConfig()
	applyEnvOverrides(config)

	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "mongo", config.Store.Type)
	assert.Equal(t, "mongodb://localhost:27017", config.Store.Mongo.URI)
	assert.Equal(t, "redis.internal", config.Queue.Redis.Host)
	assert.Equal(t, "/mnt/storage", config.Storage.Root)
}

func TestApplyFlagOverridesOnlyAppliesNonZeroValues(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 8080, config.Server.Port)

	ApplyFlagOverrides(config, 9090, "example.com")
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "example.com", config.Server.Host)
}

func TestIsProductionRecognizesProdAliases(t *testing.T) {
	config := NewDefaultConfig()
	assert.False(t, config.IsProduction())

	config.Environment = "production"
	assert.True(t, config.IsProduction())

	config.Environment = " PROD "
	assert.True(t, config.IsProduction())
}
