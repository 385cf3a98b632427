package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagrunner/dagrunner-go/internal/config"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := viper.New()
	config.Defaults(v)

	cfg, err := config.Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, "worker-pool", cfg.Scheduler)
	assert.Equal(t, 4, cfg.NumWorkers)
	assert.True(t, cfg.CacheEnabled)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dagrunner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler: single-threaded\nnum-workers: 2\n"), 0o644))

	v := viper.New()
	config.Defaults(v)

	cfg, err := config.Load(v, path)
	require.NoError(t, err)

	assert.Equal(t, "single-threaded", cfg.Scheduler)
	assert.Equal(t, 2, cfg.NumWorkers)
}

func TestLoadReadsEnvOverride(t *testing.T) {
	t.Setenv("DAGRUNNER_NUM_WORKERS", "8")

	v := viper.New()
	config.Defaults(v)

	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.NumWorkers)
}
