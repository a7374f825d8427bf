package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.NotEmpty(t, cfg.Store.DataDir)
	assert.Equal(t, 8, cfg.Store.MaxConns)
	assert.Equal(t, "64MB", cfg.Ingest.MaxUpload)
	assert.Equal(t, int64(64*1024*1024), cfg.Ingest.MaxUploadBytes)
	assert.Equal(t, 10.0, cfg.Ingest.PublishRate)
	assert.Equal(t, 20, cfg.Ingest.PublishBurst)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("server.port", 9090)
	viper.Set("server.log_level", "debug")
	viper.Set("store.max_conns", 2)
	viper.Set("ingest.max_upload", "128MB")
	viper.Set("ingest.publish_burst", 5)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 2, cfg.Store.MaxConns)
	assert.Equal(t, int64(128*1024*1024), cfg.Ingest.MaxUploadBytes)
	assert.Equal(t, 5, cfg.Ingest.PublishBurst)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value any
	}{
		{"port out of range", "server.port", 70000},
		{"unknown log level", "server.log_level", "shout"},
		{"zero connections", "store.max_conns", 0},
		{"zero upload limit", "ingest.max_upload", "0"},
		{"unparseable upload limit", "ingest.max_upload", "lots"},
		{"negative rate", "ingest.publish_rate", -1.0},
		{"zero burst", "ingest.publish_burst", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			viper.Set(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
