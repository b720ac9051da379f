package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/classroom")
	t.Setenv("NOTIFY_SINKS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, time.Minute, cfg.TrackerInterval)
	assert.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	assert.Zero(t, cfg.LateSubmissionGrace)
	assert.Equal(t, []string{SinkLog, SinkWebSocket}, cfg.NotifySinks)
	assert.Equal(t, 500, cfg.ArchiveBatchSize)
	assert.Equal(t, "0 3 1 * *", cfg.ArchiveCron)
}

func TestLoad_RequiresDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DB_DSN")
}

func TestLoad_ParsesOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/classroom")
	t.Setenv("TRACKER_INTERVAL", "30s")
	t.Setenv("LATE_SUBMISSION_GRACE", "10m")
	t.Setenv("NOTIFY_SINKS", " Log , redis ")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("ARCHIVE_BATCH_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.TrackerInterval)
	assert.Equal(t, 10*time.Minute, cfg.LateSubmissionGrace)
	assert.Equal(t, []string{SinkLog, SinkRedis}, cfg.NotifySinks)
	assert.True(t, cfg.HasSink(SinkRedis))
	assert.False(t, cfg.HasSink(SinkTelegram))
	assert.Equal(t, 500, cfg.ArchiveBatchSize)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			NotifySinks:            []string{SinkLog},
			NotifyTimeout:          time.Second,
			TrackerInterval:        time.Minute,
			ArchiveRetentionMonths: 6,
			ArchiveBatchSize:       100,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "zero interval", mutate: func(c *Config) { c.TrackerInterval = 0 }, wantErr: "TRACKER_INTERVAL"},
		{name: "negative grace", mutate: func(c *Config) { c.LateSubmissionGrace = -time.Second }, wantErr: "GRACE"},
		{name: "unknown sink", mutate: func(c *Config) { c.NotifySinks = []string{"smtp"} }, wantErr: "unknown notify sink"},
		{name: "telegram without token", mutate: func(c *Config) { c.NotifySinks = []string{SinkTelegram} }, wantErr: "TELEGRAM_TOKEN"},
		{name: "redis without addr", mutate: func(c *Config) { c.NotifySinks = []string{SinkRedis} }, wantErr: "REDIS_ADDR"},
		{name: "zero batch", mutate: func(c *Config) { c.ArchiveBatchSize = 0 }, wantErr: "ARCHIVE_BATCH_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
