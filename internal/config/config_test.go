package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/tutorCall/pkg/rtc"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.True(t, cfg.RTC.FrontCamera)
	assert.Equal(t, rtc.VideoQuality720P, cfg.RTC.Quality())
	assert.Equal(t, 168*time.Hour, cfg.RTC.SigExpire)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)

	p := cfg.Room.RetryPolicy()
	assert.Equal(t, 500*time.Millisecond, p.CreateSettleDelay)
	assert.Equal(t, time.Second, p.JoinRetryDelay)
	assert.Equal(t, 3, p.MaxJoinRetries)
	assert.True(t, cfg.Room.Classifier().IsEntitlement(100007, ""))
	assert.True(t, cfg.Room.Classifier().IsEntitlement(0, "purchase required"))
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
mode: debug
listen: ":9090"
rtc:
  service_url: ws://rtc.example/ws
  sdk_app_id: 1400000001
  secret_key: s3cret
  video_quality: 540p
  mdns: true
backend:
  question_url: https://api.example/question
  token: tok
  timeout: 3s
room:
  join_retry_delay: 2s
  max_join_retries: 5
  entitlement_codes: [42]
  entitlement_markers: [quota]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, 1400000001, cfg.RTC.SDKAppID)
	assert.Equal(t, rtc.VideoQuality540P, cfg.RTC.Quality())
	assert.True(t, cfg.RTC.MDNS)
	assert.Equal(t, "https://api.example/question", cfg.Backend.QuestionURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Room.JoinRetryDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Room.CreateSettleDelay)
	assert.Equal(t, 5, cfg.Room.MaxJoinRetries)

	c := cfg.Room.Classifier()
	assert.True(t, c.IsEntitlement(42, ""))
	assert.False(t, c.IsEntitlement(100007, "bill"))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TUTORCALL_BACKEND_TOKEN", "from-env")
	t.Setenv("TUTORCALL_LISTEN", ":7070")
	path := writeConfig(t, "backend:\n  token: from-file\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Backend.Token)
	assert.Equal(t, ":7070", cfg.Listen)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing_explicit_file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad_mode", func(t *testing.T) {
		_, err := Load(writeConfig(t, "mode: loud\n"))
		assert.ErrorContains(t, err, "mode")
	})

	t.Run("bad_quality", func(t *testing.T) {
		_, err := Load(writeConfig(t, "rtc:\n  video_quality: 4k\n"))
		assert.ErrorContains(t, err, "video_quality")
	})

	t.Run("negative_retries", func(t *testing.T) {
		_, err := Load(writeConfig(t, "room:\n  max_join_retries: -1\n"))
		assert.ErrorContains(t, err, "retries")
	})
}
