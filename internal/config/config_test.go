package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load([]string{dir})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Watch.Root)
	assert.Equal(t, 10000, cfg.Tracker.ChangeLimit)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "0.0.0.0", cfg.Server.Bind)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Zero(t, cfg.Server.RateLimit)
	assert.Empty(t, cfg.Watch.IgnorePatterns)
}

func TestLoad_Flags(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load([]string{
		"--limit", "500",
		"-l", "trace",
		"--bind", "127.0.0.1",
		"--port", "9090",
		"--ignore", "*.tmp, .git",
		dir,
	})
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Tracker.ChangeLimit)
	assert.Equal(t, "trace", cfg.Logger.Level)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"*.tmp", ".git"}, cfg.Watch.IgnorePatterns)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
}

func TestLoad_RelativePathExpanded(t *testing.T) {
	cfg, err := Load([]string{"."})
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.Watch.Root))
}

func TestLoad_MissingWatchPath(t *testing.T) {
	_, err := Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch path is required")
}

func TestLoad_EnvPrecedence(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("CHANGE_LIMIT", "42")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Tracker.ChangeLimit)
	assert.Equal(t, "warn", cfg.Logger.Level)

	// Flags beat environment variables.
	cfg, err = Load([]string{"--limit", "7", dir})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Tracker.ChangeLimit)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "agent.env")
	require.NoError(t, os.WriteFile(envFile, []byte("BIND_ADDR=10.0.0.1\n# comment\n"), 0o644))

	t.Setenv("BIND_ADDR", "")

	cfg, err := Load([]string{"--env-file", envFile, dir})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Server.Bind)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"bad log level", []string{"-l", "loud", dir}},
		{"bad environment", []string{"--env", "chaos", dir}},
		{"zero limit", []string{"--limit", "0", dir}},
		{"negative limit", []string{"--limit", "-3", dir}},
		{"bad port", []string{"--port", "99999", dir}},
		{"non-numeric port", []string{"--port", "http", dir}},
		{"bad timeout", []string{"--read-timeout", "fast", dir}},
		{"bad ignore pattern", []string{"--ignore", "[", dir}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnparseableNumbersAreFatal(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		args []string
	}{
		{"limit flag", []string{"--limit", "banana", dir}},
		{"rate limit flag", []string{"--rate-limit", "fast", dir}},
		{"rate burst flag", []string{"--rate-burst", "1.5", dir}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.args)
			require.Error(t, err)
		})
	}
}

func TestLoad_UnparseableLimitEnvIsFatal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHANGE_LIMIT", "banana")

	_, err := Load([]string{dir})
	require.Error(t, err)
}

func TestLoad_FlagsAfterPath(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load([]string{dir, "--limit", "500", "-l", "debug"})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Watch.Root)
	assert.Equal(t, 500, cfg.Tracker.ChangeLimit)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_FlagsAroundPath(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load([]string{"--limit", "500", dir, "--port", "9090"})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Watch.Root)
	assert.Equal(t, 500, cfg.Tracker.ChangeLimit)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoad_ExtraPositionalRejected(t *testing.T) {
	dir := t.TempDir()

	_, err := Load([]string{dir, "second"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected argument")
}
