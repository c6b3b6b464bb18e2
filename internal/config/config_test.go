package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/depviz/pkg/closure"
	"github.com/matzehuels/depviz/pkg/errors"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", t.TempDir(), noEnv)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10, cfg.MaxLabelsToShow)
	assert.False(t, cfg.LogFilesToCompile)
	assert.Equal(t, closure.AllKinds, cfg.ClosureFilter())
	assert.Equal(t, log.InfoLevel, cfg.Level())
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "depviz.toml", `
log_level = "debug"
filter = "compile"
max_labels_to_show = 25

[server]
addr = ":9090"
watch_debounce = "1s"
`)
	cfg, err := load("", dir, noEnv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "depviz.toml"), cfg.Source)
	assert.Equal(t, log.DebugLevel, cfg.Level())
	assert.Equal(t, closure.PropagatingOnly, cfg.ClosureFilter())
	assert.Equal(t, 25, cfg.MaxLabelsToShow)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, time.Second, cfg.Server.WatchDebounce)
	assert.Equal(t, 64, cfg.Server.CacheSize, "unset keys keep defaults")
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "custom.yaml", `
log_files_to_compile: true
server:
  cache_size: 8
  cache_ttl: 10m
`)
	cfg, err := load(p, dir, noEnv)
	require.NoError(t, err)
	assert.True(t, cfg.LogFilesToCompile)
	assert.Equal(t, 8, cfg.Server.CacheSize)
	assert.Equal(t, 10*time.Minute, cfg.Server.CacheTTL)
}

func TestLoad_YAMLUnknownKey(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "depviz.yml", "max_lables: 3\n")
	_, err := load(p, dir, noEnv)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig), "err = %v", err)
}

func TestLoad_EmptyYAML(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "depviz.yaml", "")
	cfg, err := load(p, dir, noEnv)
	require.NoError(t, err)
	assert.Equal(t, "all", cfg.Filter)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "depviz.toml", "max_labels_to_show = 5\nfilter = \"compile\"\n")
	write(t, dir, ".env", "DEPVIZ_MAX_LABELS=7\nDEPVIZ_ADDR=:7000\n")

	cfg, err := load("", dir, envMap(map[string]string{
		"DEPVIZ_FILTER":     "all",
		"DEPVIZ_MAX_LABELS": "9",
	}))
	require.NoError(t, err)
	assert.Equal(t, "all", cfg.Filter)
	assert.Equal(t, 9, cfg.MaxLabelsToShow, "process env wins over .env")
	assert.Equal(t, ":7000", cfg.Server.Addr, ".env wins over file and defaults")
}

func TestLoad_InvalidEnv(t *testing.T) {
	tests := map[string]string{
		"DEPVIZ_MAX_LABELS":           "many",
		"DEPVIZ_CACHE_TTL":            "forever",
		"DEPVIZ_LOG_FILES_TO_COMPILE": "maybe",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := load("", t.TempDir(), envMap(map[string]string{key: value}))
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig), "err = %v", err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := t.TempDir()
	_, err := load(filepath.Join(dir, "nope.toml"), dir, noEnv)
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound), "err = %v", err)
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	p := write(t, dir, "depviz.ini", "filter=all\n")
	_, err := load(p, dir, noEnv)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   errors.Code
	}{
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, errors.ErrCodeInvalidConfig},
		{"bad filter", func(c *Config) { c.Filter = "export" }, errors.ErrCodeInvalidFilter},
		{"negative labels", func(c *Config) { c.MaxLabelsToShow = -1 }, errors.ErrCodeInvalidConfig},
		{"negative cache", func(c *Config) { c.Server.CacheSize = -2 }, errors.ErrCodeInvalidConfig},
		{"negative debounce", func(c *Config) { c.Server.WatchDebounce = -time.Second }, errors.ErrCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
	assert.NoError(t, Default().Validate())
}
