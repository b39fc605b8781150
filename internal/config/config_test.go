package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/conneroisu/docsite/internal/errors"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	t.Setenv("NODE_ENV", "")
	t.Setenv("DOCSITE_MODE", "")

	v := viper.New()
	v.SetEnvPrefix("DOCSITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	RegisterDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "localhost:3001", cfg.Addr())
	assert.Equal(t, "content", cfg.Content.Dir)
	assert.Equal(t, "public", cfg.Content.PublicDir)
	assert.Equal(t, "content", cfg.Content.PublicSubdir)
	assert.Equal(t, "ws://localhost:3001", cfg.Client.URL)
	assert.Equal(t, time.Second, cfg.Client.ReconnectDelay)
	assert.Zero(t, cfg.Client.MaxRetries)
	assert.Zero(t, cfg.Watch.Debounce)
	assert.False(t, cfg.Watch.RelocateOnChange)
	assert.True(t, cfg.Watch.RefreshRegistry)
	assert.Equal(t, []string{"localhost:*", "127.0.0.1:*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".docsite.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: production
server:
  host: 127.0.0.1
  port: 4000
content:
  dir: docs
  public_dir: static
  public_subdir: mirrored
watch:
  ignore: ["*.tmp", "drafts/**"]
  debounce: 150ms
  relocate_on_change: true
client:
  reconnect_delay: 2s
  max_retries: 5
log:
  level: debug
  format: json
`), 0o644))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, ModeProduction, cfg.Mode)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "127.0.0.1:4000", cfg.Addr())
	assert.Equal(t, "ws://127.0.0.1:4000", cfg.Client.URL)
	assert.Equal(t, "docs", cfg.Content.Dir)
	assert.Equal(t, "static", cfg.Content.PublicDir)
	assert.Equal(t, []string{"*.tmp", "drafts/**"}, cfg.Watch.Ignore)
	assert.Equal(t, 150*time.Millisecond, cfg.Watch.Debounce)
	assert.True(t, cfg.Watch.RelocateOnChange)
	assert.Equal(t, 2*time.Second, cfg.Client.ReconnectDelay)
	assert.Equal(t, 5, cfg.Client.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	mirror, err := cfg.MirrorRoot()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(mirror, filepath.Join("static", "mirrored")))
}

func TestModeFromEnvironment(t *testing.T) {
	v := newViper(t)
	t.Setenv("NODE_ENV", "production")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, ModeProduction, cfg.Mode)

	t.Setenv("DOCSITE_MODE", "test")
	cfg, err = LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, ModeTest, cfg.Mode)
}

func TestEnvironmentOverridesPort(t *testing.T) {
	v := newViper(t)
	t.Setenv("DOCSITE_SERVER_PORT", "3999")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 3999, cfg.Server.Port)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		field string
	}{
		{"bad mode", "mode", "staging", "mode"},
		{"port too large", "server.port", 70000, "server.port"},
		{"negative port", "server.port", -1, "server.port"},
		{"dangerous host", "server.host", "localhost;rm", "server.host"},
		{"content traversal", "content.dir", "../elsewhere", "content.dir"},
		{"absolute subdir", "content.public_subdir", "/abs", "content.public_subdir"},
		{"subdir traversal", "content.public_subdir", "../../x", "content.public_subdir"},
		{"negative debounce", "watch.debounce", "-1s", "watch.debounce"},
		{"negative retries", "client.max_retries", -3, "client.max_retries"},
		{"http client url", "client.url", "http://localhost:3001", "client.url"},
		{"client url without host", "client.url", "ws:///reload", "client.url"},
		{"bad origin pattern", "server.allowed_origins", []string{"localhost:*", "ftp://x"}, "server.allowed_origins"},
		{"bad log format", "log.format", "xml", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t)
			v.Set(tt.key, tt.value)

			_, err := LoadFrom(v)
			require.Error(t, err)
			assert.True(t, docerrors.IsType(err, docerrors.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestAbsoluteDirectoriesAllowed(t *testing.T) {
	dir := t.TempDir()
	v := newViper(t)
	v.Set("content.dir", filepath.Join(dir, "content"))
	v.Set("content.public_dir", filepath.Join(dir, "public"))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	root, err := cfg.ContentRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "content"), root)

	pub, err := cfg.PublicRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "public"), pub)
}
