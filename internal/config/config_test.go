package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "HS512", cfg.Auth.Method)
	assert.Equal(t, 2*time.Second, cfg.Presence.Timeout)
	assert.Zero(t, cfg.Presence.TTL)
	assert.Equal(t, 100, cfg.Chat.FanoutPageSize)
	assert.Equal(t, "compressed/video", cfg.Media.Folders.CompressedVideo)
	assert.Equal(t, "direct", cfg.Notify.Backend)
}

func TestPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomchat.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":8080"

[database]
driver = "postgres"
dsn = "postgres://file"

[chat]
page_limit = 20
fanout_workers = 2

[media.folders]
thumbnail = "thumbs"
`), 0644))
	t.Setenv("ROOMCHAT_CHAT__PAGE_LIMIT", "30")
	t.Setenv("ROOMCHAT_REDIS__ADDR", "redis:6380")
	t.Setenv("ROOMCHAT_PRESENCE__TTL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30, cfg.Chat.PageLimit)
	assert.Equal(t, 2, cfg.Chat.FanoutWorkers)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 90*time.Second, cfg.Presence.TTL)
	assert.Equal(t, "thumbs", cfg.Media.Folders.Thumbnail)
	assert.Equal(t, "photo", cfg.Media.Folders.Photo)
	// river reuses the postgres dsn unless told otherwise
	assert.Equal(t, "postgres://file", cfg.Notify.DatabaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Auth.Secret = "s"
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = "postgres://x"
		cfg.Redis.Backplane = "redis"
		cfg.Notify.Backend = "direct"
		return cfg
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"mysql", func(c *Config) { c.Database.Driver = "mysql" }, false},
		{"no secret", func(c *Config) { c.Auth.Secret = "" }, true},
		{"no dsn", func(c *Config) { c.Database.DSN = "" }, true},
		{"bad driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"bad backplane", func(c *Config) { c.Redis.Backplane = "kafka" }, true},
		{"river without url", func(c *Config) { c.Notify.Backend = "river" }, true},
		{"river", func(c *Config) { c.Notify.Backend = "river"; c.Notify.DatabaseURL = "postgres://q" }, false},
		{"bad backend", func(c *Config) { c.Notify.Backend = "sms" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roomchat.toml")
	require.NoError(t, InitConfig(path))
	assert.Error(t, InitConfig(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "change-me", cfg.Auth.Secret)
	assert.NoError(t, Validate(cfg))
}
