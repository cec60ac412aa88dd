package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, time.Second, cfg.MessagePacing)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "funnel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9000"
message_pacing: 250ms
storage:
  backend: sqlite
  dsn: /tmp/x.db
definitions:
  source: sql
bot_username: "@funnel_bot"
bot_link_format: "https://example.com/join/{funnel}"
`), 0o644))

	t.Setenv("FUNNEL_HTTP_ADDR", " :9100 ")
	t.Setenv("DISCORD_BOT_TOKEN", "tok")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.HTTPAddr)
	assert.Equal(t, 250*time.Millisecond, cfg.MessagePacing)
	assert.Equal(t, StorageSQLite, cfg.Storage.Backend)
	assert.Equal(t, DefinitionsSQL, cfg.Definitions.Source)
	assert.Equal(t, "tok", cfg.Discord.Token)
	assert.Equal(t, "@funnel_bot", cfg.BotUsername)
	assert.Equal(t, "https://example.com/join/{funnel}", cfg.BotLinkFormat)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().HTTPAddr, cfg.HTTPAddr)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: [unclosed"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config file")
}

func TestApplyEnv_InvalidDuration(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{"FUNNEL_MESSAGE_PACING": "soon"}))
	assert.ErrorContains(t, err, "FUNNEL_MESSAGE_PACING")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mongo" }, "unknown storage backend"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = StoragePostgres }, "storage.dsn"},
		{"sql definitions on memory", func(c *Config) { c.Definitions.Source = DefinitionsSQL }, "sql definitions"},
		{"empty definitions dir", func(c *Config) { c.Definitions.Dir = "" }, "definitions.dir"},
		{"bad webhook url", func(c *Config) { c.Webhook.URL = "not a url" }, "webhook.url"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"zero lock ttl", func(c *Config) { c.LockTTL = 0 }, "lock_ttl"},
		{"link format without funnel", func(c *Config) { c.BotLinkFormat = "https://t.me/%s" }, "bot_link_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestSQLDSN(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = StorageSQLite
	assert.Equal(t, "funnel.db", cfg.SQLDSN())

	cfg.Storage.DSN = "custom.db"
	assert.Equal(t, "custom.db", cfg.SQLDSN())

}

func TestSessionDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = StorageFile
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ".funnel/sessions", cfg.SessionDir())

	cfg.Storage.DSN = "/var/lib/funnel"
	assert.Equal(t, "/var/lib/funnel", cfg.SessionDir())
}
