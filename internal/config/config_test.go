// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Covers env expansion, defaults, backend selection, and base URL resolution

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "sessions.json", cfg.Storage.SnapshotPath)
	assert.Equal(t, "uploads", cfg.Storage.UploadDir)
	assert.Empty(t, cfg.Notify.Backend)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_LANTERN_BOT_TOKEN", "123:abc")

	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
notify:
  backend: "telegram"
  telegram:
    bot_token: "${TEST_LANTERN_BOT_TOKEN}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.Notify.Telegram.BotToken)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing http addr",
			cfg:     Config{},
			wantErr: "server.http_addr is required",
		},
		{
			name: "tailscale enabled allows empty http addr",
			cfg: Config{
				Tailscale: TailscaleConfig{Enabled: true, Hostname: "lantern"},
			},
		},
		{
			name: "tailscale enabled requires hostname",
			cfg: Config{
				Tailscale: TailscaleConfig{Enabled: true},
			},
			wantErr: "tailscale.hostname is required",
		},
		{
			name: "telegram backend requires bot token",
			cfg: Config{
				Server: ServerConfig{HTTPAddr: "localhost:8080"},
				Notify: NotifyConfig{Backend: "telegram"},
			},
			wantErr: "notify.telegram.bot_token is required",
		},
		{
			name: "matrix backend requires credentials",
			cfg: Config{
				Server: ServerConfig{HTTPAddr: "localhost:8080"},
				Notify: NotifyConfig{Backend: "matrix", Matrix: MatrixConfig{Homeserver: "https://matrix.example"}},
			},
			wantErr: "notify.matrix.user_id is required",
		},
		{
			name: "unknown backend rejected",
			cfg: Config{
				Server: ServerConfig{HTTPAddr: "localhost:8080"},
				Notify: NotifyConfig{Backend: "carrier-pigeon"},
			},
			wantErr: "notify.backend must be",
		},
		{
			name: "disabled backend valid",
			cfg: Config{
				Server: ServerConfig{HTTPAddr: "localhost:8080"},
				Notify: NotifyConfig{Backend: "none"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestResolveBaseURL(t *testing.T) {
	explicit := Config{Server: ServerConfig{HTTPAddr: "localhost:8080", BaseURL: "https://lantern.example"}}
	assert.Equal(t, "https://lantern.example", explicit.ResolveBaseURL())

	derived := Config{Server: ServerConfig{HTTPAddr: "localhost:8080"}}
	assert.Equal(t, "http://localhost:8080", derived.ResolveBaseURL())

	funnel := Config{Tailscale: TailscaleConfig{Enabled: true, Hostname: "lantern", Funnel: true}}
	assert.Equal(t, "https://lantern", funnel.ResolveBaseURL())

	t.Setenv("LANTERN_BASE_URL", "https://env.example")
	env := Config{Server: ServerConfig{HTTPAddr: "localhost:8080"}}
	assert.Equal(t, "https://env.example", env.ResolveBaseURL())
}
