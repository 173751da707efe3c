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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
gateway:
  mode: ws
  invite_code: "fed11abc"
  default_policy: first
database:
  path: "/tmp/test.db"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
api:
  port: 8080
security:
  password: "hunter2"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeWS, cfg.Gateway.Mode)
	assert.Equal(t, "fed11abc", cfg.Gateway.InviteCode)
	assert.Equal(t, PolicyFirst, cfg.Gateway.DefaultPolicy)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "broker.local", cfg.MQTT.Broker.Host)
	assert.Equal(t, 8080, cfg.API.Port)
	// Defaults survive for keys the file omits.
	assert.Equal(t, "sim", cfg.Gateway.Backend)
	assert.Equal(t, 256, cfg.WebSocket.SendBuffer)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PASSWORD", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.API.Port)
	assert.Equal(t, ModeDefault, cfg.Gateway.Mode)
	assert.Equal(t, PolicySole, cfg.Gateway.DefaultPolicy)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
gateway:
  mode: grpc
security:
  password: "x"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.mode")
}

func TestLoad_LegacyEnvOverrides(t *testing.T) {
	t.Setenv("FEDERATION_INVITE_CODE", "fed11invite")
	t.Setenv("FM_DB_PATH", "/var/lib/fm.db")
	t.Setenv("PASSWORD", "pw")
	t.Setenv("DOMAIN", "https://pay.example.com")
	t.Setenv("PORT", "4000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "fed11invite", cfg.Gateway.InviteCode)
	assert.Equal(t, "/var/lib/fm.db", cfg.Database.Path)
	assert.Equal(t, "pw", cfg.Security.Password)
	assert.Equal(t, "https://pay.example.com", cfg.Gateway.Domain)
	assert.Equal(t, 4000, cfg.API.Port)
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("FEDIMINT_HTTP_API_PORT", "5000")
	t.Setenv("FEDIMINT_HTTP_PASSWORD", "pw")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.API.Port)
}

func TestLoad_BadPortEnv(t *testing.T) {
	t.Setenv("PASSWORD", "pw")
	t.Setenv("PORT", "not-a-number")

	_, err := Load("")
	assert.ErrorContains(t, err, "PORT")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Security.Password = "pw"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:   "hash only is enough",
			mutate: func(c *Config) { c.Security.Password = ""; c.Security.PasswordHash = "$argon2id$..." },
		},
		{
			name:    "missing credential",
			mutate:  func(c *Config) { c.Security.Password = "" },
			wantErr: "security.password",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.Gateway.DefaultPolicy = "random" },
			wantErr: "gateway.default_policy",
		},
		{
			name:    "unsupported backend",
			mutate:  func(c *Config) { c.Gateway.Backend = "rust" },
			wantErr: "gateway.backend",
		},
		{
			name:    "influx without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
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

func TestConfig_Durations(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, "30s", cfg.GetReadTimeout().String())
	assert.Equal(t, "0s", cfg.GetWriteTimeout().String())
	assert.Equal(t, "1m0s", cfg.GetIdleTimeout().String())
	assert.Equal(t, "1m0s", cfg.GetTicketTTL().String())
	assert.Equal(t, "500ms", cfg.GetSimStepDelay().String())
}
