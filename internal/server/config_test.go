package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
[server]
mode = "tcp"

[log]
path = "./logs"
rotation_time = "24h"
max_age = "168h"
level = "info"
format = "json"

[neo4j]
uri = "bolt://localhost:7687"
`

func TestParseConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(minimalConfig))
		require.NoError(t, err)

		assert.Equal(t, ":7000", cfg.Server.TCPAddr)
		assert.True(t, cfg.Server.ServesTCP())
		assert.False(t, cfg.Server.ServesHTTP())
		assert.True(t, cfg.Server.MetricsEnabled())

		assert.Equal(t, "A0001", cfg.Dialogue.DefaultUser)
		assert.Equal(t, 0.92, cfg.Dialogue.TagThreshold)
		assert.Equal(t, "30m", cfg.Session.TTL)
		assert.Equal(t, "neo4j", cfg.Neo4j.Database)
		assert.Equal(t, "./data/review", cfg.Review.Path)
		assert.Equal(t, "5s", cfg.Online.Timeout)
	})

	t.Run("unsupported pattern", func(t *testing.T) {
		_, err := ParseConfig([]byte(minimalConfig + "\n[dialogue]\npattern = \"vec\"\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dialogue")
	})

	t.Run("http mode requires port", func(t *testing.T) {
		data := []byte(`
[server]
mode = "http"

[log]
path = "./logs"
rotation_time = "24h"
max_age = "168h"
level = "info"
format = "json"

[neo4j]
uri = "bolt://localhost:7687"
`)
		_, err := ParseConfig(data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port")
	})

	t.Run("missing neo4j uri", func(t *testing.T) {
		_, err := ParseConfig([]byte(`
[log]
path = "./logs"
rotation_time = "24h"
max_age = "168h"
level = "info"
format = "json"
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "neo4j")
	})

	t.Run("online enabled requires key", func(t *testing.T) {
		_, err := ParseConfig([]byte(minimalConfig + "\n[online]\nenabled = true\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_key")
	})

	t.Run("env overrides secrets", func(t *testing.T) {
		t.Setenv(EnvAMapKey, "amap-key")
		t.Setenv(EnvNeo4jPassword, "secret")

		cfg, err := ParseConfig([]byte(minimalConfig + "\n[online]\nenabled = true\n"))
		require.NoError(t, err)
		assert.Equal(t, "amap-key", cfg.Online.APIKey)
		assert.Equal(t, "secret", cfg.Neo4j.Password)
	})

	t.Run("bad toml", func(t *testing.T) {
		_, err := ParseConfig([]byte("[server"))
		assert.Error(t, err)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("shipped config", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.toml"))
		require.NoError(t, err)

		assert.Equal(t, "both", cfg.Server.Mode)
		assert.Equal(t, 8080, cfg.Server.Port)
		require.Len(t, cfg.Kafka.Consumers, 1)
		assert.Equal(t, []string{"nlu.dialogue.turns", "nlu.dialogue.unanswered"}, cfg.Kafka.Consumers[0].Topics)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
		assert.Error(t, err)
	})

	t.Run("dotenv file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(minimalConfig), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvRedisPassword+"=from-dotenv\n"), 0o644))

		t.Chdir(dir)
		t.Cleanup(func() { _ = os.Unsetenv(EnvRedisPassword) })

		cfg, err := LoadConfig("config.toml")
		require.NoError(t, err)
		assert.Equal(t, "from-dotenv", cfg.Redis.Password)
	})
}

func TestServerModes(t *testing.T) {
	tests := []struct {
		mode               string
		tcp, http, mcpMode bool
	}{
		{"tcp", true, false, false},
		{"http", false, true, false},
		{"both", true, true, false},
		{"mcp", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			s := ServerConfig{Mode: tt.mode, Port: 8080}
			require.NoError(t, s.Validate())
			assert.Equal(t, tt.tcp, s.ServesTCP())
			assert.Equal(t, tt.http, s.ServesHTTP())
			assert.Equal(t, tt.mcpMode, s.ServesMCP())
		})
	}

	bad := ServerConfig{Mode: "grpc"}
	assert.Error(t, bad.Validate())

	timeout := ServerConfig{IdleTimeout: "soon"}
	assert.Error(t, timeout.Validate())
}
