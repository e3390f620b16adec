package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv("KEEPR_CONFIG", "")

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_grpc":             "www.example:9000",
		"metrics_addr":                   ":9999",
		"database_dsn":                   "postgres://db",
		"secret_key":                     "my_secret_key",
		"access_token_validity_duration": "10m",
		"challenge_validity_duration":    "30s",
		"chain_backend":                  "ethereum",
		"chain_rpc_url":                  "http://node:8545",
		"contract_address":               "0x00000000000000000000000000000000000000c0",
		"chain_id":                       11155111,
		"redis_addr":                     "redis:6379",
		"notify_channel":                 "mail",
		"notify_interval":                "2m",
		"max_notify_attempts":            3,
		"log_level":                      "debug",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, ":9999", cfg.MetricsAddr)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 10*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 30*time.Second, cfg.ChallengeValidityDuration)
		assert.Equal(t, "ethereum", cfg.ChainBackend)
		assert.Equal(t, "http://node:8545", cfg.ChainRPCURL)
		assert.Equal(t, "0x00000000000000000000000000000000000000c0", cfg.ContractAddress)
		assert.Equal(t, int64(11155111), cfg.ChainID)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, "mail", cfg.NotifyChannel)
		assert.Equal(t, 2*time.Minute, cfg.NotifyInterval)
		assert.Equal(t, 3, cfg.MaxNotifyAttempts)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		path := writeTempJSON(t, dir, "partial.json", map[string]any{"redis_addr": "r:1"})
		os.Args = []string{"testbin", "-c", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "r:1", cfg.RedisAddr)
		assert.Equal(t, ":50051", cfg.EndpointAddrGRPC)
		assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{EndpointAddrGRPC: "defaults:1234", NotifyInterval: time.Second}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
		assert.Equal(t, time.Second, cfg.NotifyInterval)
	})

	t.Run("env var names the file", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv("KEEPR_CONFIG", pathFlag)

		cfg := &Config{}
		parseJson(cfg)
		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
