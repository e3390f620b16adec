package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-m", ":9100", "-d", "db", "-s", "secret", "-t", "30",
			"-n", "ethereum", "-rpc", "http://node", "-contract", "0xc0", "-chain", "5",
			"-redis", "redis:6379", "-i", "15", "-l", "warn",
		},
			expected: &Config{
				EndpointAddrGRPC:            "127.0.0.1:9090",
				MetricsAddr:                 ":9100",
				DatabaseDSN:                 "db",
				SecretKey:                   "secret",
				AccessTokenValidityDuration: 30 * time.Minute,
				ChainBackend:                "ethereum",
				ChainRPCURL:                 "http://node",
				ContractAddress:             "0xc0",
				ChainID:                     5,
				RedisAddr:                   "redis:6379",
				NotifyInterval:              15 * time.Second,
				LogLevel:                    "warn",
			}},
		{name: "unknown flags are ignored", args: []string{"cmd", "-x", "1", "-a", ":1"},
			expected: &Config{EndpointAddrGRPC: ":1"}},
		{name: "bad int panics", args: []string{"cmd", "-chain", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
