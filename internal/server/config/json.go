package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/keepr/internal/flagx"
	"github.com/dmitrijs2005/keepr/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept strings such
// as "90s" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC            *string         `json:"endpoint_addr_grpc"`
	MetricsAddr                 *string         `json:"metrics_addr"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	ChallengeValidityDuration   *timex.Duration `json:"challenge_validity_duration"`
	ChainBackend                *string         `json:"chain_backend"`
	ChainRPCURL                 *string         `json:"chain_rpc_url"`
	ContractAddress             *string         `json:"contract_address"`
	ChainID                     *int64          `json:"chain_id"`
	RedisAddr                   *string         `json:"redis_addr"`
	NotifyChannel               *string         `json:"notify_channel"`
	NotifyInterval              *timex.Duration `json:"notify_interval"`
	MaxNotifyAttempts           *int            `json:"max_notify_attempts"`
	LogLevel                    *string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config (or the
// KEEPR_CONFIG environment variable). Keys absent from the file leave the
// current values alone. Unreadable files and invalid JSON panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.ChallengeValidityDuration, c.ChallengeValidityDuration)
	setString(&config.ChainBackend, c.ChainBackend)
	setString(&config.ChainRPCURL, c.ChainRPCURL)
	setString(&config.ContractAddress, c.ContractAddress)
	if c.ChainID != nil {
		config.ChainID = *c.ChainID
	}
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.NotifyChannel, c.NotifyChannel)
	setDuration(&config.NotifyInterval, c.NotifyInterval)
	if c.MaxNotifyAttempts != nil {
		config.MaxNotifyAttempts = *c.MaxNotifyAttempts
	}
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
