package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/keepr/internal/flagx"
	"github.com/dmitrijs2005/keepr/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields tell a missing key apart from a zero value.
type JsonConfig struct {
	ServerEndpointAddr  *string         `json:"server_endpoint_addr"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	ChainBackend        *string         `json:"chain_backend"`
	ChainRPCURL         *string         `json:"chain_rpc_url"`
	ContractAddress     *string         `json:"contract_address"`
	ChainID             *int64          `json:"chain_id"`
	StorageBackend      *string         `json:"storage_backend"`
	DataDir             *string         `json:"data_dir"`
	S3Region            *string         `json:"s3_region"`
	S3Endpoint          *string         `json:"s3_endpoint"`
	S3AccessKey         *string         `json:"s3_access_key"`
	S3SecretKey         *string         `json:"s3_secret_key"`
	S3Bucket            *string         `json:"s3_bucket"`
	S3Prefix            *string         `json:"s3_prefix"`
	IPFSAPIURL          *string         `json:"ipfs_api_url"`
	IPFSGatewayURL      *string         `json:"ipfs_gateway_url"`
	IPFSJWT             *string         `json:"ipfs_jwt"`
	MaxPayload          *int            `json:"max_payload"`
	LogLevel            *string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from a JSON file. Panics on
// read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	setString(&cfg.ChainBackend, jc.ChainBackend)
	setString(&cfg.ChainRPCURL, jc.ChainRPCURL)
	setString(&cfg.ContractAddress, jc.ContractAddress)
	if jc.ChainID != nil {
		cfg.ChainID = *jc.ChainID
	}
	setString(&cfg.StorageBackend, jc.StorageBackend)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3Endpoint, jc.S3Endpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Prefix, jc.S3Prefix)
	setString(&cfg.IPFSAPIURL, jc.IPFSAPIURL)
	setString(&cfg.IPFSGatewayURL, jc.IPFSGatewayURL)
	setString(&cfg.IPFSJWT, jc.IPFSJWT)
	if jc.MaxPayload != nil {
		cfg.MaxPayload = *jc.MaxPayload
	}
	setString(&cfg.LogLevel, jc.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
