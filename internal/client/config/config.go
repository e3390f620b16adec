package config

import (
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/keepr/internal/common"
)

// Storage backends understood by the client.
const (
	StorageMemory = "memory"
	StorageBadger = "badger"
	StorageS3     = "s3"
	StorageIPFS   = "ipfs"
)

// Config holds runtime settings for the Keepr CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the Keepr gRPC endpoint.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - ChainBackend / ChainRPCURL / ContractAddress / ChainID: the registry.
//   - StorageBackend: one of memory, badger, s3, ipfs.
//   - DataDir: local database and badger content live here.
//   - S3* / IPFS*: backend specific endpoints and credentials.
//   - MaxPayload: content size ceiling in bytes.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration

	ChainBackend    string
	ChainRPCURL     string
	ContractAddress string
	ChainID         int64

	StorageBackend string
	DataDir        string

	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Prefix       string
	IPFSAPIURL     string
	IPFSGatewayURL string
	IPFSJWT        string

	MaxPayload int
	LogLevel   string
}

// LoadDefaults populates c with local development defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.ChainBackend = "memory"
	c.ChainRPCURL = "http://127.0.0.1:8545"
	c.ContractAddress = ""
	c.ChainID = 1337
	c.StorageBackend = StorageBadger
	c.DataDir = "~/.keepr"
	c.S3Region = "us-east-1"
	c.S3Bucket = "keepr"
	c.S3Prefix = "keeps/"
	c.IPFSAPIURL = "https://api.pinata.cloud"
	c.IPFSGatewayURL = "https://gateway.pinata.cloud"
	c.MaxPayload = common.MaxPayloadSize
	c.LogLevel = "warn"
}

// DatabasePath is the SQLite file inside DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "keepr.db")
}

// ContentDir is where the badger backend keeps envelopes.
func (c *Config) ContentDir() string {
	return filepath.Join(c.DataDir, "content")
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
