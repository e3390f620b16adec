// Package config loads runtime configuration for the Keepr CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file named by -c/-config or KEEPR_CONFIG (see parseJson).
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string        address:port of the Keepr server
//	-i int           online status check interval (seconds)
//	-n string        chain backend (memory|ethereum)
//	-rpc string      chain RPC URL
//	-contract string Keepr contract address
//	-chain int       chain id
//	-storage string  storage backend (memory|badger|s3|ipfs)
//	-dir string      local data directory
//	-max int         payload ceiling in bytes
//	-l string        log level
//
// # JSON schema
//
// Durations accept strings like "3s" or integer nanoseconds. Credentials for
// S3 and the pinning service are only read from JSON:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "storage_backend": "ipfs",
//	  "ipfs_jwt": "..."
//	}
package config
