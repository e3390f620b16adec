package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/keepr/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-m string   metrics bind address
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-n string   chain backend (memory|ethereum)
//	-rpc string chain RPC URL
//	-contract string  Keepr contract address
//	-chain int  chain id
//	-redis string     Redis address
//	-i int      notification scan interval, seconds
//	-l string   log level
//
// Unknown flags are dropped by flagx.FilterArgs before parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-m", "-d", "-s", "-t", "-n", "-rpc", "-contract", "-chain", "-redis", "-i", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")

	fs.StringVar(&config.ChainBackend, "n", config.ChainBackend, "chain backend (memory|ethereum)")
	fs.StringVar(&config.ChainRPCURL, "rpc", config.ChainRPCURL, "chain RPC URL")
	fs.StringVar(&config.ContractAddress, "contract", config.ContractAddress, "Keepr contract address")
	fs.Int64Var(&config.ChainID, "chain", config.ChainID, "chain id")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "Redis address")

	notifyInterval := fs.Int("i", int(config.NotifyInterval.Seconds()), "notification scan interval (in seconds)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.NotifyInterval = time.Duration(*notifyInterval) * time.Second
}
