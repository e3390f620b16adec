package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/keepr/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Unknown flags are dropped by flagx.FilterArgs before parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-i", "-n", "-rpc", "-contract", "-chain", "-storage", "-dir", "-max", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	fs.StringVar(&cfg.ChainBackend, "n", cfg.ChainBackend, "chain backend (memory|ethereum)")
	fs.StringVar(&cfg.ChainRPCURL, "rpc", cfg.ChainRPCURL, "chain RPC URL")
	fs.StringVar(&cfg.ContractAddress, "contract", cfg.ContractAddress, "Keepr contract address")
	fs.Int64Var(&cfg.ChainID, "chain", cfg.ChainID, "chain id")

	fs.StringVar(&cfg.StorageBackend, "storage", cfg.StorageBackend, "storage backend (memory|badger|s3|ipfs)")
	fs.StringVar(&cfg.DataDir, "dir", cfg.DataDir, "local data directory")
	fs.IntVar(&cfg.MaxPayload, "max", cfg.MaxPayload, "payload ceiling in bytes")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
