package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/dmitrijs2005/keepr/internal/logging"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	BackendMemory   = "memory"
	BackendEthereum = "ethereum"
)

// DefaultConfig is what the in-process ledger enforces.
func DefaultConfig() Config {
	return Config{
		MinUnlockDelay: 24 * time.Hour,
		MaxUnlockDelay: 50 * 365 * 24 * time.Hour,
		ClaimWindow:    30 * 24 * time.Hour,
		PlatformFee:    new(big.Int),
	}
}

type ConnectConfig struct {
	Backend  string
	RPCURL   string
	Contract string
	ChainID  int64
}

// Connect returns the registry selected by cfg.Backend and a func that
// releases its connection. signer may be nil for read-only use.
func Connect(ctx context.Context, cfg ConnectConfig, signer Transactor, logger logging.Logger) (Registry, func(), error) {
	switch cfg.Backend {
	case "", BackendMemory:
		logger.Warn(ctx, "using in-process ledger; keeps are lost on exit")
		return NewMemoryLedger(DefaultConfig(), time.Now), func() {}, nil

	case BackendEthereum:
		if !ethcommon.IsHexAddress(cfg.Contract) {
			return nil, nil, fmt.Errorf("invalid contract address %q", cfg.Contract)
		}
		client, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
		}
		reg, err := NewEthereumRegistry(client, ethcommon.HexToAddress(cfg.Contract), big.NewInt(cfg.ChainID), signer, logger)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return reg, client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown chain backend %q", cfg.Backend)
}
