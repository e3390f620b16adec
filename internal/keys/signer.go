package keys

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/dmitrijs2005/keepr/internal/cryptox"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the wallet: it signs messages for key derivation and sign-in,
// and transactions for chain writes.
type Signer interface {
	Address() common.Address
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
	TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}

// WalletSigner holds a secp256k1 wallet key in memory.
type WalletSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewWalletSigner(key *ecdsa.PrivateKey) *WalletSigner {
	return &WalletSigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// ParseWalletKey imports a hex private key, with or without 0x.
func ParseWalletKey(hexKey string) (*WalletSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}
	return NewWalletSigner(key), nil
}

func (w *WalletSigner) Address() common.Address {
	return w.address
}

func (w *WalletSigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return cryptox.SignMessage(w.key, msg)
}

func (w *WalletSigner) TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}
