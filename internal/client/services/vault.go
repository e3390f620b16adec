// Package services contains application services of the Keepr CLI: the local
// vault that guards cached key material, and the wallet session that wires
// the Keep pipeline together.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keepr/internal/client/repositories/keypairs"
	"github.com/dmitrijs2005/keepr/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/cryptox"
	"github.com/dmitrijs2005/keepr/internal/dbx"
	"github.com/dmitrijs2005/keepr/internal/keys"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const (
	metaSalt     = "salt"
	metaVerifier = "verifier"
	metaWallet   = "wallet"

	saltSize = 32
)

var ErrWrongPassphrase = errors.New("wrong passphrase")

// VaultService guards the local key cache with a passphrase.
//
// Contract:
//   - Initialized: whether a passphrase has been set on this machine.
//   - Unlock: derive the master key; the first call sets the passphrase.
//   - KeyCache: the key pair cache sealed under a master key from Unlock.
//   - LastWallet / RememberWallet: the address of the last connected wallet.
//   - Reset: forget the passphrase and every cached key pair.
type VaultService interface {
	Initialized(ctx context.Context) (bool, error)
	Unlock(ctx context.Context, passphrase []byte) ([]byte, error)
	KeyCache(masterKey []byte) keys.Cache
	LastWallet(ctx context.Context) (ethcommon.Address, bool, error)
	RememberWallet(ctx context.Context, address ethcommon.Address) error
	Reset(ctx context.Context) error
}

type vaultService struct {
	db *sql.DB
}

func NewVaultService(db *sql.DB) VaultService {
	return &vaultService{db: db}
}

func (v *vaultService) getMetadataRepo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (v *vaultService) Initialized(ctx context.Context) (bool, error) {
	salt, err := v.getMetadataRepo(v.db).Get(ctx, metaSalt)
	if err != nil {
		return false, err
	}
	return salt != nil, nil
}

// Unlock derives the master key from passphrase and checks it against the
// stored verifier. On a fresh database it stores a new salt and verifier
// instead, so the passphrase given first becomes the vault passphrase.
func (v *vaultService) Unlock(ctx context.Context, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrWrongPassphrase
	}

	repo := v.getMetadataRepo(v.db)

	salt, err := repo.Get(ctx, metaSalt)
	if err != nil {
		return nil, err
	}
	if salt == nil {
		return v.initialize(ctx, passphrase)
	}

	verifier, err := repo.Get(ctx, metaVerifier)
	if err != nil {
		return nil, err
	}

	masterKey := cryptox.DeriveMasterKey(passphrase, salt)
	if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(masterKey)) == 0 {
		common.WipeByteArray(masterKey)
		return nil, ErrWrongPassphrase
	}
	return masterKey, nil
}

func (v *vaultService) initialize(ctx context.Context, passphrase []byte) ([]byte, error) {
	salt := common.GenerateRandByteArray(saltSize)
	masterKey := cryptox.DeriveMasterKey(passphrase, salt)

	err := dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := v.getMetadataRepo(tx)
		if err := repo.Set(ctx, metaSalt, salt); err != nil {
			return err
		}
		return repo.Set(ctx, metaVerifier, cryptox.MakeVerifier(masterKey))
	})
	if err != nil {
		return nil, fmt.Errorf("initialize vault: %w", err)
	}
	return masterKey, nil
}

func (v *vaultService) KeyCache(masterKey []byte) keys.Cache {
	return keypairs.NewSQLiteRepository(v.db, masterKey)
}

func (v *vaultService) LastWallet(ctx context.Context) (ethcommon.Address, bool, error) {
	raw, err := v.getMetadataRepo(v.db).Get(ctx, metaWallet)
	if err != nil || raw == nil {
		return ethcommon.Address{}, false, err
	}
	if !ethcommon.IsHexAddress(string(raw)) {
		return ethcommon.Address{}, false, nil
	}
	return ethcommon.HexToAddress(string(raw)), true, nil
}

func (v *vaultService) RememberWallet(ctx context.Context, address ethcommon.Address) error {
	return v.getMetadataRepo(v.db).Set(ctx, metaWallet, []byte(address.Hex()))
}

// Reset wipes the passphrase and every cached key pair in one transaction.
// Key pairs can always be derived again from the wallet.
func (v *vaultService) Reset(ctx context.Context) error {
	return dbx.WithTx(ctx, v.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := keypairs.NewSQLiteRepository(tx, nil).Clear(ctx); err != nil {
			return err
		}
		return v.getMetadataRepo(tx).Clear(ctx)
	})
}
