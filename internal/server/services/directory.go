package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/cryptox"
	"github.com/dmitrijs2005/keepr/internal/keys"
	"github.com/dmitrijs2005/keepr/internal/server/models"
	"github.com/dmitrijs2005/keepr/internal/server/repositories/repomanager"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// DirectoryService maps wallet addresses to published encryption keys.
type DirectoryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewDirectoryService(db *sql.DB, m repomanager.RepositoryManager) *DirectoryService {
	return &DirectoryService{db: db, repomanager: m}
}

// Publish stores publicKey for caller. sig must be caller's wallet signature
// over keys.PublicationMessage.
func (s *DirectoryService) Publish(ctx context.Context, caller string, publicKey, sig []byte) error {
	addr, err := normalizeAddress(caller)
	if err != nil {
		return err
	}
	if _, err := cryptox.PublicKeyAddress(publicKey); err != nil {
		return err
	}

	wallet := ethcommon.HexToAddress(addr)
	if err := cryptox.VerifyAddressSignature(wallet, keys.PublicationMessage(wallet, publicKey), sig); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorUnauthorized, err)
	}

	err = s.repomanager.PublicKeys(s.db).Upsert(ctx, &models.PublicKey{
		Address:   addr,
		PublicKey: publicKey,
		Signature: sig,
	})
	if err != nil {
		return common.ErrorInternal
	}
	return nil
}

// Lookup returns common.ErrorNotFound when the address never published.
func (s *DirectoryService) Lookup(ctx context.Context, address string) ([]byte, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	k, err := s.repomanager.PublicKeys(s.db).Get(ctx, addr)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, common.ErrorInternal
	}
	return k.PublicKey, nil
}
