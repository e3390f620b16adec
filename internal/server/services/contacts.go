package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/dbx"
	"github.com/dmitrijs2005/keepr/internal/envelope"
	"github.com/dmitrijs2005/keepr/internal/notify"
	"github.com/dmitrijs2005/keepr/internal/server/models"
	"github.com/dmitrijs2005/keepr/internal/server/repositories/repomanager"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ContactService stores emails for keep parties and feeds them to the
// notification dispatcher.
type ContactService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	registry    chain.Registry
}

// NewContactService returns a service that, when registry is non-nil, only
// accepts contacts from the on-chain creator of the keep, and only for the
// addresses the keep names as recipient or fallback.
func NewContactService(db *sql.DB, m repomanager.RepositoryManager, registry chain.Registry) *ContactService {
	return &ContactService{db: db, repomanager: m, registry: registry}
}

func (s *ContactService) Register(ctx context.Context, caller, contentAddress string, keepID uint64, contacts []models.Contact) (int, error) {
	creator, err := normalizeAddress(caller)
	if err != nil {
		return 0, err
	}
	if contentAddress == "" {
		return 0, fmt.Errorf("%w: empty content address", common.ErrInvalidAddress)
	}

	rows := make([]*models.Contact, 0, len(contacts))
	for _, c := range contacts {
		switch envelope.Role(c.Role) {
		case envelope.RoleRecipient, envelope.RoleFallback:
		default:
			return 0, fmt.Errorf("%w: unknown role %q", common.ErrInvalidAddress, c.Role)
		}
		addr, err := normalizeAddress(c.Address)
		if err != nil {
			return 0, err
		}
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return 0, fmt.Errorf("%w: %q", common.ErrInvalidEmail, c.Email)
		}
		rows = append(rows, &models.Contact{
			ContentAddress: contentAddress,
			KeepID:         keepID,
			Role:           c.Role,
			Address:        addr,
			Email:          c.Email,
		})
	}

	if s.registry != nil {
		k, err := s.registry.FindByContentAddress(ctx, contentAddress)
		if err != nil {
			if errors.Is(err, chain.ErrKeepNotFound) {
				return 0, common.ErrorNotFound
			}
			return 0, common.ErrorInternal
		}
		if k.ID != keepID || k.Creator != ethcommon.HexToAddress(creator) {
			return 0, common.ErrorUnauthorized
		}
		for _, c := range rows {
			if err := partyOf(k, c); err != nil {
				return 0, err
			}
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Contacts(tx)
		for _, c := range rows {
			if err := repo.Upsert(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, common.ErrorInternal
	}
	return len(rows), nil
}

// partyOf checks that c names the address the keep holds for c's role.
func partyOf(k *chain.Keep, c *models.Contact) error {
	addr := ethcommon.HexToAddress(c.Address)
	switch envelope.Role(c.Role) {
	case envelope.RoleRecipient:
		if addr == k.Recipient {
			return nil
		}
	case envelope.RoleFallback:
		if k.HasFallback() && addr == k.Fallback {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is not the %s of keep %d", common.ErrInvalidAddress, c.Address, c.Role, k.ID)
}

// ContactsForKeep implements notify.ContactSource.
func (s *ContactService) ContactsForKeep(ctx context.Context, contentAddress string) ([]notify.Contact, error) {
	list, err := s.repomanager.Contacts(s.db).ListByContentAddress(ctx, contentAddress)
	if err != nil {
		return nil, err
	}
	out := make([]notify.Contact, 0, len(list))
	for _, c := range list {
		out = append(out, notify.Contact{
			Role:    envelope.Role(c.Role),
			Address: ethcommon.HexToAddress(c.Address),
			Email:   c.Email,
		})
	}
	return out, nil
}
