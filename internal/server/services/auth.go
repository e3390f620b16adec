// Package services contains server-side business logic: wallet sign-in,
// the public key directory and notification contacts.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/cryptox"
	"github.com/dmitrijs2005/keepr/internal/dbx"
	"github.com/dmitrijs2005/keepr/internal/rpc"
	"github.com/dmitrijs2005/keepr/internal/server/auth"
	"github.com/dmitrijs2005/keepr/internal/server/config"
	"github.com/dmitrijs2005/keepr/internal/server/models"
	"github.com/dmitrijs2005/keepr/internal/server/repositories/repomanager"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService signs wallets in: it hands out a one-time nonce and trades a
// valid signature over it for an access token.
type AuthService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	challengeValidityDuration   time.Duration
	now                         func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		challengeValidityDuration:   cfg.ChallengeValidityDuration,
		now:                         time.Now,
	}
}

// normalizeAddress returns the lowercase hex form used as a database key.
func normalizeAddress(address string) (string, error) {
	if !ethcommon.IsHexAddress(address) {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidAddress, address)
	}
	return strings.ToLower(ethcommon.HexToAddress(address).Hex()), nil
}

// Challenge issues a nonce for address and the message to sign.
func (s *AuthService) Challenge(ctx context.Context, address string) (*models.Challenge, string, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, "", err
	}

	c, err := s.repomanager.Challenges(s.db).Create(ctx, addr, uuid.NewString(), s.challengeValidityDuration)
	if err != nil {
		return nil, "", common.ErrorInternal
	}
	return c, rpc.LoginMessage(c.Address, c.Nonce), nil
}

// Login consumes the nonce and, if sig is the wallet's signature over the
// challenge message, returns an access token. A nonce can be tried once.
func (s *AuthService) Login(ctx context.Context, address, nonce string, sig []byte) (*AccessToken, error) {
	addr, err := normalizeAddress(address)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	var challenge *models.Challenge
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Challenges(tx)
		c, err := repo.Find(ctx, nonce)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, nonce); err != nil {
			return err
		}
		challenge = c
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if challenge.Address != addr || s.now().After(challenge.ExpiresAt) {
		return nil, common.ErrorUnauthorized
	}
	msg := rpc.LoginMessage(challenge.Address, challenge.Nonce)
	if err := cryptox.VerifyAddressSignature(ethcommon.HexToAddress(addr), []byte(msg), sig); err != nil {
		return nil, common.ErrorUnauthorized
	}

	token, expires, err := auth.GenerateToken(addr, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &AccessToken{Token: token, ExpiresAt: expires}, nil
}

// PurgeExpired drops unanswered challenges.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repomanager.Challenges(s.db).DeleteExpired(ctx)
}
