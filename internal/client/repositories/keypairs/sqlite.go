// Package keypairs caches derived encryption key pairs in the local SQLite
// database. Private keys are sealed with the vault master key and never
// written in the clear.
package keypairs

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/keepr/internal/cryptox"
	"github.com/dmitrijs2005/keepr/internal/dbx"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ErrCorrupted is returned when a cached row opens but does not describe a
// consistent key pair.
var ErrCorrupted = errors.New("cached key pair is corrupted")

type SQLiteRepository struct {
	db        dbx.DBTX
	masterKey []byte
	rand      io.Reader
}

// NewSQLiteRepository seals rows with masterKey, which must be a 32-byte key
// from cryptox.DeriveMasterKey.
func NewSQLiteRepository(db dbx.DBTX, masterKey []byte) *SQLiteRepository {
	return &SQLiteRepository{db: db, masterKey: masterKey, rand: rand.Reader}
}

func addressKey(a ethcommon.Address) string {
	return strings.ToLower(a.Hex())
}

func (r *SQLiteRepository) Get(ctx context.Context, address ethcommon.Address) (*cryptox.KeyPair, error) {
	var pub, sealed, iv []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT public_key, sealed_private, iv FROM keypairs WHERE address = ?`,
		addressKey(address)).Scan(&pub, &sealed, &iv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key pair: %w", err)
	}

	priv, err := cryptox.OpenPayload(r.masterKey, iv, sealed)
	if err != nil {
		return nil, fmt.Errorf("open key pair: %w", err)
	}

	kp, err := cryptox.KeyPairFromPrivate(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if !bytes.Equal(kp.PublicKey, pub) {
		return nil, ErrCorrupted
	}
	kp.Address = address
	return kp, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, kp *cryptox.KeyPair) error {
	sealed, iv, err := cryptox.SealPayload(r.rand, r.masterKey, kp.PrivateKey)
	if err != nil {
		return fmt.Errorf("seal key pair: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO keypairs (address, public_key, sealed_private, iv) VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			public_key = excluded.public_key,
			sealed_private = excluded.sealed_private,
			iv = excluded.iv
	`, addressKey(kp.Address), kp.PublicKey, sealed, iv)
	if err != nil {
		return fmt.Errorf("write key pair: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, address ethcommon.Address) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM keypairs WHERE address = ?`, addressKey(address)); err != nil {
		return fmt.Errorf("delete key pair: %w", err)
	}
	return nil
}

// Clear drops every cached pair. Used when the vault passphrase is reset.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM keypairs`); err != nil {
		return fmt.Errorf("clear key pairs: %w", err)
	}
	return nil
}
