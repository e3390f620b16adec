// Package publickeys is the PostgreSQL key directory: one published
// encryption key per wallet address.
package publickeys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/dbx"
	"github.com/dmitrijs2005/keepr/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert replaces any key previously published for the address.
func (r *PostgresRepository) Upsert(ctx context.Context, key *models.PublicKey) error {
	query := `
		INSERT INTO public_keys (address, public_key, signature, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (address) DO UPDATE
		SET public_key = EXCLUDED.public_key,
		    signature = EXCLUDED.signature,
		    updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, key.Address, key.PublicKey, key.Signature); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, address string) (*models.PublicKey, error) {
	query := `
		SELECT address, public_key, signature, updated_at
		FROM public_keys
		WHERE address = $1
	`
	k := &models.PublicKey{}
	err := r.db.QueryRowContext(ctx, query, address).Scan(&k.Address, &k.PublicKey, &k.Signature, &k.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}
