// Package challenges stores one-time login nonces in PostgreSQL.
package challenges

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/dbx"
	"github.com/dmitrijs2005/keepr/internal/server/models"
)

type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// Create stores a nonce for address that expires after validity.
func (r *PostgresRepository) Create(ctx context.Context, address, nonce string, validity time.Duration) (*models.Challenge, error) {
	query := `
		INSERT INTO challenges (address, nonce, expires_at)
		VALUES ($1, $2, $3)
	`
	c := &models.Challenge{Address: address, Nonce: nonce, ExpiresAt: r.now().Add(validity)}
	if _, err := r.db.ExecContext(ctx, query, c.Address, c.Nonce, c.ExpiresAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// Find returns common.ErrorNotFound for unknown nonces.
func (r *PostgresRepository) Find(ctx context.Context, nonce string) (*models.Challenge, error) {
	query := `
		SELECT address, nonce, expires_at
		FROM challenges
		WHERE nonce = $1
	`
	c := &models.Challenge{}
	if err := r.db.QueryRowContext(ctx, query, nonce).Scan(&c.Address, &c.Nonce, &c.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, nonce string) error {
	query := `
		DELETE FROM challenges
		WHERE nonce = $1
	`
	if _, err := r.db.ExecContext(ctx, query, nonce); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM challenges
		WHERE expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, r.now())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
