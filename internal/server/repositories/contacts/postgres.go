// Package contacts stores notification emails per keep party.
package contacts

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/keepr/internal/dbx"
	"github.com/dmitrijs2005/keepr/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert keeps one contact per (content address, role).
func (r *PostgresRepository) Upsert(ctx context.Context, c *models.Contact) error {
	query := `
		INSERT INTO contacts (content_address, keep_id, role, address, email)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_address, role) DO UPDATE
		SET keep_id = EXCLUDED.keep_id,
		    address = EXCLUDED.address,
		    email = EXCLUDED.email
	`
	if _, err := r.db.ExecContext(ctx, query, c.ContentAddress, int64(c.KeepID), c.Role, c.Address, c.Email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByContentAddress(ctx context.Context, contentAddress string) ([]*models.Contact, error) {
	query := `
		SELECT content_address, keep_id, role, address, email, created_at
		FROM contacts
		WHERE content_address = $1
		ORDER BY role
	`
	rows, err := r.db.QueryContext(ctx, query, contentAddress)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Contact
	for rows.Next() {
		c := &models.Contact{}
		var keepID int64
		if err := rows.Scan(&c.ContentAddress, &keepID, &c.Role, &c.Address, &c.Email, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		c.KeepID = uint64(keepID)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
