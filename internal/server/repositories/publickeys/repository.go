package publickeys

import (
	"context"

	"github.com/dmitrijs2005/keepr/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, key *models.PublicKey) error
	Get(ctx context.Context, address string) (*models.PublicKey, error)
}
