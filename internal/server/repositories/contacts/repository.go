package contacts

import (
	"context"

	"github.com/dmitrijs2005/keepr/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, c *models.Contact) error
	ListByContentAddress(ctx context.Context, contentAddress string) ([]*models.Contact, error)
}
