package challenges

import (
	"context"
	"time"

	"github.com/dmitrijs2005/keepr/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, address, nonce string, validity time.Duration) (*models.Challenge, error)
	Find(ctx context.Context, nonce string) (*models.Challenge, error)
	Delete(ctx context.Context, nonce string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
