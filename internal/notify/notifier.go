package notify

import (
	"context"
	"time"

	"github.com/dmitrijs2005/keepr/internal/logging"
)

type Kind string

const (
	// KindUnlocked tells the recipient the keep can be claimed.
	KindUnlocked Kind = "unlocked"
	// KindFallback tells the fallback the recipient's claim window passed.
	KindFallback Kind = "fallback"
)

// Request is everything the mail service needs to render a message.
type Request struct {
	JobID          string    `json:"jobId"`
	Kind           Kind      `json:"kind"`
	KeepID         uint64    `json:"keepId"`
	ContentAddress string    `json:"contentAddress"`
	Title          string    `json:"title"`
	Creator        string    `json:"creator"`
	Recipient      string    `json:"recipient"`
	Email          string    `json:"email"`
	UnlockTime     time.Time `json:"unlockTime"`
}

type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

// LogNotifier only logs. Used when no mail service is configured.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, req Request) error {
	n.logger.Info(ctx, "notification", "kind", req.Kind, "keep", req.KeepID, "email", req.Email)
	return nil
}
