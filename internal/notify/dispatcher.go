package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/envelope"
	"github.com/dmitrijs2005/keepr/internal/logging"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

const DefaultMaxAttempts = 5

type Contact struct {
	Role    envelope.Role
	Address ethcommon.Address
	Email   string
}

// ContactSource returns the contacts registered for a content address.
type ContactSource interface {
	ContactsForKeep(ctx context.Context, contentAddress string) ([]Contact, error)
}

type Dispatcher struct {
	registry    chain.Registry
	contacts    ContactSource
	jobs        JobStore
	notifier    Notifier
	logger      logging.Logger
	metrics     *Metrics
	now         func() time.Time
	maxAttempts int
}

type DispatcherOption func(*Dispatcher)

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) { d.maxAttempts = n }
}

func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(registry chain.Registry, contacts ContactSource, jobs JobStore,
	notifier Notifier, logger logging.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:    registry,
		contacts:    contacts,
		jobs:        jobs,
		notifier:    notifier,
		logger:      logger.With("module", "notify"),
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil)
	}
	return d
}

// Run scans once immediately and then on every tick until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.Scan(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error(ctx, "notification scan failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Scan hands off every due notification and returns how many were sent.
// Failures of single jobs are recorded on the job and do not abort the scan.
func (d *Dispatcher) Scan(ctx context.Context) (int, error) {
	d.metrics.scans.Inc()

	cfg, err := d.registry.Config(ctx)
	if err != nil {
		return 0, fmt.Errorf("registry config: %w", err)
	}
	list, err := d.registry.ListKeeps(ctx)
	if err != nil {
		return 0, fmt.Errorf("list keeps: %w", err)
	}

	now := d.now()
	sent := 0
	for _, k := range list {
		if k.Status != chain.StatusActive || now.Before(k.UnlockTime) {
			continue
		}

		contacts, err := d.contacts.ContactsForKeep(ctx, k.ContentAddress)
		if err != nil {
			d.logger.Warn(ctx, "contacts lookup failed", "keep", k.ID, "error", err)
			continue
		}

		for _, c := range contacts {
			kind, ok := d.due(k, cfg, c, now)
			if !ok {
				continue
			}
			done, err := d.handOff(ctx, k, c, kind, now)
			if err != nil {
				return sent, err
			}
			if done {
				sent++
			}
		}
	}

	d.observeJobs(ctx)
	return sent, nil
}

// Summary counts stored jobs by status.
func (d *Dispatcher) Summary(ctx context.Context) (map[JobStatus]int, error) {
	jobs, err := d.jobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := map[JobStatus]int{JobPending: 0, JobSent: 0, JobFailed: 0}
	for _, j := range jobs {
		out[j.Status]++
	}
	return out, nil
}

func (d *Dispatcher) observeJobs(ctx context.Context) {
	summary, err := d.Summary(ctx)
	if err != nil {
		d.logger.Warn(ctx, "job summary failed", "error", err)
		return
	}
	for status, n := range summary {
		d.metrics.jobs.WithLabelValues(string(status)).Set(float64(n))
	}
	d.logger.Debug(ctx, "notification jobs", "pending", summary[JobPending],
		"sent", summary[JobSent], "failed", summary[JobFailed])
}

// due reports whether c should be notified about k now. Contacts that no
// longer match the on-chain parties are ignored.
func (d *Dispatcher) due(k *chain.Keep, cfg chain.Config, c Contact, now time.Time) (Kind, bool) {
	if c.Email == "" {
		return "", false
	}
	switch c.Role {
	case envelope.RoleRecipient:
		return KindUnlocked, c.Address == k.Recipient
	case envelope.RoleFallback:
		if !k.HasFallback() || c.Address != k.Fallback {
			return "", false
		}
		return KindFallback, !now.Before(k.UnlockTime.Add(cfg.ClaimWindow))
	}
	return "", false
}

func (d *Dispatcher) handOff(ctx context.Context, k *chain.Keep, c Contact, kind Kind, now time.Time) (bool, error) {
	id := JobID(k.ContentAddress, c.Address)

	job, err := d.jobs.Get(ctx, id)
	switch {
	case errors.Is(err, ErrJobNotFound):
		job = &Job{
			ID:             id,
			KeepID:         k.ID,
			ContentAddress: k.ContentAddress,
			Recipient:      c.Address.Hex(),
			Role:           string(c.Role),
			Email:          c.Email,
			Status:         JobPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	case err != nil:
		return false, fmt.Errorf("load job %s: %w", id, err)
	}

	if job.Status == JobSent || (job.Status == JobFailed && job.Attempts >= d.maxAttempts) {
		return false, nil
	}

	req := Request{
		JobID:          id,
		Kind:           kind,
		KeepID:         k.ID,
		ContentAddress: k.ContentAddress,
		Title:          k.Title,
		Creator:        k.Creator.Hex(),
		Recipient:      c.Address.Hex(),
		Email:          c.Email,
		UnlockTime:     k.UnlockTime,
	}

	job.Attempts++
	job.UpdatedAt = now
	if err := d.notifier.Notify(ctx, req); err != nil {
		job.Status = JobFailed
		job.LastError = err.Error()
		d.logger.Warn(ctx, "notification failed", "job", id, "attempt", job.Attempts, "error", err)
	} else {
		job.Status = JobSent
		job.LastError = ""
		d.logger.Info(ctx, "notification sent", "job", id, "kind", kind)
	}
	d.metrics.notifications.WithLabelValues(string(job.Status)).Inc()

	if err := d.jobs.Put(ctx, job); err != nil {
		return false, fmt.Errorf("save job %s: %w", id, err)
	}
	return job.Status == JobSent, nil
}
