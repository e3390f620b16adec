package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	notifications *prometheus.CounterVec
	scans         prometheus.Counter
	jobs          *prometheus.GaugeVec
}

// NewMetrics registers the dispatcher collectors on reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "keepr_notifications_total",
			Help: "Notification hand-offs by outcome.",
		}, []string{"status"}),
		scans: f.NewCounter(prometheus.CounterOpts{
			Name: "keepr_notification_scans_total",
			Help: "Ledger scans performed by the notification dispatcher.",
		}),
		jobs: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "keepr_notification_jobs",
			Help: "Stored notification jobs by status after the last scan.",
		}, []string{"status"}),
	}
}
