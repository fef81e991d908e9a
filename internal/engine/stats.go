package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BackupStats describes one finished table backup.
type BackupStats struct {
	Table            string        `json:"table"`
	Frequency        string        `json:"frequency,omitempty"`
	Key              string        `json:"key"`
	ConfigurationKey string        `json:"configuration_key,omitempty"`
	Records          int64         `json:"records"`
	Pages            int           `json:"pages"`
	Bytes            int64         `json:"bytes"` // uncompressed
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
}

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics are the Prometheus collectors updated by an Engine.
type Metrics struct {
	backups    *prometheus.CounterVec
	records    prometheus.Counter
	bytes      prometheus.Counter
	dispatched prometheus.Counter
	duration   prometheus.Histogram
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		backups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dynamobackup_backups_total",
			Help: "Table backups by result.",
		}, []string{"result"}),
		records: f.NewCounter(prometheus.CounterOpts{
			Name: "dynamobackup_records_total",
			Help: "Records written to backup objects.",
		}),
		bytes: f.NewCounter(prometheus.CounterOpts{
			Name: "dynamobackup_bytes_total",
			Help: "Uncompressed bytes written to backup objects.",
		}),
		dispatched: f.NewCounter(prometheus.CounterOpts{
			Name: "dynamobackup_dispatched_total",
			Help: "backup-table tasks dispatched by create-backups.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dynamobackup_backup_duration_seconds",
			Help:    "Duration of successful table backups.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
}

func (m *Metrics) observe(stats *BackupStats) {
	m.backups.WithLabelValues(resultSuccess).Inc()
	m.records.Add(float64(stats.Records))
	m.bytes.Add(float64(stats.Bytes))
	m.duration.Observe(stats.Duration.Seconds())
}
