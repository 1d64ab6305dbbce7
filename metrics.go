package migrator

import "github.com/prometheus/client_golang/prometheus"

// Metrics records migration activity. A nil *Metrics records nothing.
type Metrics struct {
	Migrations *prometheus.CounterVec
	Failures   *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates the migration collectors and registers them with reg.
// A nil reg leaves them unregistered.
//
// Parameters:
//   - reg: The registerer to use, or nil.
//
// Returns:
//   - *Metrics: The collectors.
//   - error: An error if registration fails.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgermigrate",
			Name:      "migrations_total",
			Help:      "Migrations applied or rolled back, by direction.",
		}, []string{"direction"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgermigrate",
			Name:      "migration_failures_total",
			Help:      "Migration runs that failed and were rolled back, by direction.",
		}, []string{"direction"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledgermigrate",
			Name:      "migration_duration_seconds",
			Help:      "Execution time of a single migration, by direction.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"direction"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.Migrations, m.Failures, m.Duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// record counts a finished run: one failure when err is set, otherwise one
// observation per processed version.
func (m *Metrics) record(direction Direction, res *RunResult, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Failures.WithLabelValues(string(direction)).Inc()
		return
	}
	for _, v := range res.Versions {
		m.Migrations.WithLabelValues(string(direction)).Inc()
		m.Duration.WithLabelValues(string(direction)).Observe(res.Durations[v].Seconds())
	}
}
