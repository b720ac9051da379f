package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics счётчики трекера, уведомлений и посещаемости.
// Все методы безопасны для nil-получателя, чтобы тесты могли не собирать метрики.
type Metrics struct {
	ticks            prometheus.Counter
	tickDuration     prometheus.Histogram
	events           *prometheus.CounterVec
	slotErrors       prometheus.Counter
	activeSessions   prometheus.Gauge
	dispatchFailures *prometheus.CounterVec
	submissions      *prometheus.CounterVec
	archivedRows     prometheus.Counter
}

// New регистрирует метрики в reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_ticks_total",
			Help: "Number of live session tracker passes.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_tick_duration_seconds",
			Help:    "Duration of a live session tracker pass.",
			Buckets: prometheus.DefBuckets,
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_events_total",
			Help: "Live session events emitted, by status.",
		}, []string{"status"}),
		slotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_slot_errors_total",
			Help: "Time slots skipped by the tracker because of processing errors.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_sessions",
			Help: "Sessions currently tracked as active.",
		}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_dispatch_failures_total",
			Help: "Notifications dropped because a sink failed or timed out.",
		}, []string{"sink"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_submissions_total",
			Help: "Attendance sessions submitted, by submission status.",
		}, []string{"status"}),
		archivedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendance_archived_rows_total",
			Help: "Attendance rows moved to the archive.",
		}),
	}

	reg.MustRegister(
		m.ticks,
		m.tickDuration,
		m.events,
		m.slotErrors,
		m.activeSessions,
		m.dispatchFailures,
		m.submissions,
		m.archivedRows,
	)
	return m
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) EventEmitted(status string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(status).Inc()
}

func (m *Metrics) SlotError() {
	if m == nil {
		return
	}
	m.slotErrors.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) DispatchFailed(sink string) {
	if m == nil {
		return
	}
	m.dispatchFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) SubmissionRecorded(status string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(status).Inc()
}

func (m *Metrics) RowsArchived(n int) {
	if m == nil {
		return
	}
	m.archivedRows.Add(float64(n))
}
