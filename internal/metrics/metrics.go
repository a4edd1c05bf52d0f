package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// namespace is the prefix applied to all metric names.
const namespace = "courier"

// Metrics is a set of Prometheus collectors that describe the behavior of
// the delivery core.
//
// A nil *Metrics is valid. All of its methods are no-ops.
type Metrics struct {
	JobsEnqueued    prometheus.Counter
	JobsDelivered   prometheus.Counter
	JobsRetried     prometheus.Counter
	JobsFailed      prometheus.Counter
	UploadAttempts  *prometheus.CounterVec
	UploadFailures  *prometheus.CounterVec
	NonDurableSends *prometheus.CounterVec
	Polls           *prometheus.CounterVec
	ActivePollers   prometheus.Gauge
}

// New returns a new set of unregistered collectors.
func New() *Metrics {
	return &Metrics{
		JobsEnqueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "enqueued_total",
				Help:      "Total delivery jobs enqueued.",
			},
		),
		JobsDelivered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "delivered_total",
				Help:      "Total delivery jobs completed successfully.",
			},
		),
		JobsRetried: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "retried_total",
				Help:      "Total delivery job attempts that failed and were rescheduled.",
			},
		),
		JobsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jobs",
				Name:      "failed_total",
				Help:      "Total delivery jobs that failed terminally.",
			},
		),
		UploadAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "uploads",
				Name:      "attempts_total",
				Help:      "Total attachment upload attempts.",
			},
			[]string{"server_kind"}, // "file-server" or "open-group"
		),
		UploadFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "uploads",
				Name:      "failures_total",
				Help:      "Total attachment uploads that exhausted their retry ceiling.",
			},
			[]string{"server_kind"},
		),
		NonDurableSends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sends",
				Name:      "non_durable_total",
				Help:      "Total non-durable sends, by outcome.",
			},
			[]string{"result"}, // "success" or "error"
		),
		Polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pollers",
				Name:      "polls_total",
				Help:      "Total open-group polls, by outcome.",
			},
			[]string{"result"},
		),
		ActivePollers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pollers",
				Name:      "active",
				Help:      "Number of open-group pollers currently running.",
			},
		),
	}
}

// Register registers all of the collectors with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	var err error

	for _, c := range []prometheus.Collector{
		m.JobsEnqueued,
		m.JobsDelivered,
		m.JobsRetried,
		m.JobsFailed,
		m.UploadAttempts,
		m.UploadFailures,
		m.NonDurableSends,
		m.Polls,
		m.ActivePollers,
	} {
		err = multierr.Append(err, r.Register(c))
	}

	return err
}

// ServerKind returns the "server_kind" label value for a server.
func ServerKind(isOpenGroup bool) string {
	if isOpenGroup {
		return "open-group"
	}

	return "file-server"
}

// Result returns the "result" label value for an operation's outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
