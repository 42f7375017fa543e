package metrics

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pseudonym_runs_total",
			Help: "Pseudonymization runs by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pseudonym_records_total",
			Help: "Records that received a label",
		},
		[]string{"strategy"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pseudonym_run_duration_seconds",
			Help:    "Duration of pseudonymization runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	payloadFindingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pseudonym_payload_dlp_findings_total",
			Help: "Payload columns flagged by the DLP check",
		},
	)

	registerOnce sync.Once
)

func Init() {
	registerOnce.Do(func() {
		prometheus.DefaultRegisterer.MustRegister(runsTotal, recordsTotal, runDuration, payloadFindingsTotal)
	})
}

// Outcome maps a run error to a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, pseudonym.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, pseudonym.ErrMissingKey):
		return "missing_key"
	case errors.Is(err, pseudonym.ErrNonUniqueIdentifyingTuple):
		return "non_unique"
	case errors.Is(err, pseudonym.ErrLabelCollision):
		return "collision"
	default:
		return "invalid"
	}
}

func ObserveRun(strategy string, records int, started time.Time, err error) {
	runsTotal.WithLabelValues(strategy, Outcome(err)).Inc()
	runDuration.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
	if err == nil {
		recordsTotal.WithLabelValues(strategy).Add(float64(records))
	}
}

func ObservePayloadFindings(n int) {
	payloadFindingsTotal.Add(float64(n))
}

func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}
