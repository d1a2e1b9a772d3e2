package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vantage/scoring-engine/scoring"
)

// Prometheus counters, exposed on /metrics. Batch counters move once
// per run; trophy and message counters move per award and per send.
var (
	batchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoring_batch_runs_total",
		Help: "Batch runs by transition.",
	}, []string{"transition"})

	batchSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scoring_batch_skips_total",
		Help: "Sellers skipped for data-quality reasons.",
	})

	trophiesAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoring_trophies_awarded_total",
		Help: "Trophies awarded by kind.",
	}, []string{"kind"})

	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoring_messages_sent_total",
		Help: "Notification messages recorded as sent, by kind.",
	}, []string{"kind"})
)

func observeReport(r *scoring.BatchReport) {
	batchRuns.WithLabelValues(r.Transition).Inc()
	batchSkips.Add(float64(len(r.Skipped)))
	for _, t := range r.Awards {
		trophiesAwarded.WithLabelValues(string(t.Kind)).Inc()
	}
}
