// Package metrics exports search counters as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mahdiidarabi/hitag2-gnd/internal/search"
)

const namespace = "hitag2gnd"

// Recorder accumulates the Stats of finished searches.
type Recorder struct {
	runs       prometheus.Counter
	fills      *prometheus.CounterVec
	pruned     *prometheus.CounterVec
	candidates prometheus.Counter
	rejected   prometheus.Counter
	solutions  prometheus.Counter
	duration   prometheus.Histogram
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed searches.",
		}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Fills enumerated, by layer.",
		}, []string{"layer"}),
		pruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_total",
			Help:      "Fills discarded, by layer and reason.",
		}, []string{"layer", "reason"}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Hypotheses that survived every layer.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Candidates failing validation.",
		}),
		solutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solutions_total",
			Help:      "Candidates confirmed against the keystream.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Wall time of one search.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
		}),
	}

	for _, c := range []prometheus.Collector{r.runs, r.fills, r.pruned, r.candidates, r.rejected, r.solutions, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe adds one finished search.
func (r *Recorder) Observe(stats *search.Stats, elapsed time.Duration) {
	if r == nil || stats == nil {
		return
	}
	r.runs.Inc()
	for l, ls := range stats.Layers {
		layer := strconv.Itoa(l)
		r.fills.WithLabelValues(layer).Add(float64(ls.Fills))
		r.pruned.WithLabelValues(layer, "debug").Add(float64(ls.DebugPruned))
		r.pruned.WithLabelValues(layer, "filter").Add(float64(ls.FilterPruned))
	}
	r.candidates.Add(float64(stats.Candidates))
	r.rejected.Add(float64(stats.Rejected))
	r.solutions.Add(float64(stats.Solutions))
	r.duration.Observe(elapsed.Seconds())
}
