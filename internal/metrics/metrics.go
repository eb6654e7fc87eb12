// Package metrics exposes Prometheus collectors for sampling and diagnostics.
//
// arflow is a batch tool, so metrics are gathered into a private registry and
// written out once per command through the node-exporter textfile format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arflow"

// Registry bundles the collectors of one arflow process.
type Registry struct {
	reg *prometheus.Registry

	Sampler     *Sampler
	Diagnostics *Diagnostics
}

// NewRegistry creates a registry with every arflow collector registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	return &Registry{
		reg:         reg,
		Sampler:     NewSampler(reg),
		Diagnostics: NewDiagnostics(reg),
	}
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes every gathered metric to path in the text exposition
// format. The file is written atomically.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

// Sampler records chain-level sampling activity.
// A nil *Sampler is valid and records nothing.
type Sampler struct {
	Draws         *prometheus.CounterVec
	Divergences   *prometheus.CounterVec
	Failures      prometheus.Counter
	Cancellations prometheus.Counter
	ChainSeconds  prometheus.Histogram
}

// NewSampler creates and registers the sampler collectors on reg.
func NewSampler(reg prometheus.Registerer) *Sampler {
	s := &Sampler{
		Draws: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sampler",
				Name:      "draws_total",
				Help:      "Post-warmup draws collected, by chain",
			},
			[]string{"chain"},
		),
		Divergences: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sampler",
				Name:      "divergences_total",
				Help:      "Divergent transitions reported by the backend, by chain",
			},
			[]string{"chain"},
		),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "chain_failures_total",
			Help:      "Chains that ended in a non-recoverable backend failure",
		}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "cancelled_fits_total",
			Help:      "Fits stopped early by cancellation",
		}),
		ChainSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "chain_duration_seconds",
			Help:      "Wall time per chain including warmup",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	reg.MustRegister(s.Draws, s.Divergences, s.Failures, s.Cancellations, s.ChainSeconds)
	return s
}

// ObserveChain records a finished chain.
func (s *Sampler) ObserveChain(chain, draws, divergences int, elapsed time.Duration) {
	if s == nil {
		return
	}
	label := strconv.Itoa(chain)
	s.Draws.WithLabelValues(label).Add(float64(draws))
	s.Divergences.WithLabelValues(label).Add(float64(divergences))
	s.ChainSeconds.Observe(elapsed.Seconds())
}

// ObserveFailure records a failed chain.
func (s *Sampler) ObserveFailure() {
	if s == nil {
		return
	}
	s.Failures.Inc()
}

// ObserveCancellation records a fit stopped by cancellation.
func (s *Sampler) ObserveCancellation() {
	if s == nil {
		return
	}
	s.Cancellations.Inc()
}

// Diagnostics exports the latest convergence statistics per parameter.
// A nil *Diagnostics is valid and records nothing.
type Diagnostics struct {
	Rhat        *prometheus.GaugeVec
	ESS         *prometheus.GaugeVec
	Divergences prometheus.Gauge
}

// NewDiagnostics creates and registers the diagnostics collectors on reg.
func NewDiagnostics(reg prometheus.Registerer) *Diagnostics {
	d := &Diagnostics{
		Rhat: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "diagnostics",
				Name:      "rhat",
				Help:      "Split R-hat of the last diagnosed fit, by parameter",
			},
			[]string{"param"},
		),
		ESS: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "diagnostics",
				Name:      "effective_sample_size",
				Help:      "Effective sample size of the last diagnosed fit, by parameter",
			},
			[]string{"param"},
		),
		Divergences: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "diagnostics",
			Name:      "divergences",
			Help:      "Divergent draws in the last diagnosed fit",
		}),
	}
	reg.MustRegister(d.Rhat, d.ESS, d.Divergences)
	return d
}

// ObserveParam records the statistics of one parameter.
func (d *Diagnostics) ObserveParam(param string, rhat, ess float64) {
	if d == nil {
		return
	}
	d.Rhat.WithLabelValues(param).Set(rhat)
	d.ESS.WithLabelValues(param).Set(ess)
}

// ObserveDivergences records the total divergence count.
func (d *Diagnostics) ObserveDivergences(n int) {
	if d == nil {
		return
	}
	d.Divergences.Set(float64(n))
}
