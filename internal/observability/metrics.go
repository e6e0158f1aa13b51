// Package observability exposes Prometheus metrics for simulation runs.
package observability

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"grnsim/internal/experiment"
)

// SolverCollector records integration and experiment metrics. A nil
// collector is valid and records nothing.
type SolverCollector struct {
	gatherer prometheus.Gatherer

	Integrations        *prometheus.CounterVec
	IntegrationDuration *prometheus.HistogramVec
	SimulatedTime       *prometheus.HistogramVec
	NegativeClamps      prometheus.Counter
	Experiments         *prometheus.CounterVec
	ExperimentsInFlight prometheus.Gauge
}

// NewSolverCollector registers the metrics against reg, reusing collectors
// that are already registered under the same names.
func NewSolverCollector(reg prometheus.Registerer) (*SolverCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	integrations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grnsim_integrations_total",
		Help: "Integrated perturbation rows by solver and convergence.",
	}, []string{"solver", "converged"}), "grnsim_integrations_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grnsim_integration_duration_seconds",
		Help:    "Wall time spent integrating one perturbation row.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"solver"}), "grnsim_integration_duration_seconds")
	if err != nil {
		return nil, err
	}

	simulated, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grnsim_simulated_time",
		Help:    "Model time integrated for one perturbation row.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"solver"}), "grnsim_simulated_time")
	if err != nil {
		return nil, err
	}

	clamps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grnsim_negative_clamps_total",
		Help: "State components reset to zero by the stochastic solver.",
	}), "grnsim_negative_clamps_total")
	if err != nil {
		return nil, err
	}

	experiments, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grnsim_experiments_total",
		Help: "Finished experiments by kind and status.",
	}, []string{"kind", "status"}), "grnsim_experiments_total")
	if err != nil {
		return nil, err
	}

	inFlight, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "grnsim_experiments_in_flight",
		Help: "Experiments currently running.",
	}), "grnsim_experiments_in_flight")
	if err != nil {
		return nil, err
	}

	return &SolverCollector{
		gatherer:            gatherer,
		Integrations:        integrations,
		IntegrationDuration: duration,
		SimulatedTime:       simulated,
		NegativeClamps:      clamps,
		Experiments:         experiments,
		ExperimentsInFlight: inFlight,
	}, nil
}

func (c *SolverCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveIntegration implements experiment.Observer.
func (c *SolverCollector) ObserveIntegration(o experiment.Observation) {
	if c == nil {
		return
	}
	c.Integrations.WithLabelValues(o.Solver, strconv.FormatBool(o.Converged)).Inc()
	c.IntegrationDuration.WithLabelValues(o.Solver).Observe(o.Wall.Seconds())
	c.SimulatedTime.WithLabelValues(o.Solver).Observe(o.SimulatedTime)
	if o.NegativeClamps > 0 {
		c.NegativeClamps.Add(float64(o.NegativeClamps))
	}
}

// ExperimentStarted marks one more experiment in flight.
func (c *SolverCollector) ExperimentStarted() {
	if c == nil {
		return
	}
	c.ExperimentsInFlight.Inc()
}

// ExperimentFinished records the outcome of an experiment started with
// ExperimentStarted.
func (c *SolverCollector) ExperimentFinished(kind string, err error) {
	if c == nil {
		return
	}
	c.ExperimentsInFlight.Dec()
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.Experiments.WithLabelValues(kind, status).Inc()
}

// WriteTextfile dumps the gathered metrics in the text exposition format.
func (c *SolverCollector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.gatherer)
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
