// Package experiment runs steady-state and time-series simulations of a gene
// network under a perturbation.
package experiment

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"grnsim/internal/dynamics"
	"grnsim/internal/perturbation"
	"grnsim/internal/solver"
)

var ErrInvalidOptions = errors.New("invalid experiment options")

// Options configure both experiment kinds.
type Options struct {
	Solver        solver.Type
	SolverOptions solver.Options
	// MaxTSteadyState bounds integration of one steady-state row.
	MaxTSteadyState float64
	// TimeSeriesDT is the sampling interval of trajectories.
	TimeSeriesDT   float64
	TimeSeriesMaxT float64
	// RemovePerturbationAtHalf restores the wild type at MaxT/2.
	RemovePerturbationAtHalf bool
}

func DefaultOptions() Options {
	return Options{
		Solver:          solver.TypeODE,
		SolverOptions:   solver.DefaultOptions(),
		MaxTSteadyState: 1000,
		TimeSeriesDT:    10,
		TimeSeriesMaxT:  1000,
	}
}

// Observation describes one integrated row.
type Observation struct {
	Experiment     string
	Solver         string
	Converged      bool
	SimulatedTime  float64
	Wall           time.Duration
	NegativeClamps int
}

// Observer receives an Observation per integrated row.
type Observer interface {
	ObserveIntegration(Observation)
}

type nopObserver struct{}

func (nopObserver) ObserveIntegration(Observation) {}

// runner carries what both experiment kinds share.
type runner struct {
	name     string
	opts     Options
	logger   *zap.Logger
	observer Observer
}

func newRunner(name string, opts Options, logger *zap.Logger, observer Observer) runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return runner{name: name, opts: opts, logger: logger, observer: observer}
}

// wildTypeState integrates the unperturbed network deterministically from an
// all-zero state until it settles. Every row of an experiment starts there.
func (rn runner) wildTypeState(net *dynamics.GeneNetwork) ([]float64, error) {
	opts := rn.opts.SolverOptions
	s, err := solver.New(solver.TypeODE, net, make([]float64, net.StateSize()), opts)
	if err != nil {
		return nil, err
	}
	converged, err := rn.integrate(s)
	if err != nil {
		return nil, fmt.Errorf("wild type: %w", err)
	}
	if !converged {
		rn.logger.Warn("wild type did not converge",
			zap.String("experiment", rn.name),
			zap.String("perturbation", "wild_type"),
			zap.Float64("time_limit", rn.opts.MaxTSteadyState))
	}
	return s.State(), nil
}

// integrate steps s until it converges or reaches MaxTSteadyState.
func (rn runner) integrate(s *solver.Solver) (bool, error) {
	for s.Time() < rn.opts.MaxTSteadyState {
		if _, err := s.Step(); err != nil {
			return false, err
		}
		if s.Converged() {
			return true, nil
		}
	}
	return false, nil
}

func (rn runner) validate(net *dynamics.GeneNetwork, pert perturbation.Perturbation) error {
	if pert != nil && pert.Len() == 0 {
		return fmt.Errorf("%w: perturbation %s has no rows", ErrInvalidOptions, pert.Kind())
	}
	if net.Size() == 0 {
		return fmt.Errorf("%w: empty network", ErrInvalidOptions)
	}
	return nil
}

func rowLabel(pert perturbation.Perturbation, row int) string {
	if pert == nil {
		return "wild_type"
	}
	return pert.Labels()[row]
}

// split copies a flat state into row of the mRNA and protein matrices.
func split(state []float64, n, row int, mrna, protein *mat.Dense) {
	mrna.SetRow(row, state[:n])
	if protein != nil {
		protein.SetRow(row, state[n:2*n])
	}
}
