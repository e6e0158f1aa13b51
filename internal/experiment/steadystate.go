package experiment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"grnsim/internal/dynamics"
	"grnsim/internal/perturbation"
	"grnsim/internal/solver"
)

// SteadyStateResult holds one row per perturbation and one column per gene.
type SteadyStateResult struct {
	Name  string
	Genes []string
	Rows  []string
	MRNA  *mat.Dense
	// Protein is nil unless translation is modelled.
	Protein   *mat.Dense
	Converged []bool
	// Times is the simulated time each row ran for.
	Times []float64
}

// SteadyState integrates every perturbation row until convergence or the time
// limit. A row that hits the limit keeps its last state and is flagged in
// Converged.
type SteadyState struct {
	runner
}

func NewSteadyState(name string, opts Options, logger *zap.Logger, observer Observer) (*SteadyState, error) {
	if !(opts.MaxTSteadyState > 0) {
		return nil, fmt.Errorf("%w: max steady-state time must be > 0", ErrInvalidOptions)
	}
	return &SteadyState{runner: newRunner(name, opts, logger, observer)}, nil
}

// Run applies each row of pert to net, integrates from the wild-type steady
// state and restores the wild type. A nil pert runs a single wild-type row.
// net is mutated while Run executes and restored before it returns.
func (e *SteadyState) Run(ctx context.Context, net *dynamics.GeneNetwork, pert perturbation.Perturbation) (*SteadyStateResult, error) {
	if err := e.validate(net, pert); err != nil {
		return nil, err
	}
	x0, err := e.wildTypeState(net)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}

	rows := 1
	if pert != nil {
		rows = pert.Len()
	}
	n := net.Size()
	res := &SteadyStateResult{
		Name:      e.name,
		Genes:     net.Topology.Labels(),
		Rows:      make([]string, rows),
		MRNA:      mat.NewDense(rows, n, nil),
		Converged: make([]bool, rows),
		Times:     make([]float64, rows),
	}
	if net.ModelTranslation {
		res.Protein = mat.NewDense(rows, n, nil)
	}

	for row := 0; row < rows; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		label := rowLabel(pert, row)
		res.Rows[row] = label

		state, converged, simulated, err := e.runRow(net, pert, row, x0)
		if err != nil {
			return nil, fmt.Errorf("%s row %s: %w", e.name, label, err)
		}
		if !converged {
			e.logger.Warn("steady state not reached",
				zap.String("experiment", e.name),
				zap.String("perturbation", label),
				zap.Float64("time_limit", e.opts.MaxTSteadyState))
		}
		split(state, n, row, res.MRNA, res.Protein)
		res.Converged[row] = converged
		res.Times[row] = simulated
	}
	return res, nil
}

func (e *SteadyState) runRow(net *dynamics.GeneNetwork, pert perturbation.Perturbation, row int, x0 []float64) ([]float64, bool, float64, error) {
	if pert != nil {
		if err := pert.Apply(net, row); err != nil {
			return nil, false, 0, err
		}
		defer pert.RestoreWildType(net)
	}

	start := time.Now()
	s, err := solver.New(e.opts.Solver, net, x0, e.opts.SolverOptions)
	if err != nil {
		return nil, false, 0, err
	}
	converged, err := e.integrate(s)
	if err != nil {
		return nil, false, 0, err
	}
	e.observer.ObserveIntegration(Observation{
		Experiment:     e.name,
		Solver:         s.Type().String(),
		Converged:      converged,
		SimulatedTime:  s.Time(),
		Wall:           time.Since(start),
		NegativeClamps: s.NegativeClamps(),
	})
	return s.State(), converged, s.Time(), nil
}
