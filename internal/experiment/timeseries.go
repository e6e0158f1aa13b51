package experiment

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"grnsim/internal/dynamics"
	"grnsim/internal/perturbation"
	"grnsim/internal/solver"
)

// Trajectory is one perturbation row sampled over time: one row per time
// point, one column per gene.
type Trajectory struct {
	Label   string
	MRNA    *mat.Dense
	Protein *mat.Dense
}

type TimeSeriesResult struct {
	Name         string
	Genes        []string
	Times        []float64
	Trajectories []Trajectory
}

// TimeSeries samples the response of the wild-type steady state to each
// perturbation row every TimeSeriesDT up to TimeSeriesMaxT.
type TimeSeries struct {
	runner
	points int
}

func NewTimeSeries(name string, opts Options, logger *zap.Logger, observer Observer) (*TimeSeries, error) {
	if !(opts.TimeSeriesDT > 0) || opts.TimeSeriesMaxT < opts.TimeSeriesDT {
		return nil, fmt.Errorf("%w: need 0 < dt <= maxt, got dt=%g maxt=%g", ErrInvalidOptions, opts.TimeSeriesDT, opts.TimeSeriesMaxT)
	}
	if !(opts.MaxTSteadyState > 0) {
		return nil, fmt.Errorf("%w: max steady-state time must be > 0", ErrInvalidOptions)
	}
	return &TimeSeries{
		runner: newRunner(name, opts, logger, observer),
		points: int(math.Round(opts.TimeSeriesMaxT/opts.TimeSeriesDT)) + 1,
	}, nil
}

// NumTimePoints is maxt/dt + 1, the sample at t=0 included.
func (e *TimeSeries) NumTimePoints() int {
	return e.points
}

// Run produces one trajectory per row of pert, or a single unperturbed one
// when pert is nil.
func (e *TimeSeries) Run(ctx context.Context, net *dynamics.GeneNetwork, pert perturbation.Perturbation) (*TimeSeriesResult, error) {
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
	res := &TimeSeriesResult{
		Name:         e.name,
		Genes:        net.Topology.Labels(),
		Times:        make([]float64, e.points),
		Trajectories: make([]Trajectory, rows),
	}
	for k := range res.Times {
		res.Times[k] = float64(k) * e.opts.TimeSeriesDT
	}

	for row := 0; row < rows; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		label := rowLabel(pert, row)
		traj, err := e.runRow(net, pert, row, x0)
		if err != nil {
			return nil, fmt.Errorf("%s row %s: %w", e.name, label, err)
		}
		traj.Label = label
		res.Trajectories[row] = traj
	}
	return res, nil
}

func (e *TimeSeries) runRow(net *dynamics.GeneNetwork, pert perturbation.Perturbation, row int, x0 []float64) (Trajectory, error) {
	n := net.Size()
	traj := Trajectory{MRNA: mat.NewDense(e.points, n, nil)}
	if net.ModelTranslation {
		traj.Protein = mat.NewDense(e.points, n, nil)
	}
	split(x0, n, 0, traj.MRNA, traj.Protein)

	if pert != nil {
		if err := pert.Apply(net, row); err != nil {
			return traj, err
		}
		defer pert.RestoreWildType(net)
	}

	start := time.Now()
	opts := e.opts.SolverOptions
	opts.DT = e.opts.TimeSeriesDT
	s, err := solver.New(e.opts.Solver, net, x0, opts)
	if err != nil {
		return traj, err
	}

	half := e.opts.TimeSeriesMaxT / 2
	removed := pert == nil || !e.opts.RemovePerturbationAtHalf
	converged := false
	for k := 1; k < e.points; k++ {
		if !removed && s.Time() >= half-1e-9*opts.DT {
			pert.RestoreWildType(net)
			removed = true
		}
		if _, err := s.Step(); err != nil {
			return traj, fmt.Errorf("t=%g: %w", s.Time(), err)
		}
		split(s.State(), n, k, traj.MRNA, traj.Protein)
		converged = s.Converged()
	}

	e.observer.ObserveIntegration(Observation{
		Experiment:     e.name,
		Solver:         s.Type().String(),
		Converged:      converged,
		SimulatedTime:  s.Time(),
		Wall:           time.Since(start),
		NegativeClamps: s.NegativeClamps(),
	})
	return traj, nil
}
