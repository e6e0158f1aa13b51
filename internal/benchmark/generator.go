// Package benchmark generates the expression datasets of a benchmark from a
// network topology: it draws the kinetic model, builds every perturbation and
// runs the experiments concurrently.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"grnsim/internal/config"
	"grnsim/internal/dynamics"
	"grnsim/internal/experiment"
	"grnsim/internal/model"
	"grnsim/internal/noise"
	"grnsim/internal/observability"
	"grnsim/internal/perturbation"
	"grnsim/internal/random"
	"grnsim/internal/regulation"
)

var ErrCancelled = errors.New("benchmark generation cancelled")

// Dataset is one experiment's output. Time-series datasets stack their
// trajectories vertically and carry the sample time of each row.
type Dataset struct {
	Name      string
	Kind      string
	Genes     []string
	RowLabels []string
	MRNA      *mat.Dense
	Protein   *mat.Dense
	Times     []float64
	Converged []bool
	// Perturbation is the matrix that produced the rows, nil for wild type.
	Perturbation *mat.Dense
}

// Result is one generated benchmark. Params holds the drawn kinetic model of
// every gene; Translation reports whether protein was modelled.
type Result struct {
	RunID       string
	Network     string
	Seed        int64
	Solver      string
	Translation bool
	CreatedAt   time.Time
	Params      []regulation.GeneParams
	Datasets    []Dataset
}

// Generator runs a benchmark with fixed settings. Logger and Metrics may be
// nil.
type Generator struct {
	Settings config.Settings
	Logger   *zap.Logger
	Metrics  *observability.SolverCollector
}

type job struct {
	name       string
	kind       string
	pert       perturbation.Perturbation
	timeSeries bool
	seed       int64
}

// Generate draws the kinetic model for topo from the settings' seed, then
// runs the planned experiments on independent copies of the network. All
// random draws that define the benchmark happen before any experiment
// starts, so a fixed seed gives the same datasets for any worker count.
// Cancellation is checked between experiments.
func (g *Generator) Generate(ctx context.Context, topo *model.Network) (*Result, error) {
	logger := g.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := g.Settings
	if err := s.Validate(); err != nil {
		return nil, err
	}

	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := random.New(seed)

	kin, err := s.RegulationKinetics()
	if err != nil {
		return nil, err
	}
	net := dynamics.NewGeneNetwork(topo.Clone(), s.ModelTranslation)
	if err := net.Randomize(r, kin); err != nil {
		return nil, fmt.Errorf("randomize %s: %w", topo.ID, err)
	}

	jobs, err := g.plan(r, net, logger)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       uuid.NewString(),
		Network:     topo.ID,
		Seed:        seed,
		Solver:      s.Solver,
		Translation: s.ModelTranslation,
		CreatedAt:   time.Now().UTC(),
		Params:      net.Params(),
		Datasets:    make([]Dataset, len(jobs)),
	}
	logger.Info("benchmark started",
		zap.String("run_id", res.RunID),
		zap.String("network", res.Network),
		zap.Int("genes", net.Size()),
		zap.Int("experiments", len(jobs)),
		zap.Int64("seed", seed))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(s.Workers)
	for i, jb := range jobs {
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ds, err := g.runJob(gctx, net.Clone(), jb, logger)
			if err != nil {
				return err
			}
			res.Datasets[i] = ds
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}
		return nil, err
	}

	if s.Normalize {
		if err := normalize(res.Datasets); err != nil {
			return nil, err
		}
	}
	logger.Info("benchmark finished", zap.String("run_id", res.RunID), zap.Int("datasets", len(res.Datasets)))
	return res, nil
}

// plan builds every perturbation in a fixed order from r.
func (g *Generator) plan(r *rand.Rand, net *dynamics.GeneNetwork, logger *zap.Logger) ([]job, error) {
	s := g.Settings
	var jobs []job
	add := func(name string, pert perturbation.Perturbation, timeSeries bool) {
		kind := "wild_type"
		if pert != nil {
			kind = pert.Kind().String()
		}
		jobs = append(jobs, job{name: name, kind: kind, pert: pert, timeSeries: timeSeries, seed: r.Int63()})
	}

	if s.Experiments.WildType {
		add("wildtype", nil, false)
	}
	if s.Experiments.Knockouts {
		p, err := perturbation.NewSingleGene(net, 0)
		if err != nil {
			return nil, fmt.Errorf("knockouts: %w", err)
		}
		add("knockouts", p, false)
	}
	if s.Experiments.Knockdowns {
		p, err := perturbation.NewSingleGene(net, s.Perturbation.KnockdownFactor)
		if err != nil {
			return nil, fmt.Errorf("knockdowns: %w", err)
		}
		add("knockdowns", p, false)
	}
	if n := s.Experiments.DualKnockouts; n > 0 {
		p, err := perturbation.NewDual(r, net, 0, n)
		if err != nil {
			return nil, fmt.Errorf("dual knockouts: %w", err)
		}
		if p.Len() == 0 {
			logger.Info("no regulator pairs share a target, skipping dual knockouts")
		} else {
			add("dualknockouts", p, false)
		}
	}
	if n := s.Experiments.Multifactorial; n > 0 {
		strength := perturbation.Weak
		if s.Experiments.MultifactorialStrong {
			strength = perturbation.Strong
		}
		p, err := perturbation.NewMultifactorial(r, net, perturbation.MultifactorialOptions{
			Strength:    strength,
			Rows:        n,
			Stdev:       s.Perturbation.MultifactorialStdev,
			Probability: s.Perturbation.StrongProbability,
		})
		if err != nil {
			return nil, fmt.Errorf("multifactorial: %w", err)
		}
		add("multifactorial", p, false)
	}
	if n := s.Experiments.Mixed; n > 0 {
		regulators := net.Topology.Regulators()
		if len(regulators) == 0 {
			logger.Info("network has no regulators, skipping mixed perturbations")
		}
		for i := 0; i < n && len(regulators) > 0; i++ {
			p, err := g.mixed(r, net, regulators, fmt.Sprintf("mixed_%d", i+1))
			if err != nil {
				return nil, fmt.Errorf("mixed: %w", err)
			}
			add(p.Labels()[0], p, false)
		}
	}
	if n := s.Experiments.TimeSeries; n > 0 {
		p, err := perturbation.NewMultifactorial(r, net, perturbation.MultifactorialOptions{
			Strength: perturbation.Weak,
			Rows:     n,
			Stdev:    s.Perturbation.TimeSeriesStdev,
		})
		if err != nil {
			return nil, fmt.Errorf("time series: %w", err)
		}
		add("timeseries", p, true)
	}
	return jobs, nil
}

// mixed builds one condition that deletes a random regulator, overexpresses
// another and shifts every basal activation by N(0, MultifactorialStdev).
func (g *Generator) mixed(r *rand.Rand, net *dynamics.GeneNetwork, regulators []int, label string) (*perturbation.Mixed, error) {
	pp := g.Settings.Perturbation
	deletion, err := random.NewUniform(pp.DeletionMin, pp.DeletionMax)
	if err != nil {
		return nil, err
	}
	overexpression, err := random.NewUniform(pp.OverexpressionMin, pp.OverexpressionMax)
	if err != nil {
		return nil, err
	}

	p := perturbation.NewMixed(r, net, label, deletion, overexpression)
	delta := make([]float64, net.Size())
	for i := range delta {
		delta[i] = r.NormFloat64()
	}
	if err := p.AddToDeltaBasalActivation(delta, pp.MultifactorialStdev); err != nil {
		return nil, err
	}

	labels := net.Topology.Labels()
	deleted := regulators[r.Intn(len(regulators))]
	if err := p.Delete(net, labels[deleted]); err != nil {
		return nil, err
	}
	if len(regulators) > 1 {
		over := deleted
		for over == deleted {
			over = regulators[r.Intn(len(regulators))]
		}
		if err := p.Overexpress(net, labels[over]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (g *Generator) runJob(ctx context.Context, net *dynamics.GeneNetwork, jb job, logger *zap.Logger) (ds Dataset, err error) {
	s := g.Settings
	jr := rand.New(rand.NewSource(jb.seed))
	opts, err := s.ExperimentOptions(jr)
	if err != nil {
		return ds, err
	}

	start := time.Now()
	g.Metrics.ExperimentStarted()
	defer func() {
		g.Metrics.ExperimentFinished(jb.kind, err)
		if err != nil {
			logger.Error("experiment failed", zap.String("experiment", jb.name), zap.Error(err))
		}
	}()
	logger.Info("experiment started", zap.String("experiment", jb.name), zap.String("kind", jb.kind))

	if jb.timeSeries {
		ds, err = runTimeSeries(ctx, net, jb, opts, logger, g.Metrics)
	} else {
		ds, err = runSteadyState(ctx, net, jb, opts, logger, g.Metrics)
	}
	if err != nil {
		return ds, err
	}
	if jb.pert != nil {
		ds.Perturbation = jb.pert.Matrix()
	}

	s.Noise.Apply(jr, ds.MRNA)
	s.Noise.Apply(jr, ds.Protein)
	logger.Info("experiment finished",
		zap.String("experiment", jb.name),
		zap.Int("rows", len(ds.RowLabels)),
		zap.Duration("elapsed", time.Since(start)))
	return ds, nil
}

func runSteadyState(ctx context.Context, net *dynamics.GeneNetwork, jb job, opts experiment.Options, logger *zap.Logger, obs *observability.SolverCollector) (Dataset, error) {
	e, err := experiment.NewSteadyState(jb.name, opts, logger, observer(obs))
	if err != nil {
		return Dataset{}, err
	}
	out, err := e.Run(ctx, net, jb.pert)
	if err != nil {
		return Dataset{}, err
	}
	return Dataset{
		Name:      jb.name,
		Kind:      jb.kind,
		Genes:     out.Genes,
		RowLabels: out.Rows,
		MRNA:      out.MRNA,
		Protein:   out.Protein,
		Converged: out.Converged,
	}, nil
}

func runTimeSeries(ctx context.Context, net *dynamics.GeneNetwork, jb job, opts experiment.Options, logger *zap.Logger, obs *observability.SolverCollector) (Dataset, error) {
	e, err := experiment.NewTimeSeries(jb.name, opts, logger, observer(obs))
	if err != nil {
		return Dataset{}, err
	}
	out, err := e.Run(ctx, net, jb.pert)
	if err != nil {
		return Dataset{}, err
	}

	points := len(out.Times)
	rows := points * len(out.Trajectories)
	n := len(out.Genes)
	ds := Dataset{
		Name:      jb.name,
		Kind:      jb.kind,
		Genes:     out.Genes,
		RowLabels: make([]string, 0, rows),
		MRNA:      mat.NewDense(rows, n, nil),
		Times:     make([]float64, 0, rows),
	}
	if net.ModelTranslation {
		ds.Protein = mat.NewDense(rows, n, nil)
	}
	for i, traj := range out.Trajectories {
		block := ds.MRNA.Slice(i*points, (i+1)*points, 0, n).(*mat.Dense)
		block.Copy(traj.MRNA)
		if ds.Protein != nil {
			block = ds.Protein.Slice(i*points, (i+1)*points, 0, n).(*mat.Dense)
			block.Copy(traj.Protein)
		}
		for _, t := range out.Times {
			ds.RowLabels = append(ds.RowLabels, traj.Label)
			ds.Times = append(ds.Times, t)
		}
	}
	return ds, nil
}

// observer keeps a nil collector from becoming a non-nil interface.
func observer(c *observability.SolverCollector) experiment.Observer {
	if c == nil {
		return nil
	}
	return c
}

// normalize scales mRNA datasets by their common maximum, and protein
// datasets by theirs.
func normalize(datasets []Dataset) error {
	mrna := make([]*mat.Dense, 0, len(datasets))
	protein := make([]*mat.Dense, 0, len(datasets))
	for _, ds := range datasets {
		mrna = append(mrna, ds.MRNA)
		protein = append(protein, ds.Protein)
	}
	if _, err := noise.Normalize(mrna...); err != nil {
		return fmt.Errorf("normalize mrna: %w", err)
	}
	if _, err := noise.Normalize(protein...); err != nil {
		return fmt.Errorf("normalize protein: %w", err)
	}
	return nil
}
