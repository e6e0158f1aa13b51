// Package config holds the settings of a benchmark generation run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"grnsim/internal/experiment"
	"grnsim/internal/noise"
	"grnsim/internal/random"
	"grnsim/internal/regulation"
	"grnsim/internal/solver"
)

var ErrInvalidSettings = errors.New("invalid settings")

type Settings struct {
	// Seed of the shared random engine; 0 seeds from the wall clock.
	Seed             int64  `yaml:"seed"`
	ModelTranslation bool   `yaml:"model_translation"`
	Solver           string `yaml:"solver" validate:"oneof=ode sde"`
	Workers          int    `yaml:"workers" validate:"gte=1,lte=256"`
	Normalize        bool   `yaml:"normalize"`

	Integration  Integration  `yaml:"integration"`
	Experiments  Experiments  `yaml:"experiments"`
	Perturbation Perturbation `yaml:"perturbation"`
	Noise        noise.Model  `yaml:"noise"`
	Kinetics     Kinetics     `yaml:"kinetics"`
	Log          Log          `yaml:"log"`
	Store        Store        `yaml:"store"`
}

type Integration struct {
	AbsTol           float64 `yaml:"abs_tol" validate:"gt=0"`
	RelTol           float64 `yaml:"rel_tol" validate:"gt=0"`
	DT               float64 `yaml:"dt" validate:"gt=0"`
	RKTolerance      float64 `yaml:"rk_tolerance" validate:"gt=0"`
	MaxIterations    int     `yaml:"max_iterations" validate:"gte=1"`
	SDEStepSize      float64 `yaml:"sde_step_size" validate:"gt=0"`
	NoiseCoefficient float64 `yaml:"noise_coefficient" validate:"gte=0"`
	MaxTSteadyState  float64 `yaml:"max_t_steady_state" validate:"gt=0"`
}

// Experiments selects which datasets a run produces.
type Experiments struct {
	WildType             bool `yaml:"wild_type"`
	Knockouts            bool `yaml:"knockouts"`
	Knockdowns           bool `yaml:"knockdowns"`
	DualKnockouts        int  `yaml:"dual_knockouts" validate:"gte=0"`
	Multifactorial       int  `yaml:"multifactorial" validate:"gte=0"`
	MultifactorialStrong bool `yaml:"multifactorial_strong"`
	// Mixed is the number of single-row conditions combining a deletion, an
	// overexpression and a basal shift.
	Mixed                    int     `yaml:"mixed" validate:"gte=0"`
	TimeSeries               int     `yaml:"time_series" validate:"gte=0"`
	TimeSeriesDT             float64 `yaml:"time_series_dt" validate:"gt=0"`
	TimeSeriesMaxT           float64 `yaml:"time_series_max_t" validate:"gtefield=TimeSeriesDT"`
	RemovePerturbationAtHalf bool    `yaml:"remove_perturbation_at_half"`
}

type Perturbation struct {
	KnockdownFactor     float64 `yaml:"knockdown_factor" validate:"gte=0,lte=1"`
	MultifactorialStdev float64 `yaml:"multifactorial_stdev" validate:"gte=0"`
	StrongProbability   float64 `yaml:"strong_probability" validate:"gte=0,lte=1"`
	TimeSeriesStdev     float64 `yaml:"time_series_stdev" validate:"gte=0"`
	DeletionMin         float64 `yaml:"deletion_min" validate:"gte=0,lte=1"`
	DeletionMax         float64 `yaml:"deletion_max" validate:"gtefield=DeletionMin,lte=1"`
	OverexpressionMin   float64 `yaml:"overexpression_min" validate:"gte=0"`
	OverexpressionMax   float64 `yaml:"overexpression_max" validate:"gtefield=OverexpressionMin"`
}

// Distribution is the YAML form of a random.Parameter.
type Distribution struct {
	Kind  string  `yaml:"kind" validate:"oneof=constant uniform gaussian"`
	Value float64 `yaml:"value"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Mean  float64 `yaml:"mean"`
	Stdev float64 `yaml:"stdev"`
	Log   bool    `yaml:"log"`
}

type Kinetics struct {
	K                  Distribution `yaml:"k"`
	N                  Distribution `yaml:"n"`
	HalfLife           Distribution `yaml:"half_life"`
	ProteinHalfLife    Distribution `yaml:"protein_half_life"`
	DeltaActivation    Distribution `yaml:"delta_activation"`
	LowBasal           Distribution `yaml:"low_basal"`
	MediumBasal        Distribution `yaml:"medium_basal"`
	WeakActivation     float64      `yaml:"weak_activation" validate:"gte=0,lte=1"`
	ComplexProbability float64      `yaml:"complex_probability" validate:"gte=0,lte=1"`
}

type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type Store struct {
	Kind string `yaml:"kind" validate:"oneof=memory sqlite"`
	Path string `yaml:"path" validate:"required_if=Kind sqlite"`
}

func Default() Settings {
	sopts := solver.DefaultOptions()
	eopts := experiment.DefaultOptions()
	kin := regulation.DefaultKinetics()
	return Settings{
		Solver:    "ode",
		Workers:   4,
		Normalize: true,
		Integration: Integration{
			AbsTol:           sopts.AbsTol,
			RelTol:           sopts.RelTol,
			DT:               sopts.DT,
			RKTolerance:      sopts.RKTolerance,
			MaxIterations:    sopts.MaxIterations,
			SDEStepSize:      sopts.SDEStepSize,
			NoiseCoefficient: sopts.NoiseCoefficient,
			MaxTSteadyState:  eopts.MaxTSteadyState,
		},
		Experiments: Experiments{
			WildType:                 true,
			Knockouts:                true,
			Knockdowns:               true,
			DualKnockouts:            5,
			Multifactorial:           10,
			TimeSeries:               5,
			TimeSeriesDT:             eopts.TimeSeriesDT,
			TimeSeriesMaxT:           eopts.TimeSeriesMaxT,
			RemovePerturbationAtHalf: true,
		},
		Perturbation: Perturbation{
			KnockdownFactor:     0.5,
			MultifactorialStdev: 0.1,
			StrongProbability:   0.5,
			TimeSeriesStdev:     0.33,
			DeletionMin:         0.5,
			DeletionMax:         1,
			OverexpressionMin:   1,
			OverexpressionMax:   2,
		},
		Kinetics: Kinetics{
			K:                  fromParameter(kin.K),
			N:                  fromParameter(kin.N),
			HalfLife:           fromParameter(kin.HalfLife),
			ProteinHalfLife:    fromParameter(kin.ProteinHalfLife),
			DeltaActivation:    fromParameter(kin.DeltaActivation),
			LowBasal:           fromParameter(kin.LowBasal),
			MediumBasal:        fromParameter(kin.MediumBasal),
			WeakActivation:     kin.WeakActivation,
			ComplexProbability: kin.ComplexProbability,
		},
		Log:   Log{Level: "info", Format: "console"},
		Store: Store{Kind: "memory"},
	}
}

// Load overlays the YAML file at path onto Default, then the GRNSIM_*
// environment variables, and validates the result. An empty path skips the
// file.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("read settings: %w", err)
		}
		if err := decode(bytes.NewReader(raw), &s); err != nil {
			return s, fmt.Errorf("%w: %s: %v", ErrInvalidSettings, path, err)
		}
	}
	if err := applyEnv(&s, os.Getenv); err != nil {
		return s, err
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func decode(r io.Reader, s *Settings) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(s *Settings, getenv func(string) string) error {
	if v := getenv("GRNSIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: GRNSIM_SEED: %v", ErrInvalidSettings, err)
		}
		s.Seed = seed
	}
	if v := getenv("GRNSIM_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: GRNSIM_WORKERS: %v", ErrInvalidSettings, err)
		}
		s.Workers = workers
	}
	if v := getenv("GRNSIM_SOLVER"); v != "" {
		s.Solver = v
	}
	if v := getenv("GRNSIM_LOG_LEVEL"); v != "" {
		s.Log.Level = v
	}
	if v := getenv("GRNSIM_STORE_PATH"); v != "" {
		s.Store.Kind = "sqlite"
		s.Store.Path = v
	}
	return nil
}

var validate = validator.New()

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if _, err := s.RegulationKinetics(); err != nil {
		return err
	}
	return nil
}

func (s Settings) SolverType() (solver.Type, error) {
	return solver.ParseType(s.Solver)
}

// SolverOptions builds integration options drawing noise from r.
func (s Settings) SolverOptions(r *rand.Rand) solver.Options {
	return solver.Options{
		DT:               s.Integration.DT,
		AbsTol:           s.Integration.AbsTol,
		RelTol:           s.Integration.RelTol,
		RKTolerance:      s.Integration.RKTolerance,
		MaxIterations:    s.Integration.MaxIterations,
		SDEStepSize:      s.Integration.SDEStepSize,
		NoiseCoefficient: s.Integration.NoiseCoefficient,
		Rand:             r,
	}
}

func (s Settings) ExperimentOptions(r *rand.Rand) (experiment.Options, error) {
	typ, err := s.SolverType()
	if err != nil {
		return experiment.Options{}, err
	}
	return experiment.Options{
		Solver:                   typ,
		SolverOptions:            s.SolverOptions(r),
		MaxTSteadyState:          s.Integration.MaxTSteadyState,
		TimeSeriesDT:             s.Experiments.TimeSeriesDT,
		TimeSeriesMaxT:           s.Experiments.TimeSeriesMaxT,
		RemovePerturbationAtHalf: s.Experiments.RemovePerturbationAtHalf,
	}, nil
}

func (s Settings) RegulationKinetics() (regulation.Kinetics, error) {
	kin := regulation.Kinetics{
		WeakActivation:     s.Kinetics.WeakActivation,
		ComplexProbability: s.Kinetics.ComplexProbability,
		ModelTranslation:   s.ModelTranslation,
	}
	fields := []struct {
		name string
		dist Distribution
		dst  *random.Parameter
	}{
		{"k", s.Kinetics.K, &kin.K},
		{"n", s.Kinetics.N, &kin.N},
		{"half_life", s.Kinetics.HalfLife, &kin.HalfLife},
		{"protein_half_life", s.Kinetics.ProteinHalfLife, &kin.ProteinHalfLife},
		{"delta_activation", s.Kinetics.DeltaActivation, &kin.DeltaActivation},
		{"low_basal", s.Kinetics.LowBasal, &kin.LowBasal},
		{"medium_basal", s.Kinetics.MediumBasal, &kin.MediumBasal},
	}
	for _, f := range fields {
		p, err := f.dist.Parameter()
		if err != nil {
			return kin, fmt.Errorf("%w: kinetics.%s: %v", ErrInvalidSettings, f.name, err)
		}
		*f.dst = p
	}
	return kin, nil
}

// Parameter converts d into a validated random.Parameter.
func (d Distribution) Parameter() (random.Parameter, error) {
	switch d.Kind {
	case "constant":
		return random.Constant(d.Value), nil
	case "uniform":
		u, err := random.NewUniform(d.Min, d.Max)
		if err != nil {
			return nil, err
		}
		return u, nil
	case "gaussian":
		g, err := random.NewGaussian(d.Min, d.Max, d.Mean, d.Stdev, d.Log)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown distribution %q", d.Kind)
	}
}

func fromParameter(p random.Parameter) Distribution {
	switch v := p.(type) {
	case random.Constant:
		return Distribution{Kind: "constant", Value: float64(v)}
	case random.Uniform:
		return Distribution{Kind: "uniform", Min: v.Min, Max: v.Max}
	case random.Gaussian:
		return Distribution{Kind: "gaussian", Min: v.Min, Max: v.Max, Mean: v.Mean, Stdev: v.Stdev, Log: v.Log}
	default:
		return Distribution{}
	}
}
