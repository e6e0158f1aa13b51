package config

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"grnsim/internal/random"
	"grnsim/internal/solver"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())

	kin, err := s.RegulationKinetics()
	require.NoError(t, err)
	require.Equal(t, random.Uniform{Min: 0.01, Max: 1}, kin.K)
	require.Equal(t, 0.05, kin.WeakActivation)

	typ, err := s.SolverType()
	require.NoError(t, err)
	require.Equal(t, solver.TypeODE, typ)
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	path := writeSettings(t, `
seed: 42
solver: sde
model_translation: true
integration:
  noise_coefficient: 0.1
experiments:
  dual_knockouts: 0
kinetics:
  k:
    kind: constant
    value: 0.3
noise:
  lognormal_stdev: 0.2
`)
	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, int64(42), s.Seed)
	require.Equal(t, "sde", s.Solver)
	require.True(t, s.ModelTranslation)
	require.Equal(t, 0.1, s.Integration.NoiseCoefficient)
	require.Equal(t, 0, s.Experiments.DualKnockouts)
	require.Equal(t, 10, s.Experiments.Multifactorial, "untouched keys keep defaults")
	require.Equal(t, 0.2, s.Noise.LogNormalStdev)

	kin, err := s.RegulationKinetics()
	require.NoError(t, err)
	require.Equal(t, random.Constant(0.3), kin.K)
	require.True(t, kin.ModelTranslation)

	r := rand.New(rand.NewSource(1))
	opts, err := s.ExperimentOptions(r)
	require.NoError(t, err)
	require.Equal(t, solver.TypeSDE, opts.Solver)
	require.Same(t, r, opts.SolverOptions.Rand)
	require.Equal(t, 0.1, opts.SolverOptions.NoiseCoefficient)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown key", body: "solvr: ode\n"},
		{name: "solver", body: "solver: euler\n"},
		{name: "workers", body: "workers: 0\n"},
		{name: "tolerance", body: "integration:\n  abs_tol: 0\n"},
		{name: "time series window", body: "experiments:\n  time_series_dt: 10\n  time_series_max_t: 5\n"},
		{name: "deletion range", body: "perturbation:\n  deletion_min: 0.9\n  deletion_max: 0.2\n"},
		{name: "sqlite path", body: "store:\n  kind: sqlite\n"},
		{name: "distribution kind", body: "kinetics:\n  n:\n    kind: poisson\n"},
		{name: "gaussian range", body: "kinetics:\n  n:\n    kind: gaussian\n    min: 5\n    max: 1\n"},
		{name: "noise", body: "noise:\n  normal_stdev: -1\n"},
		{name: "yaml", body: "seed: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeSettings(t, tc.body))
			require.True(t, errors.Is(err, ErrInvalidSettings), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestEmptyFileKeepsDefaults(t *testing.T) {
	s, err := Load(writeSettings(t, ""))
	require.NoError(t, err)
	require.Equal(t, Default(), s)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GRNSIM_SEED":       "7",
		"GRNSIM_WORKERS":    "2",
		"GRNSIM_SOLVER":     "sde",
		"GRNSIM_LOG_LEVEL":  "debug",
		"GRNSIM_STORE_PATH": "/tmp/runs.db",
	}
	s := Default()
	require.NoError(t, applyEnv(&s, func(k string) string { return env[k] }))
	require.Equal(t, int64(7), s.Seed)
	require.Equal(t, 2, s.Workers)
	require.Equal(t, "sde", s.Solver)
	require.Equal(t, "debug", s.Log.Level)
	require.Equal(t, Store{Kind: "sqlite", Path: "/tmp/runs.db"}, s.Store)
	require.NoError(t, s.Validate())

	env["GRNSIM_SEED"] = "seven"
	err := applyEnv(&s, func(k string) string { return env[k] })
	require.True(t, errors.Is(err, ErrInvalidSettings))
}
