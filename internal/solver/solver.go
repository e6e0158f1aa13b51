// Package solver integrates a GeneNetwork forward in time with either a
// deterministic or a stochastic scheme behind one stepping interface.
package solver

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"grnsim/internal/dynamics"
)

var (
	ErrNoSolverType   = errors.New("solver type must be ode or sde")
	ErrStepMismatch   = errors.New("solver did not advance by the requested step")
	ErrInvalidOptions = errors.New("invalid solver options")
	ErrStateSize      = errors.New("initial state size does not match network")
)

type Type int

const (
	TypeUnknown Type = iota
	TypeODE
	TypeSDE
)

func (t Type) String() string {
	switch t {
	case TypeODE:
		return "ode"
	case TypeSDE:
		return "sde"
	default:
		return "unknown"
	}
}

func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "ode":
		return TypeODE, nil
	case "sde":
		return TypeSDE, nil
	default:
		return TypeUnknown, fmt.Errorf("%w: %q", ErrNoSolverType, s)
	}
}

type Options struct {
	// DT is the time covered by one call to Step.
	DT     float64
	AbsTol float64
	RelTol float64
	// RKTolerance bounds the local error of the ODE sub-steps.
	RKTolerance   float64
	MaxIterations int
	// SDEStepSize is the fixed step of the stochastic scheme.
	SDEStepSize      float64
	NoiseCoefficient float64
	// Rand drives the Wiener increments; required for SDE.
	Rand *rand.Rand
}

func DefaultOptions() Options {
	return Options{
		DT:               1,
		AbsTol:           1e-5,
		RelTol:           1e-3,
		RKTolerance:      1e-6,
		MaxIterations:    10000,
		SDEStepSize:      0.01,
		NoiseCoefficient: 0.05,
	}
}

// Solver owns the flat state vector of one integration run.
type Solver struct {
	typ     Type
	dt      float64
	t       float64
	state   []float64
	micro   int
	ode     *dynamics.ODESystem
	rk      *RK45MultiStep
	sde     *dynamics.SDESystem
	scheme  *Milstein
	elapsed float64
}

func New(typ Type, net *dynamics.GeneNetwork, xy0 []float64, opts Options) (*Solver, error) {
	if len(xy0) != net.StateSize() {
		return nil, fmt.Errorf("%w: got %d want %d", ErrStateSize, len(xy0), net.StateSize())
	}
	if !(opts.DT > 0) {
		return nil, fmt.Errorf("%w: dt must be > 0, got %g", ErrInvalidOptions, opts.DT)
	}

	s := &Solver{typ: typ, dt: opts.DT, state: append([]float64(nil), xy0...)}
	switch typ {
	case TypeODE:
		if !(opts.RKTolerance > 0) || opts.MaxIterations <= 0 {
			return nil, fmt.Errorf("%w: rk tolerance and max iterations must be > 0", ErrInvalidOptions)
		}
		s.micro = microSteps(opts.DT)
		s.ode = dynamics.NewODESystem(net, opts.AbsTol, opts.RelTol)
		s.rk = NewRK45MultiStep(s.ode, opts.DT/float64(s.micro), opts.RKTolerance, opts.MaxIterations)
	case TypeSDE:
		if !(opts.SDEStepSize > 0) || opts.Rand == nil {
			return nil, fmt.Errorf("%w: sde needs a step size > 0 and a random source", ErrInvalidOptions)
		}
		s.sde = dynamics.NewSDESystem(net, opts.NoiseCoefficient)
		s.scheme = NewMilstein(s.sde, opts.SDEStepSize, opts.Rand)
	default:
		return nil, ErrNoSolverType
	}
	return s, nil
}

// microSteps splits large ODE steps: 10*floor(log10(dt)) sub-steps when
// dt >= 10, otherwise one.
func microSteps(dt float64) int {
	if dt < 10 {
		return 1
	}
	return 10 * int(math.Floor(math.Log10(dt)))
}

// Step advances the state by DT and returns DT. A scheme that cannot cover
// the requested step exactly fails with ErrStepMismatch.
func (s *Solver) Step() (float64, error) {
	switch s.typ {
	case TypeODE:
		for i := 0; i < s.micro; i++ {
			got := s.rk.Step(s.t, s.state)
			if got != s.rk.StepSize {
				return 0, fmt.Errorf("%w: advanced %g of %g at t=%g", ErrStepMismatch, got, s.rk.StepSize, s.t)
			}
			s.t += got
		}
	case TypeSDE:
		got, err := s.scheme.Integrate(s.t, s.state, s.dt)
		if err != nil {
			return 0, fmt.Errorf("sde step at t=%g: %w", s.t, err)
		}
		if got != s.dt {
			return 0, fmt.Errorf("%w: advanced %g of %g at t=%g", ErrStepMismatch, got, s.dt, s.t)
		}
		s.t += got
	default:
		return 0, ErrNoSolverType
	}
	s.elapsed += s.dt
	return s.dt, nil
}

// State returns a copy of the current state.
func (s *Solver) State() []float64 {
	return append([]float64(nil), s.state...)
}

// Converged applies the steady-state test to the current state. Stochastic
// trajectories never settle, so an SDE solver always reports false.
func (s *Solver) Converged() bool {
	if s.typ != TypeODE {
		return false
	}
	return s.ode.Converged(s.state)
}

// Time is the total integrated time, the sum of every Step's DT.
func (s *Solver) Time() float64 {
	return s.elapsed
}

func (s *Solver) Type() Type {
	return s.typ
}

// NegativeClamps counts components reset to zero by the stochastic scheme.
func (s *Solver) NegativeClamps() int {
	if s.sde == nil {
		return 0
	}
	return s.sde.NegativeClamps()
}

// Stats reports accepted and rejected ODE sub-steps.
func (s *Solver) Stats() (accepted, rejected int) {
	if s.rk == nil {
		return 0, 0
	}
	return s.rk.accepted, s.rk.rejected
}
