package dynamics

import (
	"errors"
	"fmt"
	"math"
)

var ErrNegativeDiffusion = errors.New("negative argument in diffusion term")

// ODESystem is the deterministic right-hand side of a GeneNetwork together
// with a delta-based steady-state test.
type ODESystem struct {
	Net    *GeneNetwork
	AbsTol float64
	RelTol float64

	previous []float64
}

func NewODESystem(net *GeneNetwork, absTol, relTol float64) *ODESystem {
	return &ODESystem{Net: net, AbsTol: absTol, RelTol: relTol}
}

func (s *ODESystem) Dim() int {
	return s.Net.StateSize()
}

func (s *ODESystem) Rate(_ float64, state, out []float64) {
	s.Net.Dxydt(state, out)
}

// Converged compares state against the state remembered at the last failed
// check. The remembered state moves only when a component fails the test, so
// the first call always reports false.
func (s *ODESystem) Converged(state []float64) bool {
	if s.previous == nil {
		s.previous = append([]float64(nil), state...)
		return false
	}
	for i, curr := range state {
		if math.Abs(s.previous[i]-curr) > s.AbsTol+s.RelTol*math.Abs(curr) {
			copy(s.previous, state)
			return false
		}
	}
	return true
}

// SDESystem provides drift and diagonal diffusion of the chemical Langevin
// approximation: the noise amplitude of each component scales with the
// square root of its total reaction flux.
type SDESystem struct {
	Net              *GeneNetwork
	NoiseCoefficient float64

	negativeClamps int
}

func NewSDESystem(net *GeneNetwork, noiseCoefficient float64) *SDESystem {
	return &SDESystem{Net: net, NoiseCoefficient: noiseCoefficient}
}

func (s *SDESystem) Dim() int {
	return s.Net.StateSize()
}

func (s *SDESystem) DriftAndDiffusion(_ float64, x, drift, diffusion []float64) error {
	production, degradation := s.Net.Rates(x)
	for i := range production {
		drift[i] = production[i] - degradation[i]
		flux := production[i] + degradation[i]
		if flux < 0 {
			return fmt.Errorf("%w: component %d flux=%g", ErrNegativeDiffusion, i, flux)
		}
		diffusion[i] = s.NoiseCoefficient * math.Sqrt(flux)
	}
	return nil
}

// Clamp resets negative components of x to zero.
func (s *SDESystem) Clamp(x []float64) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
			s.negativeClamps++
		}
	}
}

func (s *SDESystem) NegativeClamps() int {
	return s.negativeClamps
}
