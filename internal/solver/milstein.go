package solver

import (
	"math"
	"math/rand"
)

// NoiseSystem is a diagonal-noise stochastic differential equation.
type NoiseSystem interface {
	Dim() int
	DriftAndDiffusion(t float64, x, drift, diffusion []float64) error
	Clamp(x []float64)
}

// Milstein integrates a Stratonovich SDE with the derivative-free Milstein
// scheme: the diffusion derivative is replaced by a finite difference taken
// at a supporting value one noise step away.
type Milstein struct {
	System   NoiseSystem
	StepSize float64
	Rand     *rand.Rand

	drift      []float64
	diffusion  []float64
	support    []float64
	supDrift   []float64
	supDiffuse []float64
}

func NewMilstein(sys NoiseSystem, stepSize float64, r *rand.Rand) *Milstein {
	n := sys.Dim()
	return &Milstein{
		System:     sys,
		StepSize:   stepSize,
		Rand:       r,
		drift:      make([]float64, n),
		diffusion:  make([]float64, n),
		support:    make([]float64, n),
		supDrift:   make([]float64, n),
		supDiffuse: make([]float64, n),
	}
}

// Integrate advances x in place from t over duration using fixed steps of
// StepSize (the last one shortened to land on duration) and returns the time
// covered.
func (m *Milstein) Integrate(t float64, x []float64, duration float64) (float64, error) {
	elapsed := 0.0
	for elapsed < duration {
		h := m.StepSize
		last := h >= duration-elapsed
		if last {
			h = duration - elapsed
		}
		if err := m.step(t+elapsed, x, h); err != nil {
			return elapsed, err
		}
		if last {
			return duration, nil
		}
		elapsed += h
	}
	return elapsed, nil
}

func (m *Milstein) step(t float64, x []float64, h float64) error {
	if err := m.System.DriftAndDiffusion(t, x, m.drift, m.diffusion); err != nil {
		return err
	}
	sqrtH := math.Sqrt(h)
	for i := range x {
		m.support[i] = math.Max(0, x[i]+m.drift[i]*h+m.diffusion[i]*sqrtH)
	}
	if err := m.System.DriftAndDiffusion(t, m.support, m.supDrift, m.supDiffuse); err != nil {
		return err
	}
	for i := range x {
		dW := sqrtH * m.Rand.NormFloat64()
		x[i] += m.drift[i]*h + m.diffusion[i]*dW + (m.supDiffuse[i]-m.diffusion[i])*dW*dW/(2*sqrtH)
	}
	m.System.Clamp(x)
	return nil
}
