package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// RateSystem is a first-order autonomous or time-dependent ODE.
type RateSystem interface {
	Dim() int
	Rate(t float64, state, out []float64)
}

// Cash-Karp coefficients.
var (
	ckA = [6][5]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{3.0 / 10, -9.0 / 10, 6.0 / 5},
		{-11.0 / 54, 5.0 / 2, -70.0 / 27, 35.0 / 27},
		{1631.0 / 55296, 175.0 / 512, 575.0 / 13824, 44275.0 / 110592, 253.0 / 4096},
	}
	ckC      = [6]float64{0, 1.0 / 5, 3.0 / 10, 3.0 / 5, 1, 7.0 / 8}
	ckFifth  = [6]float64{37.0 / 378, 0, 250.0 / 621, 125.0 / 594, 0, 512.0 / 1771}
	ckFourth = [6]float64{2825.0 / 27648, 0, 18575.0 / 48384, 13525.0 / 55296, 277.0 / 14336, 1.0 / 4}
)

const (
	safety    = 0.9
	minShrink = 0.2
	maxGrow   = 5.0
)

// RK45MultiStep advances an ODE by a fixed step using as many embedded
// Runge-Kutta 4(5) sub-steps as the error tolerance requires.
type RK45MultiStep struct {
	System        RateSystem
	StepSize      float64
	Tolerance     float64
	MaxIterations int

	adaptive  float64
	accepted  int
	rejected  int
	k         [6][]float64
	stage     []float64
	candidate []float64
	errEst    []float64
}

func NewRK45MultiStep(sys RateSystem, stepSize, tolerance float64, maxIterations int) *RK45MultiStep {
	n := sys.Dim()
	m := &RK45MultiStep{
		System:        sys,
		StepSize:      stepSize,
		Tolerance:     tolerance,
		MaxIterations: maxIterations,
		adaptive:      stepSize,
		stage:         make([]float64, n),
		candidate:     make([]float64, n),
		errEst:        make([]float64, n),
	}
	for i := range m.k {
		m.k[i] = make([]float64, n)
	}
	return m
}

// Step advances state in place from time t and returns the time actually
// covered. The result equals StepSize exactly on success; anything less means
// the step size underflowed or the iteration budget ran out.
func (m *RK45MultiStep) Step(t float64, state []float64) float64 {
	elapsed := 0.0
	h := m.adaptive
	for iter := 0; iter < m.MaxIterations; iter++ {
		remaining := m.StepSize - elapsed
		last := h >= remaining
		trial := h
		if last {
			trial = remaining
		}

		errRatio := m.trial(t+elapsed, state, trial)
		if errRatio <= 1 {
			copy(state, m.candidate)
			m.accepted++
			if last {
				m.adaptive = h
				return m.StepSize
			}
			elapsed += trial
			h = trial * growFactor(errRatio)
			continue
		}

		m.rejected++
		h = trial * shrinkFactor(errRatio)
		if h <= math.Abs(m.StepSize)*1e-12 || elapsed+h == elapsed {
			break
		}
	}
	m.adaptive = h
	return elapsed
}

// trial computes a fifth-order candidate of size h into m.candidate and
// returns the scaled error estimate.
func (m *RK45MultiStep) trial(t float64, state []float64, h float64) float64 {
	for s := 0; s < 6; s++ {
		copy(m.stage, state)
		for j := 0; j < s; j++ {
			if a := ckA[s][j]; a != 0 {
				floats.AddScaled(m.stage, h*a, m.k[j])
			}
		}
		m.System.Rate(t+ckC[s]*h, m.stage, m.k[s])
	}

	copy(m.candidate, state)
	for i := range m.errEst {
		m.errEst[i] = 0
	}
	for s := 0; s < 6; s++ {
		floats.AddScaled(m.candidate, h*ckFifth[s], m.k[s])
		floats.AddScaled(m.errEst, h*(ckFifth[s]-ckFourth[s]), m.k[s])
	}

	worst := 0.0
	for i, e := range m.errEst {
		scale := m.Tolerance * math.Max(1, math.Abs(state[i]))
		if r := math.Abs(e) / scale; r > worst || math.IsNaN(r) {
			worst = r
		}
	}
	if math.IsNaN(worst) {
		return math.Inf(1)
	}
	return worst
}

func growFactor(errRatio float64) float64 {
	if errRatio == 0 {
		return maxGrow
	}
	return math.Min(maxGrow, safety*math.Pow(errRatio, -0.2))
}

func shrinkFactor(errRatio float64) float64 {
	if math.IsInf(errRatio, 1) {
		return minShrink
	}
	return math.Max(minShrink, safety*math.Pow(errRatio, -0.25))
}
