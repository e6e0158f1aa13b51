package regulation

import (
	"math"
	"math/rand"

	"grnsim/internal/model"
	"grnsim/internal/random"
)

// Module is a synergistic group of regulator inputs. Its inputs are ordered
// activators first, then deactivators; K and N follow that order.
type Module struct {
	IsEnhancer      bool
	BindsAsComplex  bool
	NumActivators   int
	NumDeactivators int
	K               []float64
	N               []float64
}

func (m *Module) NumInputs() int {
	return m.NumActivators + m.NumDeactivators
}

// Activation returns the fraction of time the module is active given the
// concentrations x of its inputs. The result lies in [0, 1].
//
// Both forms are evaluated as products of bounded factors so that saturating
// inputs (x/k)^n -> +Inf still give a finite probability.
func (m *Module) Activation(x []float64) float64 {
	numInputs := m.NumInputs()
	if numInputs == 0 {
		return 0
	}

	if m.BindsAsComplex {
		// num / (1 + num + num*deact) == 1 / (1/num + 1 + deact)
		activators := 1.0
		for i := 0; i < m.NumActivators; i++ {
			activators *= m.occupancy(i, x[i])
		}
		if activators == 0 {
			return 0
		}
		deactivators := 0.0
		if m.NumDeactivators > 0 {
			deactivators = 1
			for i := m.NumActivators; i < numInputs; i++ {
				deactivators *= m.occupancy(i, x[i])
			}
		}
		return 1 / (1/activators + 1 + deactivators)
	}

	// prod(xi over activators) / prod(xi+1 over all inputs)
	activation := 1.0
	for i := 0; i < numInputs; i++ {
		xi := m.occupancy(i, x[i])
		if i < m.NumActivators {
			activation *= bound(xi)
		} else {
			activation *= 1 - bound(xi)
		}
	}
	return activation
}

// occupancy is (x/k)^n for input i.
func (m *Module) occupancy(i int, x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Pow(x/m.K[i], m.N[i])
}

// bound is the single-site occupancy probability xi/(1+xi).
func bound(xi float64) float64 {
	if math.IsInf(xi, 1) {
		return 1
	}
	return xi / (1 + xi)
}

// RandomizeParameters draws a dissociation constant and a Hill coefficient
// for every input. Structure is left untouched.
func (m *Module) RandomizeParameters(r *rand.Rand, k, n random.Parameter) {
	numInputs := m.NumInputs()
	m.K = make([]float64, numInputs)
	m.N = make([]float64, numInputs)
	for i := 0; i < numInputs; i++ {
		m.K[i] = k.Draw(r)
		m.N[i] = n.Draw(r)
	}
}

// EdgeSigns gives the realised sign of each input edge on the target gene.
func (m *Module) EdgeSigns() []model.EdgeType {
	signs := make([]model.EdgeType, m.NumInputs())
	for i := range signs {
		activator := i < m.NumActivators
		if activator == m.IsEnhancer {
			signs[i] = model.EdgeEnhancer
		} else {
			signs[i] = model.EdgeInhibitor
		}
	}
	return signs
}

func (m *Module) clone() *Module {
	c := *m
	c.K = append([]float64(nil), m.K...)
	c.N = append([]float64(nil), m.N...)
	return &c
}
