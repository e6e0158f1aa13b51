package dynamics

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"grnsim/internal/model"
	"grnsim/internal/regulation"
)

// activatorPair is A -> B with a single non-cooperative activator module.
func activatorPair(t *testing.T, translation bool) *GeneNetwork {
	t.Helper()
	topo := model.NewNetwork("ab")
	_, err := topo.AddNode("A")
	require.NoError(t, err)
	_, err = topo.AddNode("B")
	require.NoError(t, err)
	require.NoError(t, topo.AddEdge("A", "B", model.EdgeEnhancer))
	topo.MarkRegulators()

	net := NewGeneNetwork(topo, translation)
	net.Genes[0] = &regulation.HillGene{Delta: 0.5, Max: 0.5, DeltaProtein: 0.2, MaxTranslation: 0.2, Alpha: []float64{1}}
	net.Genes[1] = &regulation.HillGene{
		Delta:          1,
		Max:            1,
		DeltaProtein:   0.25,
		MaxTranslation: 0.25,
		Inputs:         []int{0},
		Modules: []*regulation.Module{
			{IsEnhancer: true, NumActivators: 1, K: []float64{0.5}, N: []float64{2}},
		},
		Alpha: []float64{0.1, 0.9},
	}
	return net
}

func TestDxydtMRNAOnly(t *testing.T) {
	net := activatorPair(t, false)
	require.Equal(t, 2, net.StateSize())

	out := make([]float64, 2)
	net.Dxydt([]float64{0.5, 0.2}, out)

	// A: 0.5*1 - 0.5*0.5; B: activation 0.5 -> alpha_eff 0.5, 1*0.5 - 1*0.2
	require.InDelta(t, 0.25, out[0], 1e-12)
	require.InDelta(t, 0.3, out[1], 1e-12)
}

func TestDxydtUsesProteinAsRegulator(t *testing.T) {
	net := activatorPair(t, true)
	require.Equal(t, 4, net.StateSize())

	out := make([]float64, 4)
	// mRNA of A is zero but its protein is at k, so B is half active.
	net.Dxydt([]float64{0, 0.2, 0.5, 0}, out)

	require.InDelta(t, 0.5, out[0], 1e-12)
	require.InDelta(t, 0.5-0.2, out[1], 1e-12)
	require.InDelta(t, 0-0.2*0.5, out[2], 1e-12)
	require.InDelta(t, 0.25*0.2, out[3], 1e-12)
}

func TestDxydtDoesNotMutateInput(t *testing.T) {
	net := activatorPair(t, true)
	xy := []float64{0.1, 0.2, 0.3, 0.4}
	before := append([]float64(nil), xy...)
	out := make([]float64, 4)
	net.Dxydt(xy, out)
	net.Dxydt(xy, out)
	require.Equal(t, before, xy)
}

func TestODESystemConvergence(t *testing.T) {
	net := activatorPair(t, false)
	sys := NewODESystem(net, 1e-6, 1e-3)

	require.False(t, sys.Converged([]float64{1, 1}), "first call has no reference")
	require.False(t, sys.Converged([]float64{0.5, 1}))
	require.True(t, sys.Converged([]float64{0.5, 1}))
	require.True(t, sys.Converged([]float64{0.5 + 1e-7, 1}))
	require.False(t, sys.Converged([]float64{0.6, 1}))
	require.True(t, sys.Converged([]float64{0.6, 1}))
}

func TestSDEDriftAndDiffusion(t *testing.T) {
	net := activatorPair(t, false)
	sys := NewSDESystem(net, 0.05)

	x := []float64{0.5, 0.2}
	drift := make([]float64, 2)
	diffusion := make([]float64, 2)
	require.NoError(t, sys.DriftAndDiffusion(0, x, drift, diffusion))

	require.InDelta(t, 0.25, drift[0], 1e-12)
	require.InDelta(t, 0.3, drift[1], 1e-12)
	require.InDelta(t, 0.05*math.Sqrt(0.5+0.25), diffusion[0], 1e-12)
	require.InDelta(t, 0.05*math.Sqrt(0.5+0.2), diffusion[1], 1e-12)
}

func TestSDENegativeFluxIsFatal(t *testing.T) {
	net := activatorPair(t, false)
	sys := NewSDESystem(net, 0.05)

	drift := make([]float64, 2)
	diffusion := make([]float64, 2)
	err := sys.DriftAndDiffusion(0, []float64{-5, 0}, drift, diffusion)
	require.True(t, errors.Is(err, ErrNegativeDiffusion), "got %v", err)
}

func TestSDEClampCountsResets(t *testing.T) {
	sys := NewSDESystem(activatorPair(t, false), 0.05)
	x := []float64{-0.1, 0.3}
	sys.Clamp(x)
	require.Equal(t, []float64{0, 0.3}, x)
	sys.Clamp([]float64{-1, -2})
	require.Equal(t, 3, sys.NegativeClamps())
}

func TestRandomizeAndCloneAreIndependent(t *testing.T) {
	net := activatorPair(t, true)
	require.NoError(t, net.Randomize(rand.New(rand.NewSource(4)), regulation.DefaultKinetics()))
	require.Greater(t, net.Genes[1].DeltaProtein, 0.0, "translation rates drawn when modelled")

	c := net.Clone()
	c.Genes[1].Max = 0
	c.Topology.Edges[0].Type = model.EdgeDual
	require.NotEqual(t, 0.0, net.Genes[1].Max)
	require.NotEqual(t, model.EdgeDual, net.Topology.Edges[0].Type)
}

func TestParamsReload(t *testing.T) {
	net := activatorPair(t, false)
	require.NoError(t, net.Randomize(rand.New(rand.NewSource(9)), regulation.DefaultKinetics()))
	params := net.Params()

	other := NewGeneNetwork(net.Topology.Clone(), false)
	require.NoError(t, other.LoadParams(params))
	require.Equal(t, params, other.Params())

	err := other.LoadParams(params[:1])
	require.True(t, errors.Is(err, ErrGeneCount))

	for _, inputs := range [][]int{{7}, {-1}, {1}} {
		bad := other.Params()
		bad[1].Inputs = inputs
		err = other.LoadParams(bad)
		require.True(t, errors.Is(err, regulation.ErrInvalidParams), "inputs %v: %v", inputs, err)
	}
	require.Equal(t, params, other.Params())
}
