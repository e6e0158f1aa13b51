package regulation

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"grnsim/internal/model"
)

func twoGeneNetwork(t *testing.T) *model.Network {
	t.Helper()
	net := model.NewNetwork("ab")
	_, err := net.AddNode("A")
	require.NoError(t, err)
	_, err = net.AddNode("B")
	require.NoError(t, err)
	require.NoError(t, net.AddEdge("A", "B", model.EdgeEnhancer))
	return net
}

func TestHillGeneSingleActivatorLimits(t *testing.T) {
	g := &HillGene{
		Delta:  0.1,
		Max:    0.1,
		Inputs: []int{0},
		Modules: []*Module{
			{IsEnhancer: true, NumActivators: 1, K: []float64{0.5}, N: []float64{2}},
		},
		Alpha: []float64{0.05, 0.9},
	}

	require.InDelta(t, g.Max*g.Alpha[0], g.ProductionRate([]float64{0, 0}), 1e-15)
	require.InDelta(t, g.Max*g.Alpha[1], g.ProductionRate([]float64{1e9, 0}), 1e-12)

	half := g.ProductionRate([]float64{0.5, 0})
	require.InDelta(t, g.Max*(0.05+0.9)/2, half, 1e-12)
}

func TestEffectiveAlphaStaysWithinTable(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	kin := DefaultKinetics()

	for trial := 0; trial < 100; trial++ {
		net := randomNetwork(t, r, 6, 12)
		for idx := 0; idx < net.Size(); idx++ {
			g := &HillGene{}
			require.NoError(t, g.Randomize(r, net, idx, kin))

			lo, hi := g.Alpha[0], g.Alpha[0]
			for _, a := range g.Alpha {
				require.GreaterOrEqual(t, a, 0.0)
				require.LessOrEqual(t, a, 1.0)
				lo, hi = math.Min(lo, a), math.Max(hi, a)
			}

			x := make([]float64, net.Size())
			for i := range x {
				x[i] = r.Float64() * 2
			}
			eff := g.EffectiveAlpha(g.ModuleActivations(x))
			require.GreaterOrEqual(t, eff, lo-1e-12)
			require.LessOrEqual(t, eff, hi+1e-12)
			require.GreaterOrEqual(t, g.ProductionRate(x), 0.0)
		}
	}
}

func TestRandomizeStructureOrdersInputsAndSigns(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	kin := DefaultKinetics()

	for trial := 0; trial < 50; trial++ {
		net := randomNetwork(t, r, 8, 20)
		for idx := 0; idx < net.Size(); idx++ {
			g := &HillGene{}
			require.NoError(t, g.Randomize(r, net, idx, kin))

			require.ElementsMatch(t, net.Inputs(idx), g.Inputs)
			require.Len(t, g.Alpha, 1<<len(g.Modules))

			offset := 0
			for _, mod := range g.Modules {
				require.GreaterOrEqual(t, mod.NumActivators, 1)
				require.Len(t, mod.K, mod.NumInputs())
				require.Len(t, mod.N, mod.NumInputs())
				for i, sign := range mod.EdgeSigns() {
					e := net.Edges[net.EdgeIndex(g.Inputs[offset+i], idx)]
					require.Equal(t, sign, e.Type)
				}
				offset += mod.NumInputs()
			}
		}
	}
}

func TestRandomizeKeepsSignedEdgesWhenUnanimous(t *testing.T) {
	net := model.NewNetwork("fan-in")
	for _, label := range []string{"A", "B", "C"} {
		_, err := net.AddNode(label)
		require.NoError(t, err)
	}
	require.NoError(t, net.AddEdge("A", "C", model.EdgeInhibitor))
	require.NoError(t, net.AddEdge("B", "C", model.EdgeInhibitor))

	for seed := int64(1); seed < 30; seed++ {
		clone := net.Clone()
		g := &HillGene{}
		require.NoError(t, g.Randomize(rand.New(rand.NewSource(seed)), clone, 2, DefaultKinetics()))
		for _, mod := range g.Modules {
			require.False(t, mod.IsEnhancer)
			require.Equal(t, 0, mod.NumDeactivators)
		}
		require.Equal(t, 1.0, g.Alpha[0], "repressor-only genes start fully active")
		for _, e := range clone.Edges {
			require.Equal(t, model.EdgeInhibitor, e.Type)
		}
	}
}

func TestRandomizeIsReproducible(t *testing.T) {
	build := func() []GeneParams {
		r := rand.New(rand.NewSource(99))
		net := randomNetwork(t, r, 7, 15)
		out := make([]GeneParams, net.Size())
		for idx := range out {
			g := &HillGene{}
			require.NoError(t, g.Randomize(r, net, idx, DefaultKinetics()))
			out[idx] = g.Params()
		}
		return out
	}
	require.Equal(t, build(), build())
}

func TestParamsRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(21))
	kin := DefaultKinetics()
	kin.ModelTranslation = true
	net := randomNetwork(t, r, 6, 14)

	for idx := 0; idx < net.Size(); idx++ {
		g := &HillGene{}
		require.NoError(t, g.Randomize(r, net, idx, kin))

		restored, err := FromParams(g.Params())
		require.NoError(t, err)
		require.Equal(t, g.Params(), restored.Params())

		x := make([]float64, net.Size())
		for i := range x {
			x[i] = r.Float64()
		}
		require.Equal(t, g.ProductionRate(x), restored.ProductionRate(x))
	}
}

func TestFromParamsRejectsMalformedRecords(t *testing.T) {
	valid := GeneParams{
		Delta:  1,
		Max:    1,
		Inputs: []int{0},
		Alpha:  []float64{0.1, 0.9},
		Modules: []ModuleParams{
			{IsEnhancer: true, NumActivators: 1, K: []float64{0.5}, N: []float64{2}},
		},
	}
	_, err := FromParams(valid)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(p *GeneParams)
	}{
		{name: "alpha-size", mutate: func(p *GeneParams) { p.Alpha = []float64{0.1} }},
		{name: "alpha-range", mutate: func(p *GeneParams) { p.Alpha = []float64{0.1, 1.5} }},
		{name: "k-count", mutate: func(p *GeneParams) { p.Modules[0].K = nil }},
		{name: "no-activator", mutate: func(p *GeneParams) {
			p.Modules[0].NumActivators = 0
			p.Modules[0].NumDeactivators = 1
		}},
		{name: "input-count", mutate: func(p *GeneParams) { p.Inputs = []int{0, 1} }},
		{name: "delta", mutate: func(p *GeneParams) { p.Delta = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			p.Alpha = append([]float64(nil), valid.Alpha...)
			p.Inputs = append([]int(nil), valid.Inputs...)
			p.Modules = []ModuleParams{valid.Modules[0]}
			p.Modules[0].K = append([]float64(nil), valid.Modules[0].K...)
			tc.mutate(&p)
			_, err := FromParams(p)
			require.True(t, errors.Is(err, ErrInvalidParams), "got %v", err)
		})
	}
}

func TestPerturbAndRestoreBasalActivation(t *testing.T) {
	r := rand.New(rand.NewSource(8))
	net := randomNetwork(t, r, 5, 10)

	for idx := 0; idx < net.Size(); idx++ {
		g := &HillGene{}
		require.NoError(t, g.Randomize(r, net, idx, DefaultKinetics()))
		before := append([]float64(nil), g.Alpha...)

		for _, d := range []float64{-2, -0.3, 0.01, 0.4, 3} {
			g.PerturbBasalActivation(d)
			require.GreaterOrEqual(t, g.BasalActivation(), 0.0)
			require.LessOrEqual(t, g.BasalActivation(), 1.0)
			for _, a := range g.Alpha {
				require.GreaterOrEqual(t, a, 0.0)
				require.LessOrEqual(t, a, 1.0)
			}
			g.RestoreWildTypeBasalActivation()
			require.Equal(t, before, g.Alpha)

			g.RestoreWildTypeBasalActivation()
			require.Equal(t, before, g.Alpha)
		}
	}
}

func TestPerturbBasalActivationClampsDelta(t *testing.T) {
	g := &HillGene{Alpha: []float64{0.8, 0.3, 1, 0.5}}

	g.PerturbBasalActivation(0.5)
	require.InDelta(t, 1.0, g.Alpha[0], 1e-15)
	require.InDelta(t, 0.5, g.Alpha[1], 1e-15)
	require.InDelta(t, 1.0, g.Alpha[2], 1e-15)
	require.InDelta(t, 0.7, g.Alpha[3], 1e-15)

	g.RestoreWildTypeBasalActivation()
	require.Equal(t, []float64{0.8, 0.3, 1, 0.5}, g.Alpha)
}

func TestUnregulatedGeneIsConstitutive(t *testing.T) {
	net := twoGeneNetwork(t)
	g := &HillGene{}
	require.NoError(t, g.Randomize(rand.New(rand.NewSource(1)), net, 0, DefaultKinetics()))

	require.Empty(t, g.Modules)
	require.Equal(t, []float64{1}, g.Alpha)
	require.InDelta(t, g.Max, g.ProductionRate([]float64{0, 0}), 1e-15)
	require.Equal(t, g.Delta, g.Max)
}

func TestCloneIsDeep(t *testing.T) {
	net := twoGeneNetwork(t)
	g := &HillGene{}
	require.NoError(t, g.Randomize(rand.New(rand.NewSource(2)), net, 1, DefaultKinetics()))

	c := g.Clone()
	c.Modules[0].K[0] = 123
	c.Alpha[0] = 0.999
	require.NotEqual(t, 123.0, g.Modules[0].K[0])
	require.NotEqual(t, 0.999, g.Alpha[0])
}

func randomNetwork(t *testing.T, r *rand.Rand, nodes, edges int) *model.Network {
	t.Helper()
	net := model.NewNetwork("random")
	for i := 0; i < nodes; i++ {
		_, err := net.AddNode(string(rune('A' + i)))
		require.NoError(t, err)
	}
	types := []model.EdgeType{model.EdgeEnhancer, model.EdgeInhibitor, model.EdgeDual, model.EdgeUnknown}
	for added := 0; added < edges; {
		s, tgt := r.Intn(nodes), r.Intn(nodes)
		if net.EdgeIndex(s, tgt) >= 0 {
			continue
		}
		require.NoError(t, net.AddEdge(net.Nodes[s].Label, net.Nodes[tgt].Label, types[r.Intn(len(types))]))
		added++
	}
	net.MarkRegulators()
	return net
}
