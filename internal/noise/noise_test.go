package noise

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDisabledModelLeavesDataUntouched(t *testing.T) {
	data := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	Model{}.Apply(rand.New(rand.NewSource(1)), data)
	require.Equal(t, []float64{1, 2, 3, 4}, data.RawMatrix().Data)
	require.False(t, Model{}.Enabled())
}

func TestNoiseIsReproducibleAndNonNegative(t *testing.T) {
	m := Model{NormalStdev: 0.5, LogNormalStdev: 0.3}
	run := func(seed int64) []float64 {
		data := mat.NewDense(10, 10, nil)
		for i := 0; i < 10; i++ {
			for j := 0; j < 10; j++ {
				data.Set(i, j, 0.1*float64(j))
			}
		}
		m.Apply(rand.New(rand.NewSource(seed)), data)
		return data.RawMatrix().Data
	}

	a := run(3)
	require.Equal(t, a, run(3))
	require.NotEqual(t, a, run(4))
	for _, v := range a {
		require.GreaterOrEqual(t, v, 0.0)
	}
}

func TestLogNormalKeepsZeros(t *testing.T) {
	data := mat.NewDense(1, 3, []float64{0, 0, 1})
	Model{LogNormalStdev: 1}.Apply(rand.New(rand.NewSource(2)), data)
	require.Equal(t, 0.0, data.At(0, 0))
	require.Equal(t, 0.0, data.At(0, 1))
	require.Greater(t, data.At(0, 2), 0.0)
}

func TestNormalizeUsesGlobalMax(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{1, 2})
	b := mat.NewDense(1, 2, []float64{4, 0})

	peak, err := Normalize(a, nil, b)
	require.NoError(t, err)
	require.Equal(t, 4.0, peak)
	require.Equal(t, []float64{0.25, 0.5}, a.RawMatrix().Data)
	require.Equal(t, []float64{1, 0}, b.RawMatrix().Data)

	zeros := mat.NewDense(1, 2, nil)
	peak, err = Normalize(zeros)
	require.NoError(t, err)
	require.Equal(t, 0.0, peak)

	peak, err = Normalize()
	require.NoError(t, err)
	require.Equal(t, 0.0, peak)
}

func TestSummarize(t *testing.T) {
	data := mat.NewDense(2, 2, []float64{1, 10, 3, 10})
	s, err := Summarize(data)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 10}, s.Mean)
	require.Equal(t, []float64{1, 0}, s.Stdev)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Model{NormalStdev: 0.1}.Validate())
	require.True(t, errors.Is(Model{LogNormalStdev: -1}.Validate(), ErrInvalidModel))
}
