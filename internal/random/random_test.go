package random

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSameSeedSameDraws(t *testing.T) {
	a, b := New(42), New(42)
	g := Gaussian{Min: 1, Max: 10, Mean: 2, Stdev: 2}
	for i := 0; i < 100; i++ {
		require.Equal(t, g.Draw(a), g.Draw(b), "draw %d", i)
	}
}

func TestDrawsStayInRange(t *testing.T) {
	r := New(7)
	cases := []struct {
		name     string
		param    Parameter
		min, max float64
	}{
		{name: "constant", param: Constant(0.3), min: 0.3, max: 0.3},
		{name: "uniform", param: Uniform{Min: 0.01, Max: 1}, min: 0.01, max: 1},
		{name: "gaussian", param: Gaussian{Min: 1, Max: 10, Mean: 2, Stdev: 2}, min: 1, max: 10},
		{name: "log-gaussian", param: Gaussian{Min: 0.01, Max: 100, Mean: 1, Stdev: 1, Log: true}, min: 0.01, max: 100},
		{name: "narrow-gaussian", param: Gaussian{Min: 5, Max: 5.001, Mean: 0, Stdev: 0.1}, min: 5, max: 5.001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 1000; i++ {
				v := tc.param.Draw(r)
				require.GreaterOrEqual(t, v, tc.min-1e-12)
				require.LessOrEqual(t, v, tc.max+1e-12)
			}
		})
	}
}

func TestConstructorsRejectBadRanges(t *testing.T) {
	_, err := NewUniform(2, 1)
	require.True(t, errors.Is(err, ErrInvalidRange))

	_, err = NewGaussian(0, 1, 0.5, -1, false)
	require.True(t, errors.Is(err, ErrInvalidRange))

	_, err = NewGaussian(0, 1, 0.5, 1, true)
	require.True(t, errors.Is(err, ErrInvalidRange))

	for _, mean := range []float64{0, -3} {
		_, err = NewGaussian(0.1, 10, mean, 1, true)
		require.True(t, errors.Is(err, ErrInvalidRange), "mean %g", mean)
	}

	lg, err := NewGaussian(0.1, 10, 1, 0.5, true)
	require.NoError(t, err)
	require.Equal(t, 1.0, lg.Mean)

	g, err := NewGaussian(1, 10, 2, 2, false)
	require.NoError(t, err)
	require.Equal(t, 2.0, g.Mean)
}
