package welford

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// twoPass computes mean and sum of squared deviations the textbook
// way, as the reference for the streaming implementation.
func twoPass(xs []float64) (mean, m2 float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		d := x - mean
		m2 += d * d
	}
	return mean, m2
}

func TestStats_ZeroValue(t *testing.T) {
	var s Stats
	require.Zero(t, s.Count)
	require.Zero(t, s.Variance())
	require.Zero(t, s.StdDev())
	require.Zero(t, s.Range())
}

func TestStats_SingleObservation(t *testing.T) {
	var s Stats
	s.Add(42)

	require.Equal(t, uint64(1), s.Count)
	require.Equal(t, 42.0, s.Mean)
	require.Zero(t, s.M2)
	require.Zero(t, s.Variance())
	require.Equal(t, 42.0, s.Min)
	require.Equal(t, 42.0, s.Max)
}

func TestStats_MatchesTwoPass(t *testing.T) {
	// Large offsets with small spread is exactly the regime where a
	// naive sum-of-squares accumulator cancels catastrophically.
	rng := rand.New(rand.NewPCG(7, 11))
	xs := make([]float64, 10_000)
	for i := range xs {
		xs[i] = 1e9 + rng.Float64()*1e6 // nanosecond-scale durations
	}

	var s Stats
	for _, x := range xs {
		s.Add(x)
	}

	mean, m2 := twoPass(xs)
	require.Equal(t, uint64(len(xs)), s.Count)
	require.InEpsilon(t, mean, s.Mean, 1e-9)
	require.InEpsilon(t, m2, s.M2, 1e-9)
	require.InEpsilon(t, m2/float64(len(xs)-1), s.Variance(), 1e-9)
}

func TestStats_MinMax(t *testing.T) {
	var s Stats
	for _, x := range []float64{5, 1, 9, 3} {
		s.Add(x)
	}
	require.Equal(t, 1.0, s.Min)
	require.Equal(t, 9.0, s.Max)
	require.Equal(t, 8.0, s.Range())
}

func TestStats_MergeMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	xs := make([]float64, 2_000)
	for i := range xs {
		xs[i] = rng.NormFloat64()*1e4 + 5e8
	}

	var sequential Stats
	for _, x := range xs {
		sequential.Add(x)
	}

	var left, right Stats
	for _, x := range xs[:700] {
		left.Add(x)
	}
	for _, x := range xs[700:] {
		right.Add(x)
	}
	left.Merge(right)

	require.Equal(t, sequential.Count, left.Count)
	require.InEpsilon(t, sequential.Mean, left.Mean, 1e-9)
	require.InEpsilon(t, sequential.M2, left.M2, 1e-9)
	require.Equal(t, sequential.Min, left.Min)
	require.Equal(t, sequential.Max, left.Max)
}

func TestStats_MergeEmpty(t *testing.T) {
	t.Run("empty into populated is a no-op", func(t *testing.T) {
		var s Stats
		s.Add(1)
		s.Add(2)
		before := s
		s.Merge(Stats{})
		require.Equal(t, before, s)
	})

	t.Run("populated into empty copies", func(t *testing.T) {
		var o Stats
		o.Add(3)
		var s Stats
		s.Merge(o)
		require.Equal(t, o, s)
	})
}
