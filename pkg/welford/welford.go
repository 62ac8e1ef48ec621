// Package welford implements numerically stable streaming summary
// statistics (Welford's online algorithm). A zero-value Stats is ready
// to use; it retains no measurement history.
package welford

import "math"

// Stats accumulates count, mean and the running sum of squared
// deviations from the mean for a stream of observations.
type Stats struct {
	Count uint64  `json:"count" yaml:"count"`
	Mean  float64 `json:"mean" yaml:"mean"`
	// M2 is the sum of squared deviations from the running mean.
	// It is not a variance; divide by max(Count-1, 1) to get one.
	M2  float64 `json:"sum_sq_dev" yaml:"sum_sq_dev"`
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Add folds a single observation into the running statistics.
// The M2 update must use the post-update mean; reordering these
// lines breaks the numerical stability guarantee.
func (s *Stats) Add(x float64) {
	if s.Count == 0 {
		s.Min, s.Max = x, x
	} else {
		s.Min = math.Min(s.Min, x)
		s.Max = math.Max(s.Max, x)
	}
	s.Count++
	delta := x - s.Mean
	s.Mean += delta / float64(s.Count)
	s.M2 += delta * (x - s.Mean)
}

// Merge combines another accumulator into s, as if every observation
// folded into o had been folded into s instead (Chan et al. pairwise
// update). Merging a zero-value Stats is a no-op.
func (s *Stats) Merge(o Stats) {
	if o.Count == 0 {
		return
	}
	if s.Count == 0 {
		*s = o
		return
	}
	n := s.Count + o.Count
	delta := o.Mean - s.Mean
	s.M2 += o.M2 + delta*delta*float64(s.Count)*float64(o.Count)/float64(n)
	s.Mean += delta * float64(o.Count) / float64(n)
	s.Min = math.Min(s.Min, o.Min)
	s.Max = math.Max(s.Max, o.Max)
	s.Count = n
}

// Variance returns the sample variance, M2/(Count-1). With fewer than
// two observations it degrades to M2/1, which is zero for a single
// observation.
func (s Stats) Variance() float64 {
	if s.Count < 2 {
		return s.M2
	}
	return s.M2 / float64(s.Count-1)
}

// StdDev returns the sample standard deviation.
func (s Stats) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// Range returns Max - Min, or zero before any observation.
func (s Stats) Range() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Max - s.Min
}
