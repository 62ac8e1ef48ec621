package tictoc

import (
	"time"

	"go.uber.org/zap"
)

// WarnFunc receives human-readable anomaly reports (unmatched Toc,
// intervals still running at Aggregate time). It is fire-and-forget:
// the timer never inspects a result and swallows panics from the sink.
type WarnFunc func(msg string)

// Option configures a Timer at construction time.
type Option func(*Timer)

// WithVerbose controls whether anomalies are reported through the warn
// sink. Anomaly bookkeeping (MissingTocs) happens regardless.
func WithVerbose(verbose bool) Option {
	return func(t *Timer) { t.verbose = verbose }
}

// WithMinMax controls whether Aggregate snapshots carry per-tag
// minimum and maximum durations. When disabled both read as zero.
func WithMinMax(track bool) Option {
	return func(t *Timer) { t.minMax = track }
}

// WithWarnFunc installs a custom warn sink, replacing the default
// zap-backed one.
func WithWarnFunc(warn WarnFunc) Option {
	return func(t *Timer) { t.warn = warn }
}

// WithLogger routes warnings to the given zap logger at Warn level.
func WithLogger(log *zap.Logger) Option {
	return func(t *Timer) {
		t.warn = func(msg string) { log.Warn(msg) }
	}
}

// WithContextID installs the execution-context disambiguator. The
// returned integer is opaque to the timer; it only has to be stable
// within one worker and distinct across concurrently running workers.
// Without it every call keys under context id 0, which is correct for
// single-goroutine use.
func WithContextID(id func() uint64) Option {
	return func(t *Timer) { t.contextID = id }
}

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

func defaultWarn() WarnFunc {
	log, err := zap.NewProduction(zap.WithCaller(false))
	if err != nil {
		return func(string) {}
	}
	return func(msg string) { log.Warn(msg) }
}
