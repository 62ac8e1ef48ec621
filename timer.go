// Package tictoc is an embeddable named-interval timer. Intervals are
// opened with Tic and closed with Toc under a caller-chosen tag;
// completed measurements are folded into persistent per-tag streaming
// statistics on Aggregate. It is safe for concurrent use from multiple
// worker goroutines.
package tictoc

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BerriJ/tictoc/pkg/welford"
)

const (
	// DefaultTag is used when Tic or Toc is called with an empty tag.
	DefaultTag = "tictoc"
	// DefaultScopedTag is used when Scoped is called with an empty tag.
	DefaultScopedTag = "scoped"
)

// intervalKey identifies one in-flight interval. The context id keeps
// concurrent workers that reuse the same tag from consuming each
// other's start timestamps.
type intervalKey struct {
	tag string
	ctx uint64
}

type measurement struct {
	tag string
	ns  float64
}

// Timer owns three structures, all guarded by mu: the in-flight map of
// start timestamps, the append-only list of completed measurements,
// and the persistent per-tag statistics table. Timestamps are captured
// outside the critical section so lock wait does not inflate measured
// durations.
type Timer struct {
	mu        sync.Mutex
	inFlight  map[intervalKey]time.Time
	completed []measurement
	stats     map[string]welford.Stats
	missing   map[string]struct{}

	verbose   bool
	minMax    bool
	warn      WarnFunc
	contextID func() uint64
	now       func() time.Time
}

// New returns a Timer ready for use. With no options it is verbose,
// tracks min/max, reports warnings through a zap production logger,
// and keys all intervals under context id 0.
func New(opts ...Option) *Timer {
	t := &Timer{
		inFlight:  make(map[intervalKey]time.Time),
		stats:     make(map[string]welford.Stats),
		missing:   make(map[string]struct{}),
		verbose:   true,
		minMax:    true,
		contextID: func() uint64 { return 0 },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.warn == nil {
		t.warn = defaultWarn()
	}
	return t
}

// Tic starts (or restarts) the interval identified by tag and the
// prevailing context id. An empty tag means DefaultTag. If an
// unstopped interval already exists under the same key its start time
// is silently overwritten.
func (t *Timer) Tic(tag string) {
	if tag == "" {
		tag = DefaultTag
	}
	t.ticAt(tag, t.contextID(), t.now())
}

// Toc stops the interval identified by tag and the prevailing context
// id, appending the elapsed duration to the completed-measurement
// list. An empty tag means DefaultTag. A Toc with no live matching Tic
// is a no-op; it is reported through the warn sink when verbose and
// remembered for MissingTocs.
func (t *Timer) Toc(tag string) {
	if tag == "" {
		tag = DefaultTag
	}
	t.tocAt(tag, t.contextID(), t.now())
}

func (t *Timer) ticAt(tag string, ctx uint64, start time.Time) {
	key := intervalKey{tag: tag, ctx: ctx}
	t.mu.Lock()
	t.inFlight[key] = start
	t.mu.Unlock()
}

func (t *Timer) tocAt(tag string, ctx uint64, stop time.Time) {
	key := intervalKey{tag: tag, ctx: ctx}
	t.mu.Lock()
	start, ok := t.inFlight[key]
	if ok {
		delete(t.inFlight, key)
		t.completed = append(t.completed, measurement{tag: tag, ns: float64(stop.Sub(start).Nanoseconds())})
	} else {
		t.missing[tag] = struct{}{}
	}
	t.mu.Unlock()
	if !ok && t.verbose {
		t.warnf("timer %q was stopped but never started, run Tic(%q) first", tag, tag)
	}
}

// Aggregate folds every completed measurement into the persistent
// per-tag table using Welford's online update and returns a copy of
// the full table, covering all tags seen since the last Reset. The
// completed list is cleared; in-flight intervals are left untouched
// and, when verbose, reported as still running. Calling Aggregate with
// nothing pending returns the same table again.
func (t *Timer) Aggregate() map[string]welford.Stats {
	t.mu.Lock()
	var running []string
	if t.verbose {
		for key := range t.inFlight {
			running = append(running, key.tag)
		}
	}
	for _, m := range t.completed {
		s := t.stats[m.tag]
		s.Add(m.ns)
		t.stats[m.tag] = s
	}
	t.completed = t.completed[:0]
	out := make(map[string]welford.Stats, len(t.stats))
	for tag, s := range t.stats {
		if !t.minMax {
			s.Min, s.Max = 0, 0
		}
		out[tag] = s
	}
	t.mu.Unlock()

	// Warnings fire after the critical section so the warn sink can
	// never stall a concurrent Tic or Toc.
	sort.Strings(running)
	for _, tag := range running {
		t.warnf("timer %q is still running, run Toc(%q) to stop it", tag, tag)
	}
	return out
}

// MissingTocs returns, sorted, the tags for which a Toc arrived
// without a live matching Tic since the last Reset.
func (t *Timer) MissingTocs() []string {
	t.mu.Lock()
	tags := make([]string, 0, len(t.missing))
	for tag := range t.missing {
		tags = append(tags, tag)
	}
	t.mu.Unlock()
	sort.Strings(tags)
	return tags
}

// InFlight returns the number of started-but-not-stopped intervals.
func (t *Timer) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inFlight)
}

// Reset discards all in-flight intervals, pending measurements and
// accumulated statistics.
func (t *Timer) Reset() {
	t.mu.Lock()
	t.inFlight = make(map[intervalKey]time.Time)
	t.completed = t.completed[:0]
	t.stats = make(map[string]welford.Stats)
	t.missing = make(map[string]struct{})
	t.mu.Unlock()
}

// Worker returns a view of the timer bound to a fixed context id.
// Workers in a fork-join region each take their own view so identical
// tags never collide across workers.
func (t *Timer) Worker(id uint64) Worker {
	return Worker{timer: t, id: id}
}

// Worker is a Timer view whose operations all use one context id.
type Worker struct {
	timer *Timer
	id    uint64
}

// Tic starts the interval identified by tag under this worker's id.
func (w Worker) Tic(tag string) {
	if tag == "" {
		tag = DefaultTag
	}
	w.timer.ticAt(tag, w.id, w.timer.now())
}

// Toc stops the interval identified by tag under this worker's id.
func (w Worker) Toc(tag string) {
	if tag == "" {
		tag = DefaultTag
	}
	w.timer.tocAt(tag, w.id, w.timer.now())
}

// Scoped starts an interval under this worker's id and returns its
// release function.
func (w Worker) Scoped(tag string) func() {
	if tag == "" {
		tag = DefaultScopedTag
	}
	w.Tic(tag)
	return releaseOnce(func() { w.Toc(tag) })
}

func (t *Timer) warnf(format string, args ...any) {
	if t.warn == nil {
		return
	}
	// The warn sink is host-supplied and fire-and-forget; a panicking
	// sink must not take the timed code path down with it.
	defer func() { _ = recover() }()
	t.warn(fmt.Sprintf(format, args...))
}
