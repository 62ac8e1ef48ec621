package tictoc

import "sync"

// Scoped starts an interval now and returns the function that stops
// it. Deferring the returned function times the enclosing block and
// guarantees exactly one Toc, including when the block unwinds through
// a panic. An empty tag means DefaultScopedTag.
//
//	defer timer.Scoped("load")()
func (t *Timer) Scoped(tag string) func() {
	if tag == "" {
		tag = DefaultScopedTag
	}
	t.Tic(tag)
	return releaseOnce(func() { t.Toc(tag) })
}

func releaseOnce(release func()) func() {
	var once sync.Once
	return func() { once.Do(release) }
}
