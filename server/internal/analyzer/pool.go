package analyzer

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs model calls off the frame path.
type Executor interface {
	// Submit schedules fn and reports whether it was accepted.
	Submit(fn func()) bool
}

// Pool is a bounded Executor shared by all sessions. When every worker is
// busy Submit rejects the job instead of queueing it, so a slow model never
// backs up frame processing.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewPool returns a Pool running at most workers jobs at once.
func NewPool(workers int) *Pool {
	return &Pool{sem: semaphore.NewWeighted(int64(max(1, workers)))}
}

// Submit implements Executor.
func (p *Pool) Submit(fn func()) bool {
	if !p.sem.TryAcquire(1) {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn()
	}()
	return true
}

// Wait blocks until every accepted job has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Inline runs every job synchronously on the caller's goroutine.
type Inline struct{}

// Submit implements Executor.
func (Inline) Submit(fn func()) bool {
	fn()
	return true
}
