package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/store"
)

const (
	backoffInitial    = 200 * time.Millisecond
	backoffMax        = 10 * time.Second
	backoffMultiplier = 2.0
	maxAttempts       = 5
	saveTimeout       = 5 * time.Second
	flushTimeout      = 5 * time.Second
)

var (
	// ErrDropped is reported for a job evicted from a full buffer.
	ErrDropped = errors.New("shipper: buffer full, summary dropped")

	// ErrStopped is reported for a job shipped after Run has returned.
	ErrStopped = errors.New("shipper: stopped, summary not accepted")
)

// Job is one summary to persist. Done, if set, is called exactly once with
// the final outcome: from the Run goroutine once the job was written or
// abandoned, or from the caller of Ship when the job is evicted or refused.
type Job struct {
	Record store.Record
	Done   func(error)
}

// Shipper persists session summaries off the request path.
// Ship is non-blocking; when the buffer is full the oldest job is evicted.
// Run must be called in a goroutine to drain the buffer.
type Shipper struct {
	st  store.Store
	buf chan Job

	mu      sync.Mutex // serialises enqueueing with stop
	stopped bool

	initial time.Duration // first retry delay, injectable for tests
}

// New creates a Shipper writing to st.
func New(st store.Store, cfg config.ShipperConfig) *Shipper {
	return &Shipper{
		st:      st,
		buf:     make(chan Job, max(1, cfg.BufferSize)),
		initial: backoffInitial,
	}
}

// Ship enqueues job. If the buffer is full the oldest job is evicted and
// its Done receives ErrDropped. Once Run has returned every job is refused
// with ErrStopped.
func (s *Shipper) Ship(job Job) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		finish(job, ErrStopped)
		return
	}
	var rejected []Job
	select {
	case s.buf <- job:
		s.mu.Unlock()
		return
	default:
	}
	select {
	case old := <-s.buf:
		slog.Warn("shipper: buffer full, evicted oldest summary",
			"user", old.Record.UserID, "buffer_cap", cap(s.buf))
		rejected = append(rejected, old)
	default:
	}
	select {
	case s.buf <- job:
	default:
		rejected = append(rejected, job)
	}
	s.mu.Unlock()

	for _, j := range rejected {
		finish(j, ErrDropped)
	}
}

// Pending returns the number of queued jobs.
func (s *Shipper) Pending() int { return len(s.buf) }

// Run drains the buffer until ctx is cancelled, then flushes what is left
// within a short grace period.
func (s *Shipper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.stopped = true
			s.mu.Unlock()
			s.flush()
			return
		case job := <-s.buf:
			finish(job, s.save(ctx, job.Record))
		}
	}
}

// flush writes the remaining jobs once each, without retries.
func (s *Shipper) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case job := <-s.buf:
			finish(job, s.attempt(ctx, job.Record))
		default:
			return
		}
	}
}

// save writes rec, retrying with exponential backoff.
func (s *Shipper) save(ctx context.Context, rec store.Record) error {
	bo := newBackoff(s.initial)
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = s.attempt(ctx, rec); err == nil {
			slog.Debug("shipper: summary saved", "user", rec.UserID, "team", rec.TeamID)
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		wait := bo.next()
		slog.Warn("shipper: save failed, will retry",
			"user", rec.UserID, "attempt", attempt, "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return s.attempt(context.Background(), rec)
		case <-time.After(wait):
		}
	}
	slog.Error("shipper: giving up on summary", "user", rec.UserID, "err", err)
	return fmt.Errorf("shipper: save after %d attempts: %w", maxAttempts, err)
}

func (s *Shipper) attempt(ctx context.Context, rec store.Record) error {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	return s.st.Save(ctx, rec)
}

func finish(job Job, err error) {
	if job.Done != nil {
		job.Done(err)
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff(initial time.Duration) *backoff {
	return &backoff{current: initial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}
