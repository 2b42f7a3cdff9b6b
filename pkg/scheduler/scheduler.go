// Package scheduler runs generation passes for one document. Mutations
// call Invalidate; at most one pass runs and at most one more is pending,
// however many mutations arrive while a pass is in flight. Passes are
// never interrupted; a pass superseded by a newer mutation still runs to
// completion but its result is dropped.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/chazu/meshforge/pkg/cache"
	"github.com/chazu/meshforge/pkg/meshgen"
	"github.com/chazu/meshforge/pkg/snapshot"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCache sets the cache shared by every pass. By default the scheduler
// owns a private one.
func WithCache(c *cache.Cache) Option {
	return func(s *Scheduler) { s.cache = c }
}

// WithGeneratorOptions passes options to every generator the scheduler
// creates. Cache and id options are overridden.
func WithGeneratorOptions(opts ...meshgen.Option) Option {
	return func(s *Scheduler) { s.genOpts = append(s.genOpts, opts...) }
}

// Scheduler serializes generation passes for one document.
type Scheduler struct {
	source  func() *snapshot.Snapshot
	deliver func(*meshgen.Result)
	genOpts []meshgen.Option
	cache   *cache.Cache
	log     *zap.Logger

	mu       sync.Mutex
	running  bool
	obsolete bool
	closed   bool
	latest   uint64
	idle     chan struct{}

	wg      sync.WaitGroup
	dropped atomic.Int64
}

// New returns a scheduler. source is called at the start of every pass
// and must return a snapshot the pass may keep; it must not call back
// into the scheduler. Owners mutate a clone and swap it in before calling
// Invalidate. deliver receives the results of current passes on the pass
// goroutine, after the dirty flags those passes consumed were cleared on
// the source snapshot.
func New(source func() *snapshot.Snapshot, deliver func(*meshgen.Result), opts ...Option) *Scheduler {
	s := &Scheduler{
		source:  source,
		deliver: deliver,
		log:     zap.NewNop(),
		idle:    make(chan struct{}),
	}
	close(s.idle)
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.New()
	}
	return s
}

// Invalidate marks the document as changed. It starts a pass when none is
// running; otherwise the change is picked up by a pass started right
// after the current one.
func (s *Scheduler) Invalidate() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.obsolete = true
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.idle = make(chan struct{})
	id := s.nextLocked()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(id)
}

// nextLocked consumes the obsolete flag and allocates a generation id.
// The flag is cleared before the snapshot is taken, so a mutation racing
// with the snapshot always schedules another pass.
func (s *Scheduler) nextLocked() uint64 {
	s.obsolete = false
	s.latest++
	return s.latest
}

func (s *Scheduler) loop(id uint64) {
	defer s.wg.Done()
	for {
		snap := s.source()
		res := s.generate(id, snap)
		if s.IsCurrent(id) {
			res.ClearDirty(snap)
			s.deliver(res)
		} else {
			s.dropped.Add(1)
			s.log.Debug("dropping superseded result", zap.Uint64("pass", id))
		}

		s.mu.Lock()
		if !s.obsolete || s.closed {
			s.running = false
			close(s.idle)
			s.mu.Unlock()
			return
		}
		id = s.nextLocked()
		s.mu.Unlock()
	}
}

func (s *Scheduler) generate(id uint64, snap *snapshot.Snapshot) *meshgen.Result {
	opts := make([]meshgen.Option, 0, len(s.genOpts)+3)
	opts = append(opts, meshgen.WithLogger(s.log))
	opts = append(opts, s.genOpts...)
	opts = append(opts, meshgen.WithCache(s.cache), meshgen.WithID(id))
	return meshgen.New(snap, opts...).Generate(context.Background())
}

// IsCurrent reports whether id is the latest pass and no mutation has
// arrived since it started.
func (s *Scheduler) IsCurrent(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id == s.latest && !s.obsolete && !s.closed
}

// Latest returns the id of the most recently started pass, or zero.
func (s *Scheduler) Latest() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Dropped returns the number of results dropped as superseded.
func (s *Scheduler) Dropped() int64 {
	return s.dropped.Load()
}

// Cache returns the cache shared by the passes. Its contents are only
// stable while the scheduler is idle.
func (s *Scheduler) Cache() *cache.Cache {
	return s.cache
}

// Wait blocks until no pass is running or pending.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops scheduling new passes and waits for the running one. Its
// result is dropped.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
