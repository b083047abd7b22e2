// Package stage implements a named pool of workers consuming one FIFO queue of
// requests and dispatching each one to the handler registered for its operation.
//
// Handlers own the requests they are given: a handler either finishes the request
// itself or arranges for it to be finished later, typically when its last child
// reports back. A stage with a single worker serializes every handler it runs, which
// is how the pipeline keeps aggregate results race free without extra locking.
package stage

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/clog"
	"github.com/xtreemfs/xtreemfs-sub008/pkg/request"
	"golang.org/x/sys/unix"
)

var (
	ErrStopped        = errors.Wrap(unix.ESHUTDOWN, "stage stopped")
	ErrUnregisteredOp = errors.New("no handler registered for operation")
	ErrBadOpCode      = errors.New("operation code out of range")
)

// HandlerFunc processes one request. It takes over the reference the queue held.
type HandlerFunc func(r *request.Request)

type Stage struct {
	name     string
	nThreads int
	logger   *log.Entry
	stats    *Stats

	// handlers is indexed by Kind.Index(); nHandlers tracks the highest registered
	// index plus one.
	handlersMu sync.RWMutex
	handlers   [request.MaxOps]HandlerFunc
	nHandlers  int

	// Protects input, queued, inflight and stopping.
	mu       sync.Mutex
	cond     *sync.Cond
	input    *list.List
	queued   map[*request.Request]*list.Element
	inflight map[*request.Request]struct{}
	stopping bool

	// syncWatchdog is how often ExecuteSync dumps all stages while it is still waiting.
	syncWatchdog time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
}

type Option func(s *Stage)

// WithSyncWatchdog sets the interval at which a blocked ExecuteSync logs a dump of every
// live stage. Zero disables the dump.
func WithSyncWatchdog(d time.Duration) Option {
	return func(s *Stage) {
		s.syncWatchdog = d
	}
}

// New creates a stage and starts its nThreads workers.
func New(name string, nThreads int, opts ...Option) *Stage {
	if nThreads < 1 {
		nThreads = 1
	}

	s := &Stage{
		name:         name,
		nThreads:     nThreads,
		logger:       clog.UsingCtx(name),
		stats:        NewStats(name),
		input:        list.New(),
		queued:       make(map[*request.Request]*list.Element),
		inflight:     make(map[*request.Request]struct{}),
		syncWatchdog: 5 * time.Second,
	}
	s.cond = sync.NewCond(&s.mu)

	for _, opt := range opts {
		opt(s)
	}

	for i := 0; i < nThreads; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	register(s)
	s.logger.Debugf("started with %d workers", nThreads)

	return s
}

func (s *Stage) Name() string {
	return s.name
}

func (s *Stage) Threads() int {
	return s.nThreads
}

func (s *Stage) Stats() *Stats {
	return s.stats
}

// RegisterHandler installs fn for the operation index of op.
func (s *Stage) RegisterHandler(op request.Kind, fn HandlerFunc) error {
	idx := op.Index()
	if op < 0 || int(op&^request.Blocking) >= request.MaxOps {
		return errors.Wrapf(ErrBadOpCode, "stage %s: op %d", s.name, op)
	}

	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	s.handlers[idx] = fn
	if idx >= s.nHandlers {
		s.nHandlers = idx + 1
	}

	return nil
}

// Validate checks that every op has a handler. Wiring code calls it once after
// registering so a missing handler is found before any request is submitted.
func (s *Stage) Validate(ops ...request.Kind) error {
	for _, op := range ops {
		if s.handler(op) == nil {
			return errors.Wrapf(ErrUnregisteredOp, "stage %s: op %d", s.name, op.Index())
		}
	}
	return nil
}

func (s *Stage) handler(op request.Kind) HandlerFunc {
	idx := op.Index()

	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()

	if idx >= s.nHandlers {
		return nil
	}
	return s.handlers[idx]
}

// Submit queues r and wakes one worker. The queue holds the reference passed in by the
// caller until a worker hands it to a handler.
func (s *Stage) Submit(r *request.Request) error {
	if s.handler(r.Kind()) == nil {
		return errors.Wrapf(ErrUnregisteredOp, "stage %s: op %d", s.name, r.Kind().Index())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return errors.Wrapf(ErrStopped, "stage %s", s.name)
	}

	r.AttachQueue(s)
	r.SetState(request.StateQueued)
	s.queued[r] = s.input.PushBack(r)
	s.stats.queued()

	// Signalled under the lock; a worker about to sleep re-checks the queue first so
	// the wakeup cannot be lost.
	s.cond.Signal()

	return nil
}

// ExecuteSync submits r and, for blocking kinds, waits until it is finished. The caller
// keeps whatever references it already held; ExecuteSync takes and drops its own.
func (s *Stage) ExecuteSync(ctx context.Context, r *request.Request) error {
	r.Ref()
	defer r.Put()

	// The submitted reference is the one the handler finishes with.
	r.Ref()
	if err := s.Submit(r); err != nil {
		r.Put()
		return err
	}

	if !r.Kind().IsBlocking() {
		return nil
	}

	if s.syncWatchdog > 0 {
		stopWatchdog := s.watchdog(r)
		defer stopWatchdog()
	}

	if err := r.Wait(ctx); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			r.Expire()
		case ctx.Err() != nil:
			r.Abort()
		}
		return err
	}

	return nil
}

// watchdog periodically logs the state of every stage while r is outstanding. It is a
// deadlock diagnostic and never fails the request.
func (s *Stage) watchdog(r *request.Request) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.syncWatchdog)
		defer ticker.Stop()
		waited := 0
		for {
			select {
			case <-done:
				return
			case <-r.Done():
				return
			case <-ticker.C:
				waited++
				s.logger.WithField("req", r.ID()).Warnf("still waiting after %s", time.Duration(waited)*s.syncWatchdog)
				LogAll()
			}
		}
	}()

	return func() { close(done) }
}

// Remove detaches r from the stage. It is called when the last reference to r is
// dropped, wherever the request currently is.
func (s *Stage) Remove(r *request.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.queued[r]; ok {
		s.input.Remove(e)
		delete(s.queued, r)
		s.stats.dequeued()
	}
	delete(s.inflight, r)
}

// Stop lets the workers drain the queue and waits for them to exit. Calling it again
// is a no-op.
func (s *Stage) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.cond.Broadcast()
		s.mu.Unlock()

		s.wg.Wait()
		unregister(s)
		s.logger.Debugf("stopped")
	})
}

func (s *Stage) next() *request.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.input.Len() == 0 {
		if s.stopping {
			return nil
		}
		s.cond.Wait()
	}

	e := s.input.Front()
	r := s.input.Remove(e).(*request.Request)
	delete(s.queued, r)
	s.inflight[r] = struct{}{}
	s.stats.dequeued()
	r.SetState(request.StateProcessing)

	return r
}

func (s *Stage) worker(n int) {
	defer s.wg.Done()

	for {
		r := s.next()
		if r == nil {
			return
		}

		fn := s.handler(r.Kind())
		if fn == nil {
			// Submit refuses unknown ops, so this is a wiring defect.
			s.logger.WithField("worker", n).Fatalf("illegal request kind %s", r.Kind())
		}

		start := time.Now()
		fn(r)
		s.stats.processed(start)
	}
}

func (s *Stage) String() string {
	return fmt.Sprintf("stage %s (%d workers)", s.name, s.nThreads)
}
