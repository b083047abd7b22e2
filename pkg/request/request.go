// Package request implements the unit of asynchronous work that flows through the
// stages of the I/O pipeline. A Request carries an opaque payload and result, a link
// to the request that spawned it, a count of children that have not reported back yet,
// and a reference count that decides when its payload and result are released.
package request

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Kind identifies the stage operation a request is dispatched to (the low bits) and
// whether a caller may synchronously block on it (the Blocking flag).
type Kind int

const (
	// IndexMask selects the operation index out of a Kind.
	IndexMask Kind = 0xff

	// MaxOps is the size of the operation index space.
	MaxOps = int(IndexMask) + 1

	// Blocking marks a request that a caller waits on through ExecuteSync.
	Blocking Kind = 0x100
)

func (k Kind) Index() int {
	return int(k & IndexMask)
}

func (k Kind) IsBlocking() bool {
	return k&Blocking != 0
}

func (k Kind) String() string {
	if k.IsBlocking() {
		return fmt.Sprintf("%d(blocking)", k.Index())
	}
	return fmt.Sprintf("%d", k.Index())
}

// Queue is the owning work queue of a request. A request that is still held by a queue
// when its last reference is dropped is removed from it.
type Queue interface {
	Remove(r *Request)
}

// ReleaseFunc releases a payload or result. It is called exactly once, when the last
// reference to the request is dropped.
type ReleaseFunc func(v any)

type Option func(r *Request)

func WithPayloadRelease(fn ReleaseFunc) Option {
	return func(r *Request) {
		r.releasePayload = fn
	}
}

func WithResultRelease(fn ReleaseFunc) Option {
	return func(r *Request) {
		r.releaseResult = fn
	}
}

var lastID atomic.Uint64

type Request struct {
	id      uint64
	kind    Kind
	created time.Time

	payload        any
	result         any
	releasePayload ReleaseFunc
	releaseResult  ReleaseFunc

	// parent is not owned, the parent outlives its children because it is only
	// finished once its last child has reported.
	parent *Request

	activeChildren atomic.Int32
	refs           atomic.Int32
	waiters        atomic.Int32
	aborted        atomic.Bool

	// Protects state, err and queue.
	mu    sync.Mutex
	state State
	err   error
	queue Queue

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a request holding a single reference for its creator. A nil parent
// marks a top level request.
func New(kind Kind, parent *Request, payload, result any, opts ...Option) *Request {
	r := &Request{
		id:      lastID.Add(1),
		kind:    kind,
		created: time.Now(),
		payload: payload,
		result:  result,
		parent:  parent,
		state:   StateNew,
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.refs.Store(1)

	return r
}

func (r *Request) ID() uint64 {
	return r.id
}

func (r *Request) Kind() Kind {
	return r.kind
}

func (r *Request) Payload() any {
	return r.payload
}

func (r *Request) Result() any {
	return r.result
}

func (r *Request) Parent() *Request {
	return r.parent
}

func (r *Request) Created() time.Time {
	return r.created
}

func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetState is used by the owning stage to track where the request is. Terminal states
// are sticky and can only be reached through Finish, Abort or Put. A timed out request
// keeps StateTimeout until it is finished.
func (r *Request) SetState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.IsTerminal() || r.state == StateTimeout {
		return
	}
	r.state = s
}

func (r *Request) AttachQueue(q Queue) {
	r.mu.Lock()
	r.queue = q
	r.mu.Unlock()
}

func (r *Request) Queue() Queue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue
}

// Err returns the error recorded on the request, or nil.
func (r *Request) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// SetError records err unless an error was already recorded. The first failure is the
// one the caller sees.
func (r *Request) SetError(err error) {
	if err == nil {
		return
	}

	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}

// SetChildError records err as reported by a child and marks the request as having a
// failed child. The request still waits for its remaining children.
func (r *Request) SetChildError(err error) {
	if err == nil {
		return
	}

	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	if !r.state.IsTerminal() && r.state != StateTimeout {
		r.state = StateChildError
	}
	r.mu.Unlock()
}

// Ref takes an additional reference.
func (r *Request) Ref() {
	r.refs.Add(1)
}

func (r *Request) Refs() int32 {
	return r.refs.Load()
}

// Put drops a reference. Dropping the last one detaches the request from its queue and
// releases payload and result.
func (r *Request) Put() {
	n := r.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic(fmt.Sprintf("request %d: reference count dropped below zero", r.id))
	}

	r.mu.Lock()
	q := r.queue
	r.queue = nil
	r.state = StateDeleted
	r.mu.Unlock()

	if q != nil {
		q.Remove(r)
	}

	r.wake()

	if r.releasePayload != nil {
		r.releasePayload(r.payload)
	}

	if r.releaseResult != nil {
		r.releaseResult(r.result)
	}
}

// Finish moves the request to its terminal state, wakes any waiters and drops the
// reference held by whoever was processing it. A request with a recorded error, or
// one that was aborted, finishes in StateError.
func (r *Request) Finish() {
	r.mu.Lock()
	switch {
	case r.state == StateDeleted:
	case r.err != nil:
		r.state = StateError
	default:
		r.state = StateFinished
	}
	r.mu.Unlock()

	r.wake()
	r.Put()
}

// Abort fails the request with ECANCELED and wakes its waiters. Children observe the
// abort through Aborted and skip new work, but still report back so the accounting of
// their parent stays consistent.
func (r *Request) Abort() {
	r.aborted.Store(true)

	r.mu.Lock()
	if r.err == nil {
		r.err = errors.Wrapf(unix.ECANCELED, "request %d aborted", r.id)
	}
	if r.state != StateDeleted {
		r.state = StateError
	}
	r.mu.Unlock()

	r.wake()
}

// Expire is Abort for a caller whose deadline passed: the error is ETIMEDOUT and the
// request stays in StateTimeout until whoever is processing it finishes it.
func (r *Request) Expire() {
	r.aborted.Store(true)

	r.mu.Lock()
	if r.err == nil {
		r.err = errors.Wrapf(unix.ETIMEDOUT, "request %d timed out", r.id)
	}
	if !r.state.IsTerminal() {
		r.state = StateTimeout
	}
	r.mu.Unlock()

	r.wake()
}

// Aborted reports whether this request or any of its ancestors was aborted.
func (r *Request) Aborted() bool {
	for p := r; p != nil; p = p.parent {
		if p.aborted.Load() {
			return true
		}
	}
	return false
}

// Done is closed once the request reaches a terminal state.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

func (r *Request) wake() {
	r.doneOnce.Do(func() {
		close(r.done)
	})
}

// Wait blocks until the request is terminal or ctx is done. The caller must hold a
// reference; Wait holds one of its own while it sleeps.
func (r *Request) Wait(ctx context.Context) error {
	r.Ref()
	defer r.Put()

	r.waiters.Add(1)
	defer r.waiters.Add(-1)

	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.err != nil:
		return r.err
	case r.state == StateError:
		return errors.Wrapf(unix.EIO, "request %d failed", r.id)
	default:
		return nil
	}
}

func (r *Request) Waiters() int32 {
	return r.waiters.Load()
}

// AddChild counts a child that has been, or is about to be, submitted. It must be
// called before the child is submitted so the child can never report against a
// counter that does not include it yet.
func (r *Request) AddChild() {
	r.activeChildren.Add(1)
	r.SetState(StateWaitingOnChildren)
}

// ChildDone counts a reported child and returns true for the last one.
func (r *Request) ChildDone() bool {
	n := r.activeChildren.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("request %d: more children reported than were added", r.id))
	}
	return n == 0
}

func (r *Request) ActiveChildren() int32 {
	return r.activeChildren.Load()
}
