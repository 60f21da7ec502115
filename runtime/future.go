package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/chazu/sable/contract"
)

// ---------------------------------------------------------------------------
// Future: the deferred result of a fork
// ---------------------------------------------------------------------------

// Future is a single-shot result that completes exactly once.
type Future struct {
	ID uuid.UUID

	done   chan struct{}
	once   sync.Once
	value  Value
	thrown *Thrown
}

// NewFuture returns an incomplete future.
func NewFuture() *Future {
	return &Future{ID: uuid.New(), done: make(chan struct{})}
}

func (*Future) Contract() contract.Contract { return contract.Future }

func (f *Future) String() string { return "<future " + f.ID.String()[:8] + ">" }

// Resolve completes the future with v. Later completions are ignored.
func (f *Future) Resolve(v Value) {
	f.complete(orVoid(v), nil)
}

// Reject completes the future with a thrown error.
func (f *Future) Reject(t *Thrown) {
	f.complete(nil, t)
}

func (f *Future) complete(v Value, t *Thrown) {
	f.once.Do(func() {
		f.value = v
		f.thrown = t
		close(f.done)
	})
}

// Done returns a channel closed when the future completes.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the future completes or ctx ends. A rejected future
// returns its *Thrown; an ended context returns an AwaitCancelled or
// AwaitTimeout *Error.
func (f *Future) Await(ctx context.Context) (Value, error) {
	select {
	case <-f.done:
		if f.thrown != nil {
			return nil, f.thrown
		}
		return f.value, nil
	case <-ctx.Done():
		return nil, awaitError(ctx.Err())
	}
}

func awaitError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Errorf(CodeAwaitTimeout, "await timed out")
	}
	return Errorf(CodeAwaitCancelled, "await cancelled: %v", err)
}

// ---------------------------------------------------------------------------
// Synchronizer
// ---------------------------------------------------------------------------

// Synchronizer mediates an await, e.g. to serialize resumption of several
// waiters.
type Synchronizer interface {
	Value
	Await(ctx context.Context, f *Future) (Value, error)
}

// SerialSynchronizer admits one waiter at a time. Awaits routed through the
// same synchronizer complete in the order they acquired it.
type SerialSynchronizer struct {
	mu sync.Mutex
}

func (*SerialSynchronizer) Contract() contract.Contract { return contract.Object }

func (s *SerialSynchronizer) Await(ctx context.Context, f *Future) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return f.Await(ctx)
}

// ---------------------------------------------------------------------------
// Executor
// ---------------------------------------------------------------------------

// Task is a unit of forked work.
type Task func(ctx context.Context) Value

// Executor schedules forked tasks.
type Executor interface {
	Submit(ctx context.Context, task Task) *Future
}

// PoolExecutor runs tasks on goroutines, at most Workers at a time.
type PoolExecutor struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewPoolExecutor returns an executor running at most workers tasks in
// parallel. A non-positive count means 1.
func NewPoolExecutor(workers int64) *PoolExecutor {
	if workers <= 0 {
		workers = 1
	}
	return &PoolExecutor{sem: semaphore.NewWeighted(workers)}
}

// Submit starts task once a worker is free. The caller is never blocked;
// waiting for a worker happens on the task's own goroutine. A task gives
// its worker back while it blocks in an await, so nested forks always find
// one.
func (p *PoolExecutor) Submit(ctx context.Context, task Task) *Future {
	fut := NewFuture()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			fut.Reject(&Thrown{Value: awaitError(err)})
			return
		}
		defer p.sem.Release(1)
		runTask(context.WithValue(ctx, workerKey{}, &worker{sem: p.sem}), fut, task)
	}()
	return fut
}

// Wait blocks until every submitted task has finished.
func (p *PoolExecutor) Wait() {
	p.wg.Wait()
}

type workerKey struct{}

// worker is the pool slot held by the task whose context carries it.
type worker struct {
	sem *semaphore.Weighted
}

// blocking runs wait, which must block only on other tasks, with the
// caller's pool slot released for its duration.
func blocking(ctx context.Context, fut *Future, wait func() (Value, error)) (Value, error) {
	w, ok := ctx.Value(workerKey{}).(*worker)
	if !ok {
		return wait()
	}
	select {
	case <-fut.Done():
		return wait()
	default:
	}
	w.sem.Release(1)
	// The deferred release in Submit needs the slot back, even after a
	// cancelled wait.
	defer w.sem.Acquire(context.Background(), 1)
	return wait()
}

// InlineExecutor runs each task to completion inside Submit.
type InlineExecutor struct{}

func (InlineExecutor) Submit(ctx context.Context, task Task) *Future {
	fut := NewFuture()
	runTask(ctx, fut, task)
	return fut
}

func runTask(ctx context.Context, fut *Future, task Task) {
	defer func() {
		if r := recover(); r != nil {
			if t, ok := r.(*Thrown); ok {
				fut.Reject(t)
				return
			}
			log.Errorf("fork %s panicked: %v", fut.ID, r)
			fut.Reject(&Thrown{Value: Errorf(CodeStructural, "task panicked: %s", fmt.Sprint(r))})
		}
	}()
	fut.Resolve(task(ctx))
}
