package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/zoobzio/capitan"
)

// Scope owns the lifetime of work launched into it. Cancelling the scope
// cancels every job it launched; Close additionally waits for them to return.
//
// A Scope is passed explicitly to the things that run work on it. Nothing in
// this package creates or closes a scope on the caller's behalf.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewScope creates a scope whose lifetime is bounded by parent.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context returns the scope's context. It is done once the scope is cancelled.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Active reports whether the scope still accepts and runs work.
func (s *Scope) Active() bool {
	return s.ctx.Err() == nil
}

// Cancel stops the scope. Running jobs observe cancellation through their
// context; new work is rejected.
func (s *Scope) Cancel() {
	s.cancel()
}

// Wait blocks until every launched job has returned. Call it after Cancel;
// jobs launched concurrently with Wait on an active scope may be missed.
func (s *Scope) Wait() {
	// Orders Wait after any Launch that already passed its liveness check.
	s.mu.Lock()
	s.mu.Unlock() //nolint:staticcheck // barrier
	s.wg.Wait()
}

// Close cancels the scope and waits for its jobs.
func (s *Scope) Close() {
	s.Cancel()
	s.Wait()
}

// Launch runs fn on its own goroutine with a child context of the scope.
// If the scope is no longer active fn is not run and the returned job is
// already done.
func (s *Scope) Launch(fn func(ctx context.Context)) *Job {
	job, _ := s.launch(fn)
	return job
}

func (s *Scope) launch(fn func(ctx context.Context)) (*Job, bool) {
	ctx, cancel := context.WithCancel(s.ctx)
	job := &Job{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		cancel()
		close(job.done)
		return job, false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(job.done)
		defer cancel()
		fn(ctx)
	}()
	return job, true
}

// Execute implements Executor. The task runs as a job of the scope; a panic
// inside it is recovered and reported through the ScopeTaskFailed signal.
// Tasks submitted after the scope is cancelled are dropped.
func (s *Scope) Execute(task func()) {
	s.Launch(func(ctx context.Context) {
		defer func() {
			if err := recovered(recover()); err != nil {
				capitan.Emit(ctx, ScopeTaskFailed, KeyError.Field(err.Error()))
			}
		}()
		task()
	})
}

// Go runs fn as a job. The returned channel receives exactly one value, nil
// on success, and is then closed. ErrScopeClosed is delivered when the scope
// was already inactive.
func (s *Scope) Go(fn func(ctx context.Context) error) <-chan error {
	out := make(chan error, 1)
	_, ok := s.launch(func(ctx context.Context) {
		defer close(out)
		defer func() {
			if err := recovered(recover()); err != nil {
				out <- err
			}
		}()
		out <- fn(ctx)
	})
	if !ok {
		out <- ErrScopeClosed
		close(out)
	}
	return out
}

// Job is a unit of work launched into a Scope.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel requests that the job stop. It does not wait.
func (j *Job) Cancel() {
	j.cancel()
}

// Dispose implements Disposable by cancelling the job.
func (j *Job) Dispose() {
	j.cancel()
}

// Done is closed once the job has returned.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job has returned.
func (j *Job) Wait() {
	<-j.done
}

// Join waits for the job or for ctx, whichever comes first.
func (j *Job) Join(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for job: %w", ctx.Err())
	}
}
