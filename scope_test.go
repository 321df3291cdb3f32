package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestScope_ActiveUntilCancelled(t *testing.T) {
	scope := NewScope(context.Background())
	if !scope.Active() {
		t.Fatal("expected new scope to be active")
	}
	scope.Cancel()
	if scope.Active() {
		t.Error("expected cancelled scope to be inactive")
	}
}

func TestScope_ParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	scope := NewScope(parent)

	cancel()
	if scope.Active() {
		t.Error("expected scope to follow its parent")
	}
}

func TestScope_LaunchRunsJob(t *testing.T) {
	scope := newTestScope(t)

	var ran atomic.Bool
	job := scope.Launch(func(_ context.Context) {
		ran.Store(true)
	})
	job.Wait()

	if !ran.Load() {
		t.Error("expected job to run")
	}
}

func TestScope_CancelStopsJobs(t *testing.T) {
	scope := NewScope(context.Background())

	job := scope.Launch(func(ctx context.Context) {
		<-ctx.Done()
	})
	scope.Close()

	select {
	case <-job.Done():
	default:
		t.Error("expected Close to wait for the job")
	}
}

func TestScope_JobCancelIsLocal(t *testing.T) {
	scope := newTestScope(t)

	first := scope.Launch(func(ctx context.Context) { <-ctx.Done() })
	second := scope.Launch(func(ctx context.Context) { <-ctx.Done() })

	first.Dispose()
	first.Wait()

	select {
	case <-second.Done():
		t.Fatal("cancelling one job should not stop another")
	case <-time.After(10 * time.Millisecond):
	}
	if !scope.Active() {
		t.Error("cancelling a job should not cancel the scope")
	}
}

func TestScope_LaunchAfterCancel(t *testing.T) {
	scope := NewScope(context.Background())
	scope.Close()

	var ran atomic.Bool
	job := scope.Launch(func(_ context.Context) { ran.Store(true) })

	select {
	case <-job.Done():
	default:
		t.Fatal("expected job on closed scope to be done")
	}
	if ran.Load() {
		t.Error("expected job on closed scope not to run")
	}
}

func TestScope_ExecuteRecoversPanics(t *testing.T) {
	scope := NewScope(context.Background())

	done := make(chan struct{})
	scope.Execute(func() { panic("boom") })
	scope.Execute(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected scope to keep running tasks after a panic")
	}
	scope.Close()
}

func TestScope_Go(t *testing.T) {
	scope := newTestScope(t)
	boom := errors.New("boom")

	if err := <-scope.Go(func(_ context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if err := <-scope.Go(func(_ context.Context) error { return nil }); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	var panicErr *PanicError
	if err := <-scope.Go(func(_ context.Context) error { panic("bad") }); !errors.As(err, &panicErr) {
		t.Errorf("expected PanicError, got %v", err)
	}
}

func TestScope_GoOnClosedScope(t *testing.T) {
	scope := NewScope(context.Background())
	scope.Close()

	out := scope.Go(func(_ context.Context) error { return nil })
	if err := <-out; !errors.Is(err, ErrScopeClosed) {
		t.Errorf("expected ErrScopeClosed, got %v", err)
	}
	if _, ok := <-out; ok {
		t.Error("expected channel to be closed")
	}
}

func TestJob_Join(t *testing.T) {
	scope := newTestScope(t)
	release := make(chan struct{})
	job := scope.Launch(func(_ context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := job.Join(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	close(release)
	if err := job.Join(context.Background()); err != nil {
		t.Errorf("expected nil after job finished, got %v", err)
	}
}

func TestScope_IsExecutor(t *testing.T) {
	scope := newTestScope(t)
	var exec Executor = scope

	done := make(chan struct{})
	exec.Execute(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}
