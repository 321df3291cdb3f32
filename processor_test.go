package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/capitan"
)

func TestProcessor_HotDelivery(t *testing.T) {
	p := NewProcessor[int](nil)
	p.Submit(0)

	a := newRecorder[int]()
	b := newRecorder[int]()
	p.Subscribe(a)
	p.Submit(1)
	p.Subscribe(b)
	p.Submit(2)

	va, _, _ := a.snapshot()
	vb, _, _ := b.snapshot()
	if len(va) != 2 || va[0] != 1 || va[1] != 2 {
		t.Errorf("expected a to see [1 2], got %v", va)
	}
	if len(vb) != 1 || vb[0] != 2 {
		t.Errorf("expected b to see [2], got %v", vb)
	}
}

func TestProcessor_HasSubscribersCountsAttached(t *testing.T) {
	p := NewProcessor[int](nil)
	if p.HasSubscribers() {
		t.Error("expected no subscribers")
	}
	sub := p.Subscribe(newRecorder[int]())
	if !p.HasSubscribers() {
		t.Error("expected a subscriber")
	}
	sub.Dispose()
	if p.HasSubscribers() {
		t.Error("expected no subscribers after dispose")
	}
}

func TestProcessor_Cached(t *testing.T) {
	p := NewCachedProcessor[string](nil, "initial")
	if v, ok := p.Get(); !ok || v != "initial" {
		t.Errorf("expected initial, got %q %v", v, ok)
	}

	p.Submit("next")
	rec := newRecorder[string]()
	p.Subscribe(rec)

	values, _, _ := rec.snapshot()
	if len(values) != 1 || values[0] != "next" {
		t.Errorf("expected replay of latest value, got %v", values)
	}
}

func TestProcessor_UncachedGet(t *testing.T) {
	p := NewProcessor[int](nil)
	p.Submit(1)
	if _, ok := p.Get(); ok {
		t.Error("expected uncached processor to report no value")
	}
}

func TestProcessor_Close(t *testing.T) {
	p := NewProcessor[int](nil)
	rec := newRecorder[int]()
	sub := p.Subscribe(rec)

	p.Close()
	p.Close()
	p.Submit(1)
	sub.Dispose()

	values, errs, closes := rec.snapshot()
	if len(values) != 0 || len(errs) != 0 {
		t.Errorf("expected nothing delivered after close, got %v %v", values, errs)
	}
	if closes != 1 {
		t.Errorf("expected exactly one close, got %d", closes)
	}
	if !p.Closed() {
		t.Error("expected Closed to report true")
	}
}

func TestProcessor_Fail(t *testing.T) {
	boom := errors.New("boom")
	p := NewProcessor[int](nil)
	rec := newRecorder[int]()
	p.Subscribe(rec)

	p.Fail(boom)

	_, errs, closes := rec.snapshot()
	if len(errs) != 1 || !errors.Is(errs[0], boom) || closes != 1 {
		t.Errorf("expected error then close, got %v %d", errs, closes)
	}
}

func TestProcessor_SubscribeAfterTermination(t *testing.T) {
	boom := errors.New("boom")
	p := NewCachedProcessor[int](nil, 5)
	p.Fail(boom)

	rec := newRecorder[int]()
	p.Subscribe(rec)

	values, errs, closes := rec.snapshot()
	if len(values) != 0 {
		t.Errorf("expected no replay after failure, got %v", values)
	}
	if len(errs) != 1 || closes != 1 {
		t.Errorf("expected terminal signals replayed, got %v %d", errs, closes)
	}
}

func TestProcessor_PanickingSubscriberIsDetached(t *testing.T) {
	p := NewProcessor[int](nil)
	var errs []error
	var closes int
	p.Subscribe(Callbacks[int]{
		OnValue:    func(int) { panic("bad subscriber") },
		OnFailure:  func(err error) { errs = append(errs, err) },
		OnComplete: func() { closes++ },
	})
	healthy := newRecorder[int]()
	p.Subscribe(healthy)

	p.Submit(1)
	p.Submit(2)

	var pe *PanicError
	if len(errs) != 1 || !errors.As(errs[0], &pe) {
		t.Errorf("expected one PanicError, got %v", errs)
	}
	if closes != 1 {
		t.Errorf("expected panicking subscriber to be closed, got %d", closes)
	}
	values, _, _ := healthy.snapshot()
	if len(values) != 2 {
		t.Errorf("expected healthy subscriber unaffected, got %v", values)
	}
}

func TestProcessor_Executor(t *testing.T) {
	if NewProcessor[int](nil).Executor() != DirectExecutor {
		t.Error("expected DirectExecutor by default")
	}
	scope := newTestScope(t)
	if NewProcessor[int](scope).Executor() != Executor(scope) {
		t.Error("expected the given executor")
	}
}

func TestProcessor_SubscribeFromCallback(t *testing.T) {
	p := NewCachedProcessor[int](nil, 0)
	inner := newRecorder[int]()
	var subscribed bool
	p.Subscribe(SubscriberFunc(func(v int) {
		if v == 1 && !subscribed {
			subscribed = true
			p.Subscribe(inner)
		}
	}))

	done := make(chan struct{})
	go func() {
		p.Submit(1)
		p.Submit(2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Subscribe from inside a callback did not return")
	}

	values, _, _ := inner.snapshot()
	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Errorf("expected inner subscriber to see [1 2], got %v", values)
	}
}

func TestProcessor_SubmitFromCallbackIsQueued(t *testing.T) {
	p := NewProcessor[int](nil)
	var order []int
	p.Subscribe(SubscriberFunc(func(v int) {
		order = append(order, v)
		if v == 1 {
			p.Submit(2)
			order = append(order, -1)
		}
	}))

	p.Submit(1)

	if len(order) != 3 || order[0] != 1 || order[1] != -1 || order[2] != 2 {
		t.Errorf("expected nested submit after callback returns, got %v", order)
	}
}

func TestProcessor_DisposeFromCallback(t *testing.T) {
	p := NewProcessor[int](nil)
	rec := newRecorder[int]()
	var sub Disposable
	sub = p.Subscribe(Callbacks[int]{
		OnValue: func(v int) {
			rec.Submit(v)
			sub.Dispose()
		},
		OnComplete: rec.OnClose,
	})

	p.Submit(1)
	p.Submit(2)

	values, _, closes := rec.snapshot()
	if len(values) != 1 || closes != 1 {
		t.Errorf("expected one value then close, got %v %d", values, closes)
	}
	if p.HasSubscribers() {
		t.Error("expected subscriber to be detached")
	}
}

func TestProcessor_EmitsSubscriberCount(t *testing.T) {
	counts := make(chan int, 8)
	listener := capitan.Hook(ProcessorSubscribed, func(_ context.Context, e *capitan.Event) {
		if n, ok := KeySubscribers.From(e); ok {
			counts <- n
		}
	})
	defer listener.Close()

	p := NewProcessor[int](nil)
	p.Subscribe(newRecorder[int]())
	p.Subscribe(newRecorder[int]())

	deadline := time.After(time.Second)
	for {
		select {
		case n := <-counts:
			if n == 2 {
				return
			}
		case <-deadline:
			t.Fatal("expected a subscribed event with two subscribers")
		}
	}
}
