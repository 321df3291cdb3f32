package relay

import "sync"

// Disposable cancels the thing it was returned for. Dispose is idempotent.
type Disposable interface {
	Dispose()
}

// DisposableFunc adapts a function to Disposable. The function runs at most once.
func DisposableFunc(fn func()) Disposable {
	return &onceDisposable{fn: fn}
}

type onceDisposable struct {
	once sync.Once
	fn   func()
}

func (d *onceDisposable) Dispose() {
	d.once.Do(func() {
		if d.fn != nil {
			d.fn()
		}
	})
}

// Disposables disposes a group of handles together, in the order they were added.
type Disposables struct {
	mu       sync.Mutex
	items    []Disposable
	disposed bool
}

// Add registers d. If the group was already disposed, d is disposed immediately.
func (g *Disposables) Add(d Disposable) {
	if d == nil {
		return
	}
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		d.Dispose()
		return
	}
	g.items = append(g.items, d)
	g.mu.Unlock()
}

// Dispose disposes every registered handle.
func (g *Disposables) Dispose() {
	g.mu.Lock()
	items := g.items
	g.items = nil
	g.disposed = true
	g.mu.Unlock()

	for _, d := range items {
		d.Dispose()
	}
}
