package relay

// Executor runs submitted tasks. Implementations decide where and when; no
// ordering is implied between separately submitted tasks.
type Executor interface {
	Execute(task func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func())

// Execute calls f(task).
func (f ExecutorFunc) Execute(task func()) {
	f(task)
}

// DirectExecutor runs each task on the calling goroutine.
var DirectExecutor Executor = ExecutorFunc(func(task func()) { task() })
