package relay

import "time"

// Stage names the step at which a document was rejected.
type Stage string

// Processing stages.
const (
	StageDecode   Stage = "decode"
	StageValidate Stage = "validate"
	StagePipeline Stage = "pipeline"
)

// MetricsProvider receives callbacks on Reference events, for export to
// Prometheus, StatsD and the like.
type MetricsProvider interface {
	// OnStateChange is called on every state transition.
	OnStateChange(from, to State)

	// OnProcessSuccess is called after a document is applied, with the time
	// spent decoding, validating and running the pipeline.
	OnProcessSuccess(duration time.Duration)

	// OnProcessFailure is called when a document is rejected.
	OnProcessFailure(stage Stage, duration time.Duration)

	// OnChangeReceived is called for every document from the source, before
	// debouncing.
	OnChangeReceived()
}

// NoOpMetricsProvider implements MetricsProvider with empty methods. Embed it
// to implement only some of them.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)                  {}
func (NoOpMetricsProvider) OnProcessSuccess(_ time.Duration)          {}
func (NoOpMetricsProvider) OnProcessFailure(_ Stage, _ time.Duration) {}
func (NoOpMetricsProvider) OnChangeReceived()                         {}
