package catalog

import "time"

// RunStatus tracks a run through its lifecycle. There is no retry state:
// a failed adapter is simply absent from that run's contribution, and
// retry means invoking the pipeline again later.
type RunStatus string

// Run states, in order.
const (
	RunPending  RunStatus = "pending"
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
)

// String returns the string representation of a run status.
func (s RunStatus) String() string {
	return string(s)
}

// Run is one pipeline execution producing a timestamped listing snapshot.
// A run is immutable once complete except for its status.
type Run struct {
	ID             int64      `json:"id" yaml:"id"`
	StartedAt      time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	SourcesQueried []string   `json:"sources_queried" yaml:"sources_queried"`
	Status         RunStatus  `json:"status" yaml:"status"`
}

// SourceError records one adapter's failure inside an otherwise
// successful run. A run with source errors is still complete; partial
// success is the expected terminal state.
type SourceError struct {
	SourceID string `json:"source_id" yaml:"source_id"`
	Message  string `json:"message" yaml:"message"`
}
