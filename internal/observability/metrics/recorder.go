// Package metrics provides custom Prometheus metrics for adcrec.
package metrics

// Recorder defines a minimal interface for recording session level
// operations. Components depend on it rather than on PipelineMetrics.
type Recorder interface {
	// RecordOperation records an operation with its status, e.g. ("record_start", "success").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its category.
	RecordError(operation, errorType string)
}
