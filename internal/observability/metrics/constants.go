// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation labels for session level operations.
const (
	// OpRecordStart represents starting a binary recording session.
	OpRecordStart = "record_start"
	// OpRecordStop represents stopping a binary recording session.
	OpRecordStop = "record_stop"
	// OpWAVStart represents opening a mixdown WAV file.
	OpWAVStart = "wav_start"
	// OpWAVStop represents finalizing a mixdown WAV file.
	OpWAVStop = "wav_stop"
	// OpReplay represents replaying a recording file.
	OpReplay = "replay"
	// OpSourceRead represents the byte source read loop.
	OpSourceRead = "source_read"
	// OpClear represents a full pipeline clear.
	OpClear = "clear"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Side label values for stereo meters.
const (
	SideLeft  = "left"
	SideRight = "right"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~4s range).
	BucketStart1ms = 0.001
	// BucketStart1 is the starting bucket for count histograms.
	BucketStart1 = 1.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// Time and conversion constants.
const (
	// ShutdownTimeout is the timeout for graceful shutdown operations.
	ShutdownTimeout = 5 * time.Second
)
