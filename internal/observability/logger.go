// Package observability exposes Prometheus metrics for adcrec.
package observability

import (
	"log/slog"

	"github.com/tphakala/adcrec/internal/logging"
)

// getLogger returns the telemetry service logger, falling back to the
// default logger before logging is initialized.
func getLogger() *slog.Logger {
	if l := logging.ForService("telemetry"); l != nil {
		return l
	}
	return slog.Default()
}
