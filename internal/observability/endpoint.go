package observability

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/tphakala/adcrec/internal/conf"
	"github.com/tphakala/adcrec/internal/errors"
	metricspkg "github.com/tphakala/adcrec/internal/observability/metrics"
)

// Endpoint serves Prometheus-compatible telemetry over HTTP.
type Endpoint struct {
	server        *http.Server
	listener      net.Listener
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint creates a telemetry endpoint. It returns an error if the
// Prometheus endpoint is disabled in settings. Debug mode adds the pprof
// handlers under /debug/pprof/.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Telemetry.Prometheus.Enabled {
		return nil, errors.Newf("prometheus endpoint not enabled in settings").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)
	if settings.Debug {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return &Endpoint{
		listenAddress: settings.Telemetry.Prometheus.Listen,
		metrics:       metrics,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Listen binds the listen address. Calling Serve without Listen binds lazily.
func (e *Endpoint) Listen() error {
	if e.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryResource).
			Context("address", e.listenAddress).
			Build()
	}
	e.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (e *Endpoint) Addr() string {
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.listenAddress
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (e *Endpoint) Serve(ctx context.Context) error {
	if err := e.Listen(); err != nil {
		return err
	}
	log := getLogger()

	errCh := make(chan error, 1)
	go func() {
		log.Info("telemetry endpoint starting", "address", e.Addr())
		errCh <- e.server.Serve(e.listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("telemetry HTTP server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		log.Error("telemetry server shutdown error", "error", err)
		return err
	}
	<-errCh
	return nil
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
