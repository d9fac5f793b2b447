package acquisition

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/adcrec/internal/conf"
	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/logging"
	"github.com/tphakala/adcrec/internal/mixer"
	"github.com/tphakala/adcrec/internal/observability"
	"github.com/tphakala/adcrec/internal/record"
	"github.com/tphakala/adcrec/internal/source"
)

// drainPoll is how often a finished input checks for an empty queue.
const drainPoll = 10 * time.Millisecond

// Driver feeds a running session. It returns when its input is exhausted or
// ctx is cancelled.
type Driver func(ctx context.Context, s *Session) error

// RunOptions tunes Run. The zero value builds everything from settings.
type RunOptions struct {
	Output mixer.Output // overrides the configured monitor backend
	Logger *slog.Logger
}

// Capture opens the configured byte source and runs a session on it until
// ctx is cancelled or the source ends.
func Capture(ctx context.Context, settings *conf.Settings) error {
	logger := runLogger(nil)
	src, err := OpenSource(settings, logger)
	if err != nil {
		return err
	}
	return Run(ctx, settings, func(ctx context.Context, s *Session) error {
		// Unblocks a read that does not observe ctx, e.g. stdin
		stop := context.AfterFunc(ctx, func() { _ = src.Close() })
		defer stop()
		defer src.Close()
		return s.RunSource(ctx, src)
	}, RunOptions{Logger: logger})
}

// ReplayFile runs a session fed from a recording. An empty path replays the
// newest recording in the configured recording directory.
func ReplayFile(ctx context.Context, settings *conf.Settings, path string) error {
	logger := runLogger(nil)
	if path == "" {
		newest, err := record.NewestRecording(settings.Recording.Path)
		if err != nil {
			return err
		}
		path = newest
	}

	// Replaying into a new recording would only duplicate the file
	replaySettings := *settings
	replaySettings.Recording.Enabled = false

	return Run(ctx, &replaySettings, func(ctx context.Context, s *Session) error {
		stats, err := s.Replay(ctx, path)
		if err != nil {
			return err
		}
		logger.Info("replay finished",
			"path", stats.Path,
			"records", stats.Records,
			"packets", stats.Packets,
			"duration", stats.Duration.Round(time.Millisecond))
		return nil
	}, RunOptions{Logger: logger})
}

// OpenSource opens the byte source selected by settings.
func OpenSource(settings *conf.Settings, logger *slog.Logger) (source.ByteSource, error) {
	src := settings.Source
	switch src.Type {
	case conf.SourceSerial, "":
		return source.OpenSerial(source.SerialConfig{
			Port:        src.Port,
			BaudRate:    src.BaudRate,
			ReadTimeout: src.ReadTimeout,
			Lister:      source.NewLister(source.DefaultListTTL),
			Logger:      logger,
		})
	case conf.SourceReader:
		return source.OpenFile(src.Path, logger)
	default:
		return nil, errors.Newf("unknown source type: %q", src.Type).
			Component(ComponentAcquisition).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Run builds a session from settings, starts it together with the status
// reporter and the optional metrics endpoint, and hands it to drive. When
// drive returns, Run waits for the queue to drain, stops everything and
// logs a final status line.
func Run(ctx context.Context, settings *conf.Settings, drive Driver, opts RunOptions) error {
	logger := runLogger(opts.Logger)

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	session, err := NewSession(Config{
		Settings: settings,
		Metrics:  m.Pipeline,
		Logger:   logger,
		Output:   opts.Output,
	})
	if err != nil {
		return err
	}

	var endpoint *observability.Endpoint
	if settings.Telemetry.Prometheus.Enabled {
		endpoint, err = observability.NewEndpoint(settings, m)
		if err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := session.Start(runCtx); err != nil {
		return err
	}

	// The socket opens only once the session is up, so a failed start holds no port
	if endpoint != nil {
		if err := endpoint.Listen(); err != nil {
			return errors.Join(err, session.Stop())
		}
	}

	reporter := NewStatusReporter(session, settings.Status.Interval, logger)
	g, gctx := errgroup.WithContext(runCtx)

	if endpoint != nil {
		g.Go(func() error { return endpoint.Serve(gctx) })
	}
	g.Go(func() error { return reporter.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		if err := drive(gctx, session); err != nil {
			return err
		}
		return waitDrained(gctx, session)
	})

	runErr := g.Wait()
	stopErr := session.Stop()
	reporter.Report()

	return errors.Join(runErr, stopErr)
}

// waitDrained returns once the queue is empty or ctx is done.
func waitDrained(ctx context.Context, s *Session) error {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for s.queue.Len() > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func runLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	if l = logging.ForService("acquisition"); l != nil {
		return l
	}
	return slog.Default()
}
