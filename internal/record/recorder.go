// Package record writes drained packets to a binary log and replays such logs
// back through a framer at the original packet rate.
package record

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/logging"
	"github.com/tphakala/adcrec/internal/packet"
)

// Session describes the open or most recently closed recording.
type Session struct {
	ID      string
	Path    string
	Started time.Time
	Records uint64
	Bytes   uint64
	Active  bool
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Logger *slog.Logger
	// Now stamps artifact names; defaults to time.Now.
	Now func() time.Time
}

// Recorder appends every consumed packet to the open session file as a
// 24-bit record. At most one session is open at a time.
type Recorder struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	scratch []byte
	session Session
}

// NewRecorder creates an idle Recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.ForService("record")
		if logger == nil {
			logger = slog.Default()
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		logger: logger.With("component", "recorder"),
		now:    now,
	}
}

// Start opens a new ADCRec_*.bin file in dir and returns its path. A session
// that is already open is closed first.
func (r *Recorder) Start(dir string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		if err := r.closeLocked(); err != nil {
			r.logger.Warn("failed to close previous recording", "path", r.session.Path, "error", err)
		}
	}

	started := r.now()
	f, path, err := CreateArtifact(dir, RecordingPrefix, RecordingExt, started)
	if err != nil {
		return "", err
	}

	r.file = f
	r.w = bufio.NewWriterSize(f, 64*packet.RecordSize())
	r.session = Session{
		ID:      uuid.NewString(),
		Path:    path,
		Started: started,
		Active:  true,
	}
	r.logger.Info("recording started", "session_id", r.session.ID, "path", path)
	return path, nil
}

// Stop flushes and closes the open session.
func (r *Recorder) Stop() (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return r.session, ErrNoSession
	}
	err := r.closeLocked()
	r.logger.Info("recording stopped",
		"session_id", r.session.ID,
		"records", r.session.Records,
		"bytes", r.session.Bytes)
	return r.session, err
}

// closeLocked flushes and closes the file; the session is marked inactive
// even when either step fails.
func (r *Recorder) closeLocked() error {
	var flushErr error
	if r.w != nil {
		flushErr = r.w.Flush()
	}
	closeErr := r.file.Close()
	r.file = nil
	r.w = nil
	r.session.Active = false

	if err := errors.Join(flushErr, closeErr); err != nil {
		return errors.New(err).
			Component(ComponentRecord).
			Category(errors.CategoryFileIO).
			Context("path", r.session.Path).
			Build()
	}
	return nil
}

// Active reports whether a session is open.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file != nil
}

// Session returns a copy of the current session state.
func (r *Recorder) Session() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Write appends batch to the open session and flushes. Without a session it
// does nothing. A write failure closes the session.
func (r *Recorder) Write(batch []*packet.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil || len(batch) == 0 {
		return nil
	}

	buf := r.scratch[:0]
	records := 0
	for _, p := range batch {
		if p == nil {
			continue
		}
		buf = p.AppendRecord(buf)
		records++
	}
	r.scratch = buf

	_, err := r.w.Write(buf)
	if err == nil {
		err = r.w.Flush()
	}
	if err != nil {
		werr := errors.New(fmt.Errorf("recording write failed: %w", err)).
			Component(ComponentRecord).
			Category(errors.CategoryFileIO).
			Context("path", r.session.Path).
			Context("session_id", r.session.ID).
			FileContext(r.session.Path, int64(r.session.Bytes)).
			Priority(errors.PriorityHigh).
			Build()
		if cerr := r.closeLocked(); cerr != nil {
			r.logger.Debug("close after write failure", "error", cerr)
		}
		r.logger.Error("recording stopped after write failure", "path", r.session.Path, "error", werr)
		return werr
	}

	r.session.Records += uint64(records)
	r.session.Bytes += uint64(len(buf))
	return nil
}

// Name implements pipeline.Consumer.
func (r *Recorder) Name() string { return "recorder" }

// Consume implements pipeline.Consumer.
func (r *Recorder) Consume(_ context.Context, batch []*packet.Packet) error {
	return r.Write(batch)
}
