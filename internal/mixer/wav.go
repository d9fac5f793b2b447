package mixer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/record"
)

// WAV output format.
const (
	WAVChannels    = 2
	WAVBitDepth    = 24
	wavPCMFormat   = 1
	riffSizeOffset = 4
	dataSizeOffset = 40
)

// WAVSession describes the open or most recently closed WAV file.
type WAVSession struct {
	ID         string
	Path       string
	SampleRate int
	Started    time.Time
	DataBytes  uint64
	Active     bool
}

// WAVWriter archives the stereo mix as 24-bit PCM. The two RIFF length fields
// stay zero while the file is open and are patched on Stop. One lock covers
// open, write and close.
type WAVWriter struct {
	sampleRate int
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	session WAVSession
}

// NewWAVWriter creates an idle writer for sampleRate Hz output.
func NewWAVWriter(sampleRate int, logger *slog.Logger) *WAVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WAVWriter{
		sampleRate: sampleRate,
		logger:     logger.With("component", "wav_writer"),
		now:        time.Now,
	}
}

// Start creates a new ADCRecMix_*.wav in dir and writes its header. A file
// that is already open is finalized first.
func (w *WAVWriter) Start(dir string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		if err := w.closeLocked(); err != nil {
			w.logger.Warn("failed to finalize previous wav file", "path", w.session.Path, "error", err)
		}
	}

	started := w.now()
	f, path, err := record.CreateArtifact(dir, record.MixPrefix, record.MixExt, started)
	if err != nil {
		return "", err
	}

	enc := wav.NewEncoder(f, w.sampleRate, WAVBitDepth, WAVChannels, wavPCMFormat)
	format := &audio.Format{NumChannels: WAVChannels, SampleRate: w.sampleRate}
	buf := &audio.IntBuffer{Format: format, SourceBitDepth: WAVBitDepth, Data: []int{}}

	// An empty write emits the RIFF, fmt and data chunk headers
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return "", w.ioError(err, path, "write_header")
	}
	if err := zeroLengthFields(f); err != nil {
		_ = f.Close()
		return "", w.ioError(err, path, "write_header")
	}

	w.file = f
	w.enc = enc
	w.buf = buf
	w.session = WAVSession{
		ID:         uuid.NewString(),
		Path:       path,
		SampleRate: w.sampleRate,
		Started:    started,
		Active:     true,
	}
	w.logger.Info("wav recording started", "session_id", w.session.ID, "path", path, "sample_rate", w.sampleRate)
	return path, nil
}

// zeroLengthFields overwrites the encoder's provisional chunk sizes with zero
// and returns to the end of the file.
func zeroLengthFields(f io.WriteSeeker) error {
	var zero [4]byte
	for _, off := range []int64{riffSizeOffset, dataSizeOffset} {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return err
		}
		if _, err := f.Write(zero[:]); err != nil {
			return err
		}
	}
	_, err := f.Seek(0, io.SeekEnd)
	return err
}

// Write encodes interleaved stereo samples in [-1, 1]. Without an open file it
// does nothing. A failure finalizes and closes the file.
func (w *WAVWriter) Write(stereo []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil || len(stereo) < WAVChannels {
		return nil
	}

	n := len(stereo) - len(stereo)%WAVChannels
	data := w.buf.Data[:0]
	for _, s := range stereo[:n] {
		data = append(data, to24Bit(s))
	}
	w.buf.Data = data

	if err := w.enc.Write(w.buf); err != nil {
		werr := w.ioError(err, w.session.Path, "write")
		if cerr := w.closeLocked(); cerr != nil {
			w.logger.Debug("close after write failure", "error", cerr)
		}
		w.logger.Error("wav recording stopped after write failure", "path", w.session.Path, "error", werr)
		return werr
	}
	w.session.DataBytes += uint64(n * WAVBitDepth / 8)
	return nil
}

// Stop patches the length fields and closes the file.
func (w *WAVWriter) Stop() (WAVSession, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return w.session, nil
	}
	err := w.closeLocked()
	w.logger.Info("wav recording stopped",
		"session_id", w.session.ID,
		"path", w.session.Path,
		"data_bytes", w.session.DataBytes)
	return w.session, err
}

// closeLocked lets the encoder patch the RIFF size (36 + data) and the data
// chunk size, then closes the file.
func (w *WAVWriter) closeLocked() error {
	encErr := w.enc.Close()
	closeErr := w.file.Close()
	w.file = nil
	w.enc = nil
	w.session.Active = false

	if err := errors.Join(encErr, closeErr); err != nil {
		return w.ioError(err, w.session.Path, "finalize")
	}
	return nil
}

// Active reports whether a WAV file is open.
func (w *WAVWriter) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file != nil
}

// Session returns a copy of the current session state.
func (w *WAVWriter) Session() WAVSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

func (w *WAVWriter) ioError(err error, path, op string) error {
	return errors.New(fmt.Errorf("wav %s failed: %w", op, err)).
		Component(ComponentMixer).
		Category(errors.CategoryFileIO).
		Context("path", path).
		Context("operation", op).
		Build()
}
