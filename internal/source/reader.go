package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/logging"
)

// StdinPath selects standard input for OpenFile.
const StdinPath = "-"

// Reader delivers bytes from any io.Reader, such as a capture dump or a pipe.
type Reader struct {
	name   string
	r      io.Reader
	logger *slog.Logger

	mu        sync.Mutex
	closer    io.Closer
	closed    atomic.Bool
	bytesRead atomic.Uint64
}

// NewReader wraps r. If r is an io.Closer, Close closes it.
func NewReader(name string, r io.Reader, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = logging.ForService("acquisition")
		if logger == nil {
			logger = slog.Default()
		}
	}
	rd := &Reader{
		name:   name,
		r:      r,
		logger: logger.With("component", "reader_source", "name", name),
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// OpenFile opens path for reading; "-" or "" reads standard input.
func OpenFile(path string, logger *slog.Logger) (*Reader, error) {
	if path == "" || path == StdinPath {
		return NewReader("stdin", io.NopCloser(os.Stdin), logger), nil
	}
	f, err := os.Open(path) //nolint:gosec // G304: source path is user configuration
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentSource).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return NewReader(path, f, logger), nil
}

// Name returns the reader name.
func (r *Reader) Name() string { return r.name }

// BytesRead returns the bytes delivered so far.
func (r *Reader) BytesRead() uint64 { return r.bytesRead.Load() }

// Run copies the reader to handler in chunks until EOF, ctx or Close.
func (r *Reader) Run(ctx context.Context, handler ChunkHandler) error {
	if r.closed.Load() {
		return ErrClosed
	}

	buf := make([]byte, readChunkSize)
	for {
		if ctx.Err() != nil || r.closed.Load() {
			return nil
		}
		n, err := r.r.Read(buf)
		if n > 0 {
			r.bytesRead.Add(uint64(n))
			handler(buf[:n])
		}
		if err == io.EOF {
			r.logger.Info("end of stream", "bytes_read", r.bytesRead.Load())
			return nil
		}
		if err != nil {
			if r.closed.Load() {
				return nil
			}
			return errors.New(fmt.Errorf("source read failed: %w", err)).
				Component(ComponentSource).
				Category(errors.CategoryFileIO).
				Context("name", r.name).
				Build()
		}
	}
}

// Close stops Run after its pending read and closes the underlying reader.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Swap(true) || r.closer == nil {
		return nil
	}
	if err := r.closer.Close(); err != nil {
		return errors.New(err).
			Component(ComponentSource).
			Category(errors.CategoryFileIO).
			Context("name", r.name).
			Build()
	}
	return nil
}
