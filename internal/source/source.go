// Package source supplies raw acquisition bytes: serial ports and plain
// readers such as recordings on disk or stdin.
package source

import (
	"context"

	"github.com/tphakala/adcrec/internal/errors"
)

// ComponentSource identifies byte source errors and logs.
const ComponentSource = "source"

// ChunkHandler receives each chunk of bytes as it arrives. The slice is only
// valid for the duration of the call.
type ChunkHandler func(chunk []byte)

// ByteSource delivers an opaque byte stream.
type ByteSource interface {
	// Name identifies the endpoint, e.g. a port name or file path.
	Name() string
	// Run delivers chunks to handler until ctx is done, the stream ends or
	// Close is called. A clean end of stream returns nil.
	Run(ctx context.Context, handler ChunkHandler) error
	Close() error
}

// ErrClosed is returned when using a source after Close.
var ErrClosed = errors.New(nil).
	Component(ComponentSource).
	Category(errors.CategoryState).
	Context("resource", "byte_source").
	Build()
