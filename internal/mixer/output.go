package mixer

import (
	"io"
	"log/slog"

	"github.com/tphakala/adcrec/internal/errors"
)

// Monitor backend names.
const (
	BackendMalgo = "malgo"
	BackendOto   = "oto"
	BackendNone  = "none"
)

// Output plays float32 little-endian interleaved stereo pulled from a reader.
type Output interface {
	Name() string
	// Start opens the device at sampleRate and begins pulling from src.
	Start(src io.Reader, sampleRate int) error
	Close() error
}

// NewOutput returns the playback backend named by backend. device selects a
// playback device by name substring where the backend supports it.
func NewOutput(backend, device string, logger *slog.Logger) (Output, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch backend {
	case BackendMalgo, "":
		return newMalgoOutput(device, logger), nil
	case BackendOto:
		return newOtoOutput(logger), nil
	case BackendNone:
		return nullOutput{}, nil
	default:
		return nil, errors.Newf("unknown monitor backend %q", backend).
			Component(ComponentMixer).
			Category(errors.CategoryConfiguration).
			Context("backend", backend).
			Build()
	}
}

// nullOutput discards the monitor stream.
type nullOutput struct{}

func (nullOutput) Name() string               { return BackendNone }
func (nullOutput) Start(io.Reader, int) error { return nil }
func (nullOutput) Close() error               { return nil }
