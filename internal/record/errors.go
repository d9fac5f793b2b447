package record

import (
	"github.com/tphakala/adcrec/internal/errors"
)

// ComponentRecord identifies recorder and replayer errors.
const ComponentRecord = "record"

var (
	// ErrNoSession is returned when stopping a recorder that has no open session.
	ErrNoSession = errors.New(nil).
		Component(ComponentRecord).
		Category(errors.CategoryState).
		Context("resource", "recording_session").
		Build()

	// ErrIncompatibleWidth is returned when replaying into a framer whose
	// sample width differs from the 24-bit record format.
	ErrIncompatibleWidth = errors.New(nil).
		Component(ComponentRecord).
		Category(errors.CategoryValidation).
		Context("resource", "framer_width").
		Build()

	// ErrInsufficientSpace is returned when an output directory is below the
	// configured free space minimum.
	ErrInsufficientSpace = errors.New(nil).
		Component(ComponentRecord).
		Category(errors.CategoryLimit).
		Context("resource", "disk_space").
		Build()
)
