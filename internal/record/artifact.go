package record

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/adcrec/internal/errors"
)

// Artifact name prefixes and extensions.
const (
	RecordingPrefix = "ADCRec_"
	RecordingExt    = ".bin"
	MixPrefix       = "ADCRecMix_"
	MixExt          = ".wav"

	timestampLayout = "20060102_150405"
)

// ArtifactName returns prefix + local timestamp + ext, e.g. ADCRec_20240131_235959.bin.
func ArtifactName(prefix, ext string, t time.Time) string {
	return prefix + t.Format(timestampLayout) + ext
}

// CreateArtifact creates dir if needed and a new artifact file in it. The
// file is created exclusively; an existing file with the same name is an error.
func CreateArtifact(dir, prefix, ext string, now time.Time) (*os.File, string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", errors.New(fmt.Errorf("failed to create directory: %w", err)).
			Component(ComponentRecord).
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	path := filepath.Join(dir, ArtifactName(prefix, ext, now))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G304: path built from configured dir
	if err != nil {
		category := errors.CategoryFileIO
		if os.IsExist(err) {
			category = errors.CategoryConflict
		}
		return nil, "", errors.New(err).
			Component(ComponentRecord).
			Category(category).
			Context("path", path).
			FileContext(path, 0).
			Build()
	}
	return f, path, nil
}

// NewestRecording returns the path of the most recent recording in dir.
// Names sort chronologically, so the lexically greatest name wins.
func NewestRecording(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.New(err).
			Component(ComponentRecord).
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(name, RecordingPrefix) && strings.HasSuffix(name, RecordingExt) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", errors.Newf("no %s*%s recordings found", RecordingPrefix, RecordingExt).
			Component(ComponentRecord).
			Category(errors.CategoryNotFound).
			Context("dir", dir).
			Build()
	}
	return filepath.Join(dir, slices.Max(names)), nil
}
