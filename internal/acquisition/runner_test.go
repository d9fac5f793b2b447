package acquisition

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/adcrec/internal/conf"
	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/packet"
	"github.com/tphakala/adcrec/internal/record"
	"github.com/tphakala/adcrec/internal/testutil"
)

func TestRunDrainsBeforeStopping(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Recording.Enabled = true
	settings.Status.Interval = 5 * time.Millisecond
	settings.Telemetry.Prometheus.Enabled = true
	settings.Telemetry.Prometheus.Listen = "127.0.0.1:0"

	err := Run(t.Context(), settings, func(_ context.Context, s *Session) error {
		s.Ingest(stream(40))
		return nil
	}, RunOptions{Logger: quietLogger()})
	require.NoError(t, err)

	path, err := record.NewestRecording(settings.Recording.Path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(40*packet.RecordSize()), info.Size(), "every queued packet reaches the recorder before stop")
}

func TestRunFailedStartHoldsNoPort(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	settings := testSettings(t)
	settings.Recording.Enabled = true
	settings.Recording.MinFreeMB = 1 << 40
	settings.Telemetry.Prometheus.Enabled = true
	settings.Telemetry.Prometheus.Listen = addr

	driven := false
	err = Run(t.Context(), settings, func(context.Context, *Session) error {
		driven = true
		return nil
	}, RunOptions{Logger: quietLogger()})
	require.ErrorIs(t, err, record.ErrInsufficientSpace)
	assert.False(t, driven)

	// The metrics port is still free after the failed start
	ln, err = net.Listen("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, ln.Close())
}

func TestRunPropagatesDriverError(t *testing.T) {
	t.Parallel()

	want := errors.NewStd("driver failed")
	err := Run(t.Context(), testSettings(t), func(context.Context, *Session) error {
		return want
	}, RunOptions{Logger: quietLogger()})
	require.ErrorIs(t, err, want)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, testSettings(t), func(ctx context.Context, _ *Session) error {
			<-ctx.Done()
			return nil
		}, RunOptions{Logger: quietLogger()})
	}()

	cancel()
	require.NoError(t, testutil.Receive(t, done, testutil.DefaultTestTimeout, "Run did not return after cancellation"))
}

func TestCaptureFromFile(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Recording.Enabled = true
	settings.Source.Type = conf.SourceReader
	settings.Source.Path = filepath.Join(t.TempDir(), "capture.raw")
	require.NoError(t, os.WriteFile(settings.Source.Path, stream(25), 0o600))

	require.NoError(t, Capture(t.Context(), settings))

	path, err := record.NewestRecording(settings.Recording.Path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(25*packet.RecordSize()), info.Size())
}

func TestReplayFileUsesNewestRecording(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Acquisition.SampleRate = 16_000_000

	f, path, err := record.CreateArtifact(settings.Recording.Path, record.RecordingPrefix, record.RecordingExt, time.Now())
	require.NoError(t, err)
	_, err = f.Write(stream(8))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	settings.Mixer.WAV.Enabled = true
	require.NoError(t, ReplayFile(t.Context(), settings, ""))

	// The replay itself is not re-recorded
	matches, err := filepath.Glob(filepath.Join(settings.Recording.Path, record.RecordingPrefix+"*"))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, matches)

	wavs, err := filepath.Glob(filepath.Join(settings.Mixer.WAV.Path, record.MixPrefix+"*"))
	require.NoError(t, err)
	require.Len(t, wavs, 1)
	info, err := os.Stat(wavs[0])
	require.NoError(t, err)
	assert.Equal(t, int64(44+8*packet.BufferLen*6), info.Size())
}

func TestReplayFileWithoutRecordings(t *testing.T) {
	t.Parallel()

	err := ReplayFile(t.Context(), testSettings(t), "")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}

func TestOpenSourceValidation(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.Source.Type = "carrier-pigeon"
	_, err := OpenSource(settings, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	settings.Source.Type = conf.SourceSerial
	settings.Source.Port = ""
	_, err = OpenSource(settings, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
