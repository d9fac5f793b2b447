package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := LoadFile(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)

	assert.Equal(t, SourceSerial, settings.Source.Type)
	assert.Equal(t, 115200, settings.Source.BaudRate)
	assert.Equal(t, 48000, settings.Acquisition.SampleRate)
	assert.Equal(t, 3, settings.Acquisition.BytesPerSample)
	assert.Equal(t, 4096, settings.Acquisition.QueueCeiling)
	assert.Equal(t, 512, settings.Acquisition.BatchSize)
	assert.Equal(t, 5*time.Millisecond, settings.Acquisition.IdleWait)
	assert.Equal(t, 48000, settings.Acquisition.RingCapacity)
	assert.Equal(t, 10*time.Second, settings.Acquisition.DropSummaryInterval)
	assert.Equal(t, 44100, settings.Mixer.InputRate)
	assert.Equal(t, 44100, settings.Mixer.OutputRate)
	assert.True(t, settings.Mixer.DCBlock)
	require.Len(t, settings.Mixer.Channels, NumMixerChannels)
	for _, ch := range settings.Mixer.Channels {
		assert.InDelta(t, 1.0, ch.Gain, 0)
		assert.InDelta(t, 0.0, ch.Pan, 0)
		assert.Equal(t, 12, ch.Bits)
	}
	assert.Equal(t, "malgo", settings.Mixer.Monitor.Backend)
	assert.Same(t, settings, Setting())
}

func TestLoadOverridesAndClamping(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := writeConfig(t, `
source:
  type: reader
  path: capture.raw
acquisition:
  queueceiling: 128
  idlewait: 2ms
  plotbits: 30
mixer:
  channels:
    - {gain: 0.5, pan: -1, bits: 16}
    - {gain: 1, pan: 1, bits: 4}
    - {gain: 1, pan: 0, bits: 24}
    - {gain: 0, pan: 0, bits: 12}
`)
	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, SourceReader, settings.Source.Type)
	assert.Equal(t, "capture.raw", settings.Source.Path)
	assert.Equal(t, 128, settings.Acquisition.QueueCeiling)
	assert.Equal(t, 2*time.Millisecond, settings.Acquisition.IdleWait)
	assert.Equal(t, MaxBits, settings.Acquisition.PlotBits)
	assert.Equal(t, 16, settings.Mixer.Channels[0].Bits)
	assert.Equal(t, MinBits, settings.Mixer.Channels[1].Bits)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("ADCREC_ACQUISITION_SAMPLERATE", "96000")

	settings, err := LoadFile(writeConfig(t, "debug: true\n"))
	require.NoError(t, err)
	assert.Equal(t, 96000, settings.Acquisition.SampleRate)
	assert.True(t, settings.Debug)
}

func TestSaveYAMLRoundTrip(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := LoadFile(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)
	settings.Version = "should-not-persist"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveYAML(path, settings))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should-not-persist")

	var decoded Settings
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, settings.Acquisition, decoded.Acquisition)
	assert.Equal(t, settings.Mixer.Channels, decoded.Mixer.Channels)
}
