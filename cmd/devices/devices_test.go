package devices

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/adcrec/internal/mixer"
)

func TestListDevices(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := list(&out,
		func() ([]string, error) { return []string{"/dev/ttyACM0", "/dev/ttyUSB1"}, nil },
		func() ([]mixer.DeviceInfo, error) {
			return []mixer.DeviceInfo{{Index: 0, Name: "Speakers", IsDefault: true}, {Index: 1, Name: "HDMI"}}, nil
		})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "  /dev/ttyACM0\n")
	assert.Contains(t, text, "  0: Speakers (default)\n")
	assert.Contains(t, text, "  1: HDMI\n")
}

func TestListDevicesWithoutAudio(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := list(&out,
		func() ([]string, error) { return nil, nil },
		func() ([]mixer.DeviceInfo, error) { return nil, errors.New("no backend") })
	require.NoError(t, err)
	assert.Contains(t, out.String(), "  (none)")
	assert.Contains(t, out.String(), "Playback devices: unavailable (no backend)")
}

func TestListDevicesSerialError(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := list(&out,
		func() ([]string, error) { return nil, errors.New("enumeration failed") },
		func() ([]mixer.DeviceInfo, error) { return nil, nil })
	require.Error(t, err)
}
