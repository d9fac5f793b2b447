package mixer

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/tphakala/adcrec/internal/errors"
)

// DeviceInfo names a playback device.
type DeviceInfo struct {
	Index     int
	Name      string
	IsDefault bool
}

// ListPlaybackDevices enumerates playback devices through miniaudio.
func ListPlaybackDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, audioSourceError(err, "init_context")
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, audioSourceError(err, "enumerate_devices")
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			IsDefault: infos[i].IsDefault != 0,
		})
	}
	return devices, nil
}

// malgoOutput plays the monitor stream on a miniaudio playback device.
type malgoOutput struct {
	deviceName string
	logger     *slog.Logger

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	src    io.Reader
}

func newMalgoOutput(deviceName string, logger *slog.Logger) *malgoOutput {
	return &malgoOutput{
		deviceName: deviceName,
		logger:     logger.With("component", "monitor_output", "backend", BackendMalgo),
	}
}

func (o *malgoOutput) Name() string { return BackendMalgo }

func (o *malgoOutput) Start(src io.Reader, sampleRate int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.device != nil {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		o.logger.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return audioSourceError(err, "init_context")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = WAVChannels
	cfg.SampleRate = uint32(sampleRate) //nolint:gosec // G115: sample rate validated positive
	cfg.Alsa.NoMMap = 1

	if o.deviceName != "" {
		infos, err := ctx.Devices(malgo.Playback)
		if err != nil {
			o.release(ctx, nil)
			return audioSourceError(err, "enumerate_devices")
		}
		found := false
		for i := range infos {
			if strings.Contains(infos[i].Name(), o.deviceName) {
				cfg.Playback.DeviceID = infos[i].ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			o.release(ctx, nil)
			return errors.Newf("playback device %q not found", o.deviceName).
				Component(ComponentMixer).
				Category(errors.CategoryNotFound).
				Context("device", o.deviceName).
				Build()
		}
	}

	o.src = src
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			// The monitor zero-fills on underrun
			_, _ = o.src.Read(out)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		o.release(ctx, nil)
		return audioSourceError(err, "init_device")
	}
	if err := device.Start(); err != nil {
		o.release(ctx, device)
		return audioSourceError(err, "start_device")
	}

	o.ctx = ctx
	o.device = device
	o.logger.Info("monitor output started", "sample_rate", sampleRate, "device", o.deviceName)
	return nil
}

func (o *malgoOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.device == nil {
		return nil
	}
	if err := o.device.Stop(); err != nil {
		o.logger.Warn("failed to stop playback device", "error", err)
	}
	o.release(o.ctx, o.device)
	o.ctx = nil
	o.device = nil
	o.logger.Info("monitor output stopped")
	return nil
}

func (o *malgoOutput) release(ctx *malgo.AllocatedContext, device *malgo.Device) {
	if device != nil {
		device.Uninit()
	}
	if ctx != nil {
		if err := ctx.Uninit(); err != nil {
			o.logger.Debug("malgo context uninit failed", "error", err)
		}
		ctx.Free()
	}
}

func audioSourceError(err error, op string) error {
	return errors.New(fmt.Errorf("audio device %s failed: %w", op, err)).
		Component(ComponentMixer).
		Category(errors.CategoryAudioSource).
		Context("operation", op).
		Build()
}
