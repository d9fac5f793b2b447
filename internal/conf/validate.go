// conf/validate.go contains validation logic for the configuration
package conf

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
)

// Bit depth bounds for channel interpretation
const (
	MinBits = 8
	MaxBits = 24
)

// MonitorBackends lists the accepted values of mixer.monitor.backend.
var MonitorBackends = []string{"malgo", "oto", "none"}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct. Out of range bit
// depths are clamped in place and logged rather than rejected.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateSourceSettings(&settings.Source); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	ve.Errors = append(ve.Errors, validateAcquisitionSettings(&settings.Acquisition)...)
	ve.Errors = append(ve.Errors, validateMixerSettings(&settings.Mixer)...)

	if settings.Recording.MinFreeMB < 0 {
		ve.Errors = append(ve.Errors, "recording minimum free space must not be negative")
	}

	if settings.Status.Interval < 0 {
		ve.Errors = append(ve.Errors, "status interval must not be negative")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateSourceSettings(s *SourceSettings) error {
	switch s.Type {
	case SourceSerial:
		if s.BaudRate <= 0 {
			return fmt.Errorf("serial baud rate must be positive, got %d", s.BaudRate)
		}
	case SourceReader:
		if s.Path == "" {
			return fmt.Errorf("reader source requires a path, use \"-\" for stdin")
		}
	default:
		return fmt.Errorf("unknown source type %q, expected %q or %q", s.Type, SourceSerial, SourceReader)
	}
	return nil
}

func validateAcquisitionSettings(a *AcquisitionSettings) []string {
	var errs []string
	if a.SampleRate <= 0 {
		errs = append(errs, fmt.Sprintf("acquisition sample rate must be positive, got %d", a.SampleRate))
	}
	if a.BytesPerSample != 2 && a.BytesPerSample != 3 {
		errs = append(errs, fmt.Sprintf("bytes per sample must be 2 or 3, got %d", a.BytesPerSample))
	}
	if a.QueueCeiling < 1 {
		errs = append(errs, fmt.Sprintf("queue ceiling must be at least 1, got %d", a.QueueCeiling))
	}
	if a.BatchSize < 1 {
		errs = append(errs, fmt.Sprintf("batch size must be at least 1, got %d", a.BatchSize))
	}
	if a.IdleWait <= 0 {
		errs = append(errs, "drain idle wait must be positive")
	}
	if a.RingCapacity < 1 {
		errs = append(errs, fmt.Sprintf("ring capacity must be at least 1, got %d", a.RingCapacity))
	}
	if a.DropSummaryInterval <= 0 {
		errs = append(errs, "drop summary interval must be positive")
	}
	a.PlotBits = clampBitsSetting("acquisition.plotbits", a.PlotBits)
	return errs
}

func validateMixerSettings(m *MixerSettings) []string {
	var errs []string
	if m.InputRate <= 0 || m.OutputRate <= 0 {
		errs = append(errs, fmt.Sprintf("mixer rates must be positive, got input %d output %d", m.InputRate, m.OutputRate))
	}
	if len(m.Channels) != NumMixerChannels {
		errs = append(errs, fmt.Sprintf("mixer needs %d channel entries, got %d", NumMixerChannels, len(m.Channels)))
	}
	for i := range m.Channels {
		ch := &m.Channels[i]
		if ch.Gain < 0 || math.IsNaN(ch.Gain) || math.IsInf(ch.Gain, 0) {
			errs = append(errs, fmt.Sprintf("mixer channel %d gain must be a finite non-negative value, got %v", i+1, ch.Gain))
		}
		if ch.Pan < -1 || ch.Pan > 1 || math.IsNaN(ch.Pan) {
			errs = append(errs, fmt.Sprintf("mixer channel %d pan must be within [-1, 1], got %v", i+1, ch.Pan))
		}
		ch.Bits = clampBitsSetting(fmt.Sprintf("mixer.channels[%d].bits", i), ch.Bits)
	}
	if !slices.Contains(MonitorBackends, m.Monitor.Backend) {
		errs = append(errs, fmt.Sprintf("unknown monitor backend %q, expected one of %v", m.Monitor.Backend, MonitorBackends))
	}
	if m.Monitor.BufferDuration <= 0 {
		errs = append(errs, "monitor buffer duration must be positive")
	}
	return errs
}

func clampBitsSetting(key string, bits int) int {
	clamped := min(max(bits, MinBits), MaxBits)
	if clamped != bits {
		slog.Warn("bit depth out of range, clamping", "setting", key, "configured", bits, "used", clamped)
	}
	return clamped
}
