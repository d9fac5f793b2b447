// Package conf provides configuration management for adcrec.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// NumMixerChannels is the number of input channels the mixer has settings for.
const NumMixerChannels = 4

// Settings is the root of the configuration tree.
type Settings struct {
	Debug bool // true to enable debug output

	// Runtime values, not stored in config file
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`

	Main struct {
		Level string    // log level: trace, debug, info, warn, error
		Log   LogConfig // file logging configuration
	}

	Source      SourceSettings      // byte source configuration
	Acquisition AcquisitionSettings // framing, queue and ring configuration
	Recording   RecordingSettings   // binary recording configuration
	Mixer       MixerSettings       // audio mixdown, WAV archival and monitor
	Status      StatusSettings      // periodic status reporting
	Telemetry   TelemetrySettings   // prometheus and sentry
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool         // true to enable this log
	Path     string       // Path to the log file
	Rotation RotationType // Type of log rotation
	MaxSize  int64        // Max size in bytes for RotationSize
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// Source types
const (
	SourceSerial = "serial"
	SourceReader = "reader"
)

// SourceSettings selects and configures the byte source.
type SourceSettings struct {
	Type        string        // serial or reader
	Port        string        // serial port name, e.g. /dev/ttyACM0 or COM3
	BaudRate    int           // serial baud rate
	ReadTimeout time.Duration // serial read timeout, bounds Close latency
	Path        string        // reader source path, "-" for stdin
}

// AcquisitionSettings configures the pipeline core.
type AcquisitionSettings struct {
	SampleRate          int           // device sample rate per channel in Hz
	BytesPerSample      int           // wire sample width, 3 (24-bit) or 2 (legacy)
	QueueCeiling        int           // max pending packets before oldest are dropped
	BatchSize           int           // max packets drained per iteration
	IdleWait            time.Duration // drain loop sleep when the queue is empty
	RingCapacity        int           // samples kept per channel for snapshots
	PlotBits            int           // interpretation bit depth for snapshots, 8..24
	DropSummaryInterval time.Duration // minimum interval between drop summaries
}

// RecordingSettings configures binary recording.
type RecordingSettings struct {
	Enabled   bool   // record every drained packet while capturing
	Path      string // directory for ADCRec_*.bin files
	MinFreeMB int    // refuse to open recordings or WAV files below this much free space, 0 disables
}

// ChannelSettings holds per-channel mixer parameters.
type ChannelSettings struct {
	Gain float64 // linear gain
	Pan  float64 // -1 (left) .. +1 (right)
	Bits int     // input bit depth used to center raw codes, 8..24
}

// MixerSettings configures the audio mixer.
type MixerSettings struct {
	Enabled    bool              // true to run the mixer in the drain fan-out
	InputRate  int               // rate of the mixed stream in Hz
	OutputRate int               // WAV output rate in Hz
	DCBlock    bool              // enable the DC blocking filter
	Channels   []ChannelSettings // per-channel gain, pan and bit depth
	WAV        struct {
		Enabled bool   // write the mix to ADCRecMix_*.wav
		Path    string // directory for WAV files
	}
	Monitor struct {
		Enabled        bool          // play the mix on an audio device
		Backend        string        // malgo, oto or none
		Device         string        // playback device name, empty for system default
		BufferDuration time.Duration // playback buffer length
	}
}

// StatusSettings configures the periodic status report.
type StatusSettings struct {
	Interval time.Duration // 0 disables status reporting
}

// TelemetrySettings configures metrics and error reporting.
type TelemetrySettings struct {
	Prometheus struct {
		Enabled bool   // expose /metrics
		Listen  string // listen address for the metrics endpoint
	}
	Sentry struct {
		DSN string // empty disables error reporting
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment into a validated Settings.
func Load() (*Settings, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file; an empty path searches the default paths.
func LoadFile(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()

	viper.SetEnvPrefix("ADCREC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Defaults apply when no config file exists
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}
	paths = append(paths, filepath.Join(homeDir, ".config", "adcrec"))

	if os.PathSeparator == '/' {
		paths = append(paths, "/etc/adcrec")
	}
	return paths, nil
}

// Setting returns the most recently loaded settings, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// MarshalYAML renders settings as YAML.
func MarshalYAML(settings *Settings) ([]byte, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}

// SaveYAML writes settings to configPath, replacing it atomically.
func SaveYAML(configPath string, settings *Settings) error {
	data, err := MarshalYAML(settings)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempName := tempFile.Name()
	defer os.Remove(tempName)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		return fmt.Errorf("error moving config into place: %w", err)
	}
	return nil
}
