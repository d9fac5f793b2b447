package capture

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/adcrec/internal/acquisition"
	"github.com/tphakala/adcrec/internal/conf"
)

// Command creates a new command for live capture.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture the live ADC stream",
		Long: "Read the framed sample stream from a serial port or a file, optionally recording it, " +
			"archiving the stereo mix to WAV and playing it on an audio device, until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return acquisition.Capture(ctx, settings)
		},
	}

	// Set up flags specific to the 'capture' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the capture command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Source.Type, "source", viper.GetString("source.type"), "Byte source: serial or reader")
	cmd.Flags().StringVarP(&settings.Source.Port, "port", "p", viper.GetString("source.port"), "Serial port name, e.g. /dev/ttyACM0 or COM3")
	cmd.Flags().IntVar(&settings.Source.BaudRate, "baud", viper.GetInt("source.baudrate"), "Serial baud rate")
	cmd.Flags().StringVar(&settings.Source.Path, "input", viper.GetString("source.path"), "Input file for the reader source, - for stdin")
	cmd.Flags().BoolVarP(&settings.Recording.Enabled, "record", "r", viper.GetBool("recording.enabled"), "Record the stream to ADCRec_*.bin")
	cmd.Flags().StringVar(&settings.Recording.Path, "recordpath", viper.GetString("recording.path"), "Directory for recordings")
	cmd.Flags().BoolVarP(&settings.Mixer.WAV.Enabled, "wav", "w", viper.GetBool("mixer.wav.enabled"), "Archive the stereo mix to ADCRecMix_*.wav")
	cmd.Flags().BoolVarP(&settings.Mixer.Monitor.Enabled, "monitor", "m", viper.GetBool("mixer.monitor.enabled"), "Play the mix on an audio device")
	cmd.Flags().StringVar(&settings.Mixer.Monitor.Backend, "backend", viper.GetString("mixer.monitor.backend"), "Monitor backend: malgo, oto or none")
	cmd.Flags().StringVar(&settings.Mixer.Monitor.Device, "device", viper.GetString("mixer.monitor.device"), "Playback device name, empty for the system default")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
