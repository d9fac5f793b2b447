package replay

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

// Command creates a new command for replaying a recording.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Replay a recording through the pipeline",
		Long: "Feed an ADCRec_*.bin recording through the framer at the original packet rate. " +
			"Without a file argument the newest recording in the recording directory is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return acquisition.ReplayFile(ctx, settings, path)
		},
	}

	// Set up flags specific to the 'replay' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the replay command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Recording.Path, "recordpath", viper.GetString("recording.path"), "Directory searched for the newest recording")
	cmd.Flags().BoolVarP(&settings.Mixer.WAV.Enabled, "wav", "w", viper.GetBool("mixer.wav.enabled"), "Archive the stereo mix to ADCRecMix_*.wav")
	cmd.Flags().BoolVarP(&settings.Mixer.Monitor.Enabled, "monitor", "m", viper.GetBool("mixer.monitor.enabled"), "Play the mix on an audio device")
	cmd.Flags().StringVar(&settings.Mixer.Monitor.Backend, "backend", viper.GetString("mixer.monitor.backend"), "Monitor backend: malgo, oto or none")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
