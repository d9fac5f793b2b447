package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/adcrec/cmd/capture"
	"github.com/tphakala/adcrec/cmd/configcmd"
	"github.com/tphakala/adcrec/cmd/devices"
	"github.com/tphakala/adcrec/cmd/replay"
	"github.com/tphakala/adcrec/internal/conf"
	"github.com/tphakala/adcrec/internal/errors"
	"github.com/tphakala/adcrec/internal/logging"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "adcrec",
		Short:         "Multichannel ADC stream recorder",
		Long:          "Capture, record, replay and mix the framed 4-channel sample stream of a serial ADC.",
		Version:       settings.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		logging.Fatal("error setting up flags", "error", err)
	}

	configCmd := configcmd.Command(settings)
	subcommands := []*cobra.Command{
		capture.Command(settings),
		replay.Command(settings),
		devices.Command(),
		configCmd,
	}
	rootCmd.AddCommand(subcommands...)

	var closeLog func() error
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := conf.ValidateSettings(settings); err != nil {
			return err
		}

		var err error
		closeLog, err = logging.Setup(settings)
		if err != nil {
			return fmt.Errorf("error setting up logging: %w", err)
		}

		// Config printing does not need error telemetry
		if cmd.Parent() == configCmd {
			return nil
		}
		return errors.InitSentry(settings.Telemetry.Sentry.DSN, settings.Version)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if closeLog == nil {
			return nil
		}
		return closeLog()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Main.Level, "loglevel", viper.GetString("main.level"), "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().IntVar(&settings.Acquisition.SampleRate, "samplerate", viper.GetInt("acquisition.samplerate"), "Device sample rate per channel in Hz")
	rootCmd.PersistentFlags().IntVar(&settings.Acquisition.BytesPerSample, "bytespersample", viper.GetInt("acquisition.bytespersample"), "Wire sample width: 3 (24-bit) or 2 (legacy 16-bit)")
	rootCmd.PersistentFlags().DurationVar(&settings.Status.Interval, "status", viper.GetDuration("status.interval"), "Status report interval, 0 disables")
	rootCmd.PersistentFlags().BoolVar(&settings.Telemetry.Prometheus.Enabled, "telemetry", viper.GetBool("telemetry.prometheus.enabled"), "Enable Prometheus telemetry endpoint")
	rootCmd.PersistentFlags().StringVar(&settings.Telemetry.Prometheus.Listen, "listen", viper.GetString("telemetry.prometheus.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
