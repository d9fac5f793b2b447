// Package configcmd implements the config command group.
package configcmd

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/adcrec/internal/conf"
)

// Command creates the config command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or save the effective configuration",
	}
	cmd.AddCommand(dumpCommand(settings), saveCommand(settings))
	return cmd
}

func dumpCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := conf.MarshalYAML(settings)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func saveCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "save <path>",
		Short: "Write the effective configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.SaveYAML(args[0], settings); err != nil {
				return err
			}
			cmd.Printf("configuration saved to %s\n", args[0])
			return nil
		},
	}
}
