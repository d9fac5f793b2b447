package devices

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/adcrec/internal/mixer"
	"github.com/tphakala/adcrec/internal/source"
)

// Command creates a new command listing serial ports and playback devices.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List serial ports and audio playback devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return list(cmd.OutOrStdout(), source.NewLister(source.DefaultListTTL).Ports, mixer.ListPlaybackDevices)
		},
	}
}

func list(w io.Writer, serialPorts func() ([]string, error), playback func() ([]mixer.DeviceInfo, error)) error {
	ports, err := serialPorts()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Serial ports:")
	if len(ports) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, p := range ports {
		fmt.Fprintf(w, "  %s\n", p)
	}

	devices, err := playback()
	if err != nil {
		// Serial capture works without audio output
		fmt.Fprintf(w, "Playback devices: unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintln(w, "Playback devices:")
	if len(devices) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, d := range devices {
		marker := ""
		if d.IsDefault {
			marker = " (default)"
		}
		fmt.Fprintf(w, "  %d: %s%s\n", d.Index, d.Name, marker)
	}
	return nil
}
