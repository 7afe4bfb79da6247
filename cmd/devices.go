package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/touchmapd/touchmapd/internal/setup"
	"github.com/touchmapd/touchmapd/internal/ui"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List pointer input devices",
	Long: `List every evdev device that can act as a pointer. Absolute devices
(touchscreens, tablets) are the learning candidates; relative devices
pass through untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := setup.ListPointerDevices()
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}

		if len(devices) == 0 {
			fmt.Println(ui.WarningStyle.Render("No pointer devices found"))
			fmt.Println(ui.SubtleStyle.Render("Check that your user can read /dev/input/event*"))
			return nil
		}

		fmt.Println(ui.BoldStyle.Render("Pointer devices"))
		for _, dev := range devices {
			marker := "  "
			if dev.Absolute {
				marker = ui.InfoStyle.Render("▸ ")
			}
			fmt.Printf("%s%s\n", marker, dev.Descriptive)
		}
		fmt.Println()
		fmt.Println(ui.SubtleStyle.Render("▸ absolute devices are eligible to be learned as the touch display"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
