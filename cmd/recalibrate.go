package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/touchmapd/touchmapd/internal/ipc"
	"github.com/touchmapd/touchmapd/internal/ui"
)

var recalibrateCmd = &cobra.Command{
	Use:   "recalibrate",
	Short: "Forget the learned touch device and relearn it",
	Long: `Clear the daemon's learned device identity and restart calibration.
The next touch on the auxiliary display commits a new identity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ipc.NewClient()
		if err != nil {
			return fmt.Errorf("failed to create control client: %w", err)
		}

		if err := client.Recalibrate(); err != nil {
			return fmt.Errorf("recalibrate failed: %w", err)
		}

		fmt.Println(ui.SuccessStyle.Render("✓") + " Calibration reset, touch the auxiliary display to relearn")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recalibrateCmd)
}
