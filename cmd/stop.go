package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/touchmapd/touchmapd/internal/ipc"
	"github.com/touchmapd/touchmapd/internal/ui"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Long:  `Ask the running daemon to release the touch device and shut down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ipc.NewClient()
		if err != nil {
			return fmt.Errorf("failed to create control client: %w", err)
		}

		if err := client.Stop(); err != nil {
			fmt.Println(ui.WarningStyle.Render("touchmapd is not running"))
			return nil
		}

		fmt.Println(ui.SuccessStyle.Render("✓") + " touchmapd stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
