package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/touchmapd/touchmapd/internal/config"
	"github.com/touchmapd/touchmapd/internal/setup"
	"github.com/touchmapd/touchmapd/internal/ui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive configuration",
	Long: `Walk through touchmapd configuration: pick the display geometry
source, name the touch output and optionally pin the touch input
device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		wizard := setup.NewWizard()
		if err := wizard.Run(); err != nil {
			return err
		}

		fmt.Println(ui.SuccessStyle.Render("✓") + " Setup complete, start the daemon with 'touchmapd run'")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
