package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/touchmapd/touchmapd/internal/ipc"
	"github.com/touchmapd/touchmapd/internal/ui"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Live diagnostics view",
	Long: `Open a live view of the remap pipeline: calibration state, event
rate, watchdog health and the flight recorder's recent entries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ipc.NewClientWithTimeout(2 * time.Second)
		if err != nil {
			return fmt.Errorf("failed to create control client: %w", err)
		}
		if !client.IsRunning() {
			return fmt.Errorf("touchmapd is not running, start it with 'touchmapd run'")
		}

		model := ui.NewDebugModel(client)
		p := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("debug view failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
}
