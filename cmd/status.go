package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/touchmapd/touchmapd/internal/ipc"
	"github.com/touchmapd/touchmapd/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the running daemon",
	Long:  `Query the running daemon over its control socket and print the pipeline state, flight recorder statistics and watchdog health.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := ipc.NewClient()
		if err != nil {
			return fmt.Errorf("failed to create control client: %w", err)
		}

		status, err := client.GetStatus()
		if err != nil {
			fmt.Println("touchmapd is not running")
			return nil
		}

		var output strings.Builder

		output.WriteString(ui.FormatAppHeader(status.Version))
		output.WriteString("\n\n")

		healthLine := "running"
		if !status.Running {
			healthLine = "stopped"
		} else if !status.Watchdog.Healthy {
			healthLine = "unhealthy"
		}
		output.WriteString(ui.FormatHealth(status.Running && status.Watchdog.Healthy, healthLine))
		output.WriteString("\n\n")

		output.WriteString(ui.FormatField("Permission", status.Permission))
		output.WriteString("\n")
		output.WriteString(ui.FormatField("Calibration", status.Calibration))
		output.WriteString("\n")
		if status.LearnedDevice != nil {
			output.WriteString(ui.FormatField("Touch device", fmt.Sprintf("/dev/input/event%d", *status.LearnedDevice)))
		} else {
			output.WriteString(ui.FormatField("Touch device", "not yet learned"))
		}
		output.WriteString("\n")
		output.WriteString(ui.FormatField("Uptime", status.Uptime.Truncate(time.Second).String()))
		output.WriteString("\n\n")

		output.WriteString(ui.FormatField("Events/s", fmt.Sprintf("%.1f", status.Recorder.EventsPerSecond)))
		output.WriteString("\n")
		output.WriteString(ui.FormatField("Recorded", fmt.Sprintf("%d/%d", status.Recorder.Size, status.Recorder.Capacity)))
		output.WriteString("\n")
		output.WriteString(ui.FormatField("Dropped", fmt.Sprintf("%d", status.Recorder.TotalDropped)))
		output.WriteString("\n")
		if status.Recorder.AverageLatencyMs != nil {
			output.WriteString(ui.FormatField("Avg latency", fmt.Sprintf("%.2fms", *status.Recorder.AverageLatencyMs)))
			output.WriteString("\n")
		}
		if status.Watchdog.DisableCount > 0 {
			output.WriteString(ui.WarningStyle.Render(
				fmt.Sprintf("Session recreated %d time(s)", status.Watchdog.DisableCount)))
			output.WriteString("\n")
		}

		output.WriteString("\n")
		output.WriteString(ui.CreateSeparator(50, "─"))
		output.WriteString("\n")
		output.WriteString(ui.SubtleStyle.Render("Use 'touchmapd debug' for the live event view"))
		output.WriteString("\n")
		output.WriteString(ui.SubtleStyle.Render("Use 'touchmapd recalibrate' to relearn the touch device"))

		fmt.Println(output.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
