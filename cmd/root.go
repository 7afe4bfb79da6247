package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	rootCmd = &cobra.Command{
		Use:   "touchmapd",
		Short: "touchmapd - touch display remapping daemon",
		Long: `touchmapd corrects touch input for an auxiliary touch display.
It observes pointer events system-wide, learns which input device the
touch display is, suppresses its mis-mapped events and re-delivers them
at the correct on-screen position.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)
}
