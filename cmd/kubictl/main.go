package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kubictl",
	Short: "Kubi pan/tilt mount control tool",
	Long: `Command-line tool for Kubi BLE pan/tilt robotic mounts:

- Scan for nearby Kubi devices and rank them by signal strength
- Find and connect to the nearest Kubi automatically
- Point the mount at a pan/tilt position, smoothly or per axis
- Play built-in gestures (bow, nod, shake, scan)
- Set the indicator color and read battery and servo status
- Drive the mount interactively from the keyboard`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(gestureCmd)
	rootCmd.AddCommand(colorCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(driveCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
