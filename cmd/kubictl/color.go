package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// colorCmd represents the color command
var colorCmd = &cobra.Command{
	Use:   "color <red> <green> <blue>",
	Short: "Set the indicator color",
	Long:  `Connect to a Kubi and set its status indicator to an RGB color (0-255 per channel).`,
	Args:  cobra.ExactArgs(3),
	RunE:  runColor,
}

var (
	colorAddress string
	colorName    string
)

func init() {
	colorCmd.Flags().StringVar(&colorAddress, "address", "", "Connect to this address instead of searching")
	colorCmd.Flags().StringVar(&colorName, "name", "", "Device name used with --address")
}

func parseChannel(arg string) (byte, error) {
	v, err := strconv.ParseUint(arg, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid channel value %q: must be 0-255", arg)
	}
	return byte(v), nil
}

func runColor(cmd *cobra.Command, args []string) error {
	red, err := parseChannel(args[0])
	if err != nil {
		return err
	}
	green, err := parseChannel(args[1])
	if err != nil {
		return err
	}
	blue, err := parseChannel(args[2])
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	k, err := s.acquire(colorAddress, colorName)
	if err != nil {
		return err
	}

	s.run(func() { k.SetIndicatorColor(red, green, blue) })
	s.waitIdle(k, 5*time.Second)

	fmt.Printf("Indicator on %s set to #%02X%02X%02X\n", k.ID(), red, green, blue)
	s.disconnect()
	return nil
}
