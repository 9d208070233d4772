package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// moveCmd represents the move command
var moveCmd = &cobra.Command{
	Use:   "move <pan> <tilt>",
	Short: "Point the mount at a pan/tilt position",
	Long: `Connect to a Kubi and move it to the given pan and tilt angles in
degrees. Pan is positive to the right, tilt positive upward. By default both
axes are speed-scaled to finish together; --no-smooth runs them at the same
speed instead.`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

var (
	moveAddress string
	moveName    string
	moveSpeed   float64
	moveNoSmooth bool
)

func init() {
	moveCmd.Flags().StringVar(&moveAddress, "address", "", "Connect to this address instead of searching")
	moveCmd.Flags().StringVar(&moveName, "name", "", "Device name used with --address")
	moveCmd.Flags().Float64Var(&moveSpeed, "speed", 0, "Motion speed (0 uses the configured default)")
	moveCmd.Flags().BoolVar(&moveNoSmooth, "no-smooth", false, "Disable speed scaling across axes")
}

func runMove(cmd *cobra.Command, args []string) error {
	pan, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid pan angle %q: %w", args[0], err)
	}
	tilt, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid tilt angle %q: %w", args[1], err)
	}
	if pan < -150 || pan > 150 || tilt < -150 || tilt > 150 {
		return fmt.Errorf("angles must be within [-150, 150] degrees")
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	k, err := s.acquire(moveAddress, moveName)
	if err != nil {
		return err
	}

	speed := moveSpeed
	if speed <= 0 {
		speed = s.cfg.DefaultSpeed
	}

	s.run(func() { k.MoveTo(pan, tilt, speed, !moveNoSmooth) })
	s.waitIdle(k, 10*time.Second)

	fmt.Printf("Moved %s to pan %.1f, tilt %.1f\n", k.ID(), pan, tilt)
	s.disconnect()
	return nil
}
