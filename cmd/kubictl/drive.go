package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/revolverobotics/gokubi/kubi"
)

// gestureKeys maps drive-mode keys to gesture names.
var gestureKeys = map[byte]string{
	'b': "bow",
	'n': "nod",
	'h': "shake",
	's': "scan",
}

// driveCmd represents the drive command
var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Drive the mount from the keyboard",
	Long: `Connect to a Kubi and steer it interactively:

  arrow keys  pan and tilt in steps
  c           recenter (pan 0, tilt 0)
  b/n/h/s     play bow / nod / shake / scan
  q or Ctrl+C quit`,
	RunE: runDrive,
}

var (
	driveAddress string
	driveName    string
	driveStep    float64
)

func init() {
	driveCmd.Flags().StringVar(&driveAddress, "address", "", "Connect to this address instead of searching")
	driveCmd.Flags().StringVar(&driveName, "name", "", "Device name used with --address")
	driveCmd.Flags().Float64Var(&driveStep, "step", 5, "Degrees per key press")
}

func runDrive(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	k, err := s.acquire(driveAddress, driveName)
	if err != nil {
		return err
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("drive requires an interactive terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	fmt.Printf("Driving %s - arrows steer, c centers, q quits\r\n", k.ID())

	var pan, tilt float64
	clampAngle := func(v float64) float64 {
		if v < -150 {
			return -150
		}
		if v > 150 {
			return 150
		}
		return v
	}

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			break
		}

		var dPan, dTilt float64
		switch {
		case n == 1 && (buf[0] == 'q' || buf[0] == 3): // q or Ctrl+C
			s.run(func() { k.Move(0, 0) })
			s.disconnect()
			return nil
		case n == 1 && buf[0] == 'c':
			pan, tilt = 0, 0
		case n == 1 && gestureKeys[buf[0]] != "":
			g, _ := kubi.ParseGesture(gestureKeys[buf[0]])
			s.run(func() { k.PerformGesture(g) })
			continue
		case n == 3 && buf[0] == 0x1B && buf[1] == '[':
			switch buf[2] {
			case 'A': // up
				dTilt = driveStep
			case 'B': // down
				dTilt = -driveStep
			case 'C': // right
				dPan = driveStep
			case 'D': // left
				dPan = -driveStep
			default:
				continue
			}
		default:
			continue
		}

		pan = clampAngle(pan + dPan)
		tilt = clampAngle(tilt + dTilt)
		target := struct{ p, t float64 }{pan, tilt}
		s.run(func() { k.Move(target.p, target.t) })
		fmt.Printf("\rpan %6.1f  tilt %6.1f   ", pan, tilt)
	}

	s.disconnect()
	return nil
}
