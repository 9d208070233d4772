package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/revolverobotics/gokubi/kubi"
)

// gestureCmd represents the gesture command
var gestureCmd = &cobra.Command{
	Use:   "gesture <bow|nod|shake|scan>",
	Short: "Play a built-in gesture",
	Long: `Connect to a Kubi and play one of its scripted gestures:

  bow    lean forward and back up
  nod    nod the head twice
  shake  shake the head side to side
  scan   sweep the full pan range`,
	Args: cobra.ExactArgs(1),
	RunE: runGesture,
}

var (
	gestureAddress string
	gestureName    string
)

func init() {
	gestureCmd.Flags().StringVar(&gestureAddress, "address", "", "Connect to this address instead of searching")
	gestureCmd.Flags().StringVar(&gestureName, "name", "", "Device name used with --address")
}

func runGesture(cmd *cobra.Command, args []string) error {
	g, ok := kubi.ParseGesture(args[0])
	if !ok {
		return fmt.Errorf("unknown gesture %q: must be one of bow, nod, shake, scan", args[0])
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	k, err := s.acquire(gestureAddress, gestureName)
	if err != nil {
		return err
	}

	fmt.Printf("Playing %s on %s\n", g, k.ID())
	s.run(func() { k.PerformGesture(g) })

	// Steps are one-shot timers; wait for the last one, then for its
	// writes to drain.
	time.Sleep(g.Duration() + 500*time.Millisecond)
	s.waitIdle(k, 10*time.Second)

	s.disconnect()
	return nil
}
