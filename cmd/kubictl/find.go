package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// findCmd represents the find command
var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find and connect to the nearest Kubi",
	Long: `Search for the nearest Kubi and connect to it if its signal strength
clears the connect threshold. With --auto the search repeats until a device
qualifies.`,
	RunE: runFind,
}

var findAuto bool

func init() {
	findCmd.Flags().BoolVar(&findAuto, "auto", false, "Keep scanning until a Kubi qualifies")
}

func runFind(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if findAuto {
		s.cfg.AutoFind = true
	}

	progress := NewProgressPrinter("Searching for the nearest Kubi", s.cfg.ScanWindow())
	progress.Start()
	k, err := s.connectNearest()
	progress.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("Connected to %s (id %s, address %s)\n", k.Name(), k.ID(), k.Address())
	s.disconnect()
	return nil
}

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <address>",
	Short: "Connect to a Kubi by address",
	Long: `Connect directly to a Kubi at a known address, skipping discovery.
The command verifies the device resolves as a Kubi and then disconnects.`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

var connectName string

func init() {
	connectCmd.Flags().StringVar(&connectName, "name", "", "Device name used for display and id derivation")
}

func runConnect(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	k, err := s.connectTo(connectName, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Connected to %s (id %s, address %s)\n", k.Name(), k.ID(), k.Address())
	s.disconnect()
	return nil
}
