package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/revolverobotics/gokubi/internal/gatt"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show battery and servo status",
	Long: `Connect to a Kubi and read its status registers: battery level and
charge state, servo error flags, and the last button press. The current
signal strength is shown as well.`,
	RunE: runStatus,
}

var (
	statusAddress string
	statusName    string
)

func init() {
	statusCmd.Flags().StringVar(&statusAddress, "address", "", "Connect to this address instead of searching")
	statusCmd.Flags().StringVar(&statusName, "name", "", "Device name used with --address")
}

// statusRegisters are read in this order; the queue serializes them anyway.
var statusRegisters = []gatt.Register{
	gatt.RegBattery,
	gatt.RegBatteryStatus,
	gatt.RegServoError,
	gatt.RegServoErrorID,
	gatt.RegButton,
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	k, err := s.acquire(statusAddress, statusName)
	if err != nil {
		return err
	}

	values := make(map[gatt.Register][]byte)
	s.run(func() {
		k.SetValueObserver(func(reg gatt.Register, value []byte) {
			values[reg] = append([]byte(nil), value...)
		})
		k.RequestBattery()
		k.RequestBatteryStatus()
		k.RequestServoError()
		k.RequestServoErrorID()
		k.RequestButton()
	})

	// Reads confirm one at a time; poll until all five landed.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var got int
		s.run(func() { got = len(values) })
		if got == len(statusRegisters) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	var rssi int
	s.run(func() { rssi = k.RSSI() })

	heading := color.New(color.FgCyan, color.Bold)
	heading.Printf("Kubi %s\n", k.ID())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name\t%s\n", k.Name())
	fmt.Fprintf(w, "Address\t%s\n", k.Address())
	fmt.Fprintf(w, "RSSI\t%d dBm\n", rssi)
	s.run(func() {
		fmt.Fprintf(w, "Battery\t%s\n", formatByteRegister(values[gatt.RegBattery], "%d%%"))
		fmt.Fprintf(w, "Battery state\t%s\n", formatByteRegister(values[gatt.RegBatteryStatus], "code %d"))
		fmt.Fprintf(w, "Servo error\t%s\n", formatByteRegister(values[gatt.RegServoError], "0x%02X"))
		fmt.Fprintf(w, "Servo error id\t%s\n", formatByteRegister(values[gatt.RegServoErrorID], "%d"))
		fmt.Fprintf(w, "Button\t%s\n", formatByteRegister(values[gatt.RegButton], "%d"))
	})
	if err := w.Flush(); err != nil {
		return err
	}

	s.disconnect()
	return nil
}

// formatByteRegister renders the first byte of a register value, or a dash
// when the read never confirmed.
func formatByteRegister(value []byte, format string) string {
	if len(value) == 0 {
		return "-"
	}
	return fmt.Sprintf(format, value[0])
}
