package main

import (
	"errors"
	"fmt"

	"github.com/revolverobotics/gokubi/internal/gatt"
	"github.com/revolverobotics/gokubi/manager"
)

// Command-level errors
var (
	// ErrNoKubiFound indicates a proximity search ended without a device
	// close enough to connect to.
	ErrNoKubiFound = errors.New("no kubi found nearby")

	// ErrTimedOut indicates a command gave up waiting for the engine.
	ErrTimedOut = errors.New("timed out")
)

// FormatUserError turns engine errors into actionable one-line messages.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, gatt.ErrRadioUnavailable):
		return "Bluetooth is unavailable - check that the adapter is present and powered on"
	case errors.Is(err, gatt.ErrServiceResolution):
		return "the device connected but does not look like a Kubi (missing registers)"
	case errors.Is(err, gatt.ErrNotConnected):
		return "not connected to a Kubi"
	case errors.Is(err, ErrNoKubiFound):
		return "no Kubi found nearby - move closer or pass an address with 'connect'"
	default:
		return err.Error()
	}
}

// failureError converts a latched engine failure into a command error.
func failureError(f manager.Failure) error {
	switch f {
	case manager.FailureNone:
		return nil
	case manager.FailureRadioUnavailable:
		return gatt.ErrRadioUnavailable
	case manager.FailureServiceResolution:
		return gatt.ErrServiceResolution
	default:
		return fmt.Errorf("connection failed: %s", f)
	}
}
