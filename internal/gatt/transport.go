package gatt

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Operation errors surfaced by transports.
var (
	// ErrRadioUnavailable indicates the radio adapter is missing or disabled.
	ErrRadioUnavailable = errors.New("radio unavailable")

	// ErrServiceResolution indicates the peripheral is reachable but the
	// expected register banks were not found after connecting.
	ErrServiceResolution = errors.New("register banks not resolved")

	// ErrNotConnected indicates an operation was dispatched on a transport
	// whose underlying channel is not ready.
	ErrNotConnected = errors.New("not connected")
)

// Advertisement is a single sighting of a peripheral during a scan window.
// Instances are only valid for the duration of that window; consumers must
// not retain them past it.
type Advertisement struct {
	Name    string
	Address string
	RSSI    int
}

// Transport is the attribute-addressed wire channel to one connected
// peripheral. Dispatch methods return immediately; an error return means the
// operation was rejected locally and no completion will follow. Successful
// dispatches confirm asynchronously through the TransportEvents sink
// registered at connect time.
type Transport interface {
	// WriteRegister dispatches an asynchronous register write.
	WriteRegister(reg Register, payload []byte) error

	// ReadRegister dispatches an asynchronous register read.
	ReadRegister(reg Register) error

	// ReadRSSI dispatches an asynchronous signal-strength read.
	ReadRSSI() error

	// Disconnect tears the connection down. The TransportEvents sink
	// receives Disconnected once the teardown completes.
	Disconnect() error
}

// TransportEvents receives asynchronous completions and lifecycle events
// from a Transport. Calls arrive on arbitrary goroutines; implementations
// must repost onto their owning loop before mutating state.
type TransportEvents interface {
	// WriteConfirmed reports the outcome of the outstanding register write.
	WriteConfirmed(reg Register, ok bool)

	// ReadConfirmed reports the outcome of the outstanding register read,
	// with the observed value on success.
	ReadConfirmed(reg Register, value []byte, ok bool)

	// RSSIRead reports the outcome of the outstanding signal-strength read.
	RSSIRead(rssi int, ok bool)

	// Disconnected reports that the connection ended, intentionally or not.
	Disconnected()
}

// Radio abstracts the wireless adapter: discovery plus connection
// establishment. The production implementation lives in internal/goble.
type Radio interface {
	// Scan streams advertisements to handler until ctx is canceled. The
	// call may block for a non-trivial duration and must be run off the
	// owning loop. A context cancellation is a normal end of scan, not an
	// error.
	Scan(ctx context.Context, handler func(Advertisement)) error

	// Connect dials the peripheral, resolves its register banks, and
	// returns a ready Transport bound to events. It blocks until the
	// connection is established or fails. A reachable peripheral without
	// the expected banks yields ErrServiceResolution.
	Connect(ctx context.Context, address string, events TransportEvents) (Transport, *RegisterSet, error)

	// Close releases the adapter.
	Close() error
}

// NormalizeError maps known radio error strings onto the package sentinels
// so callers can match with errors.Is regardless of platform phrasing.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	switch {
	case containsIgnoreCase(msg, "is bluetooth turned on?"):
		return fmt.Errorf("%w: %v", ErrRadioUnavailable, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", ErrRadioUnavailable, err)
	case containsIgnoreCase(msg, "no bluetooth adapter"):
		return fmt.Errorf("%w: %v", ErrRadioUnavailable, err)
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	default:
		return err
	}
}

// containsIgnoreCase checks the substring case-insensitively.
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
