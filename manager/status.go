package manager

// Status is the engine's connection lifecycle state.
type Status int

const (
	// StatusDisconnected means no connection and no activity.
	StatusDisconnected Status = iota
	// StatusDisconnecting means a deliberate teardown is in flight.
	StatusDisconnecting
	// StatusFinding means a discovery window is open.
	StatusFinding
	// StatusConnecting means a dial plus register resolution is in flight.
	StatusConnecting
	// StatusConnected means a device is connected and ready.
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusDisconnecting:
		return "disconnecting"
	case StatusFinding:
		return "finding"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Failure classifies why an episode ended abnormally. At most one failure is
// reported per episode; the first one latches and later ones are dropped
// until the next find or connect attempt resets the latch.
type Failure int

const (
	// FailureNone means no failure has latched this episode.
	FailureNone Failure = iota
	// FailureConnectionLost means an established connection ended without a
	// disconnect request.
	FailureConnectionLost
	// FailureOutOfRange means the signal dropped below the disconnect
	// threshold and the connection was torn down.
	FailureOutOfRange
	// FailureRadioUnavailable means the adapter is missing or disabled.
	FailureRadioUnavailable
	// FailureScanStartFailed means discovery could not be started.
	FailureScanStartFailed
	// FailureServiceResolution means the device was reached but its
	// register banks were absent.
	FailureServiceResolution
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureConnectionLost:
		return "connection lost"
	case FailureOutOfRange:
		return "out of range"
	case FailureRadioUnavailable:
		return "radio unavailable"
	case FailureScanStartFailed:
		return "scan start failed"
	case FailureServiceResolution:
		return "service resolution failed"
	default:
		return "unknown"
	}
}
