// Package kubi provides the handle for one connected Kubi pan/tilt
// peripheral: motion commands, indicator color, gestures, status-register
// reads, and the signal-strength monitor. Handles are created and owned by
// the manager package; use manager.Manager to connect and disconnect.
package kubi

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/revolverobotics/gokubi/internal/gatt"
	"github.com/revolverobotics/gokubi/internal/groutine"
	"github.com/revolverobotics/gokubi/internal/runloop"
)

// Events receives lifecycle notifications from a Kubi handle. The manager
// implements this; every call is made on the owning loop.
type Events interface {
	// KubiReady fires once the register banks are fully resolved and the
	// handle accepts commands.
	KubiReady(k *Kubi)

	// KubiResolutionFailed fires when the peripheral was reached but the
	// expected register banks are absent. The handle is unusable.
	KubiResolutionFailed(k *Kubi)

	// KubiDisconnected fires when the connection ends, whether requested
	// or not.
	KubiDisconnected(k *Kubi)

	// KubiRSSIUpdated fires on each successful signal-strength poll.
	KubiRSSIUpdated(k *Kubi, rssi int)
}

// Options configures a handle at creation time.
type Options struct {
	// DefaultSpeed is the motion speed, in degrees/second units, used by
	// Move and by gestures.
	DefaultSpeed float64

	// RSSIInterval is the cadence of the signal-strength monitor.
	RSSIInterval time.Duration

	// ConnectTimeout bounds the dial plus register resolution.
	ConnectTimeout time.Duration
}

// DefaultOptions returns the stock handle options.
func DefaultOptions() Options {
	return Options{
		DefaultSpeed:   0.89,
		RSSIInterval:   3 * time.Second,
		ConnectTimeout: 30 * time.Second,
	}
}

// Kubi is the handle for one active connection. It owns one operation queue
// and the resolved register set, and caches the last commanded pan/tilt.
// The cache is optimistic: it is updated at submission, not confirmation.
//
// All exported methods must be called on the owning loop unless noted.
type Kubi struct {
	loop   *runloop.Loop
	logger *logrus.Logger
	events Events
	opts   Options

	name    string
	address string

	transport gatt.Transport
	queue     *gatt.OperationQueue
	regs      *gatt.RegisterSet

	lastPan  float64
	lastTilt float64
	rssi     int

	rssiTimer *runloop.Timer
	closed    bool

	dialCancel context.CancelFunc

	valueObserver func(reg gatt.Register, value []byte)
}

// New creates a handle and starts connecting to the peripheral at address.
// Dialing blocks for a while, so it runs off the loop; the outcome is posted
// back and surfaces through events.
func New(loop *runloop.Loop, radio gatt.Radio, name, address string, events Events, opts Options, logger *logrus.Logger) *Kubi {
	if logger == nil {
		logger = logrus.New()
	}

	k := &Kubi{
		loop:    loop,
		logger:  logger,
		events:  events,
		opts:    opts,
		name:    name,
		address: address,
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	k.dialCancel = cancel

	groutine.Go(ctx, "kubi-connect", func(ctx context.Context) {
		transport, regs, err := radio.Connect(ctx, address, k)
		loop.Post(func() { k.dialDone(transport, regs, err) })
	})

	return k
}

// dialDone finishes connection setup on the loop.
func (k *Kubi) dialDone(transport gatt.Transport, regs *gatt.RegisterSet, err error) {
	k.dialCancel()

	if k.closed {
		// The manager already replaced or tore down this handle.
		if transport != nil {
			_ = transport.Disconnect()
		}
		return
	}

	if err != nil {
		if errors.Is(err, gatt.ErrServiceResolution) {
			k.logger.WithFields(logrus.Fields{
				"address": k.address,
				"error":   err,
			}).Error("Kubi register banks could not be resolved")
			k.events.KubiResolutionFailed(k)
			return
		}
		k.logger.WithFields(logrus.Fields{
			"address": k.address,
			"error":   err,
		}).Warn("Kubi connection failed")
		k.events.KubiDisconnected(k)
		return
	}

	k.transport = transport
	k.regs = regs
	k.queue = gatt.NewOperationQueue(k.loop, transport, k.logger)
	k.queue.SetValueObserver(k.registerValueRead)

	k.logger.WithFields(logrus.Fields{
		"name":      k.name,
		"address":   k.address,
		"registers": regs.Len(),
	}).Info("Kubi connected")

	k.events.KubiReady(k)
	k.requestRSSI()
}

// Disconnect tears the handle down. The eventual KubiDisconnected event
// confirms completion; calling Disconnect on a torn-down handle is a no-op.
func (k *Kubi) Disconnect() {
	if k.closed {
		return
	}
	k.closed = true

	if k.rssiTimer != nil {
		k.rssiTimer.Cancel()
		k.rssiTimer = nil
	}

	if k.transport != nil {
		if err := k.transport.Disconnect(); err != nil {
			k.logger.WithError(err).Warn("Kubi disconnect request failed")
		}
		return
	}

	// Still dialing: abort the attempt.
	k.dialCancel()
}

// Ready reports whether the handle accepts commands.
func (k *Kubi) Ready() bool {
	return k.queue != nil && !k.closed
}

// Idle reports whether no register operation is queued or outstanding.
func (k *Kubi) Idle() bool {
	return k.queue == nil || k.queue.Idle()
}

// Name returns the advertised device name.
func (k *Kubi) Name() string { return k.name }

// Address returns the peripheral address.
func (k *Kubi) Address() string { return k.address }

// ID returns the short device id: the last 6 characters of the name.
func (k *Kubi) ID() string {
	if len(k.name) <= 6 {
		return k.name
	}
	return k.name[len(k.name)-6:]
}

// Pan returns the last commanded pan angle. Optimistic: updated at
// submission, not confirmation.
func (k *Kubi) Pan() float64 { return k.lastPan }

// Tilt returns the last commanded tilt angle, with the same optimism.
func (k *Kubi) Tilt() float64 { return k.lastTilt }

// RSSI returns the most recent signal-strength reading.
func (k *Kubi) RSSI() int { return k.rssi }

// Registers returns the resolved register set.
func (k *Kubi) Registers() *gatt.RegisterSet { return k.regs }

// SetValueObserver registers the callback that receives status-register
// values from RequestBattery and friends. Called on the loop.
func (k *Kubi) SetValueObserver(fn func(reg gatt.Register, value []byte)) {
	k.valueObserver = fn
}

// RequestBattery queues a read of the battery level register.
func (k *Kubi) RequestBattery() { k.submitRead(gatt.RegBattery) }

// RequestBatteryStatus queues a read of the battery status register.
func (k *Kubi) RequestBatteryStatus() { k.submitRead(gatt.RegBatteryStatus) }

// RequestServoError queues a read of the servo error register.
func (k *Kubi) RequestServoError() { k.submitRead(gatt.RegServoError) }

// RequestServoErrorID queues a read of the servo error id register.
func (k *Kubi) RequestServoErrorID() { k.submitRead(gatt.RegServoErrorID) }

// RequestButton queues a read of the button register.
func (k *Kubi) RequestButton() { k.submitRead(gatt.RegButton) }

func (k *Kubi) submitRead(reg gatt.Register) {
	if !k.Ready() {
		return
	}
	k.queue.SubmitRead(reg)
}

// registerValueRead delivers observed register values to the external
// observer. Runs on the loop via the queue.
func (k *Kubi) registerValueRead(reg gatt.Register, value []byte) {
	if k.valueObserver != nil {
		k.valueObserver(reg, value)
	}
}

// requestRSSI dispatches a signal-strength read; the next poll is scheduled
// from its completion.
func (k *Kubi) requestRSSI() {
	if k.closed || k.transport == nil {
		return
	}
	if err := k.transport.ReadRSSI(); err != nil {
		k.logger.WithError(err).Debug("RSSI read rejected")
		// Keep the monitor alive; retry on the normal cadence.
		k.scheduleRSSIPoll()
	}
}

func (k *Kubi) scheduleRSSIPoll() {
	if k.closed {
		return
	}
	k.rssiTimer = k.loop.PostDelayed(k.opts.RSSIInterval, k.requestRSSI)
}

// TransportEvents implementation. Calls arrive on transport goroutines and
// are posted onto the loop.

// WriteConfirmed implements gatt.TransportEvents.
func (k *Kubi) WriteConfirmed(reg gatt.Register, ok bool) {
	k.loop.Post(func() {
		if k.queue != nil {
			k.queue.WriteConfirmed(reg, ok)
		}
	})
}

// ReadConfirmed implements gatt.TransportEvents.
func (k *Kubi) ReadConfirmed(reg gatt.Register, value []byte, ok bool) {
	k.loop.Post(func() {
		if k.queue != nil {
			k.queue.ReadConfirmed(reg, value, ok)
		}
	})
}

// RSSIRead implements gatt.TransportEvents.
func (k *Kubi) RSSIRead(rssi int, ok bool) {
	k.loop.Post(func() {
		if ok {
			k.rssi = rssi
			k.logger.WithFields(logrus.Fields{
				"address": k.address,
				"rssi":    rssi,
			}).Debug("Kubi RSSI updated")
			k.events.KubiRSSIUpdated(k, rssi)
		}
		k.scheduleRSSIPoll()
	})
}

// Disconnected implements gatt.TransportEvents.
func (k *Kubi) Disconnected() {
	k.loop.Post(func() {
		k.closed = true
		if k.rssiTimer != nil {
			k.rssiTimer.Cancel()
			k.rssiTimer = nil
		}
		k.queue = nil
		k.transport = nil
		k.logger.WithField("address", k.address).Info("Kubi disconnected")
		k.events.KubiDisconnected(k)
	})
}
