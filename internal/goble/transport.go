package goble

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/revolverobotics/gokubi/internal/gatt"
	"github.com/revolverobotics/gokubi/internal/groutine"
)

// opBacklogDepth bounds operations accepted ahead of the worker. The
// operation queue keeps at most one register operation outstanding, so the
// backlog only ever holds that plus an occasional RSSI read.
const opBacklogDepth = 8

// transport adapts a synchronous ble.Client to the asynchronous confirmation
// model of gatt.Transport. A single worker goroutine executes client calls in
// dispatch order and reports each outcome through the events sink.
type transport struct {
	client ble.Client
	chars  map[gatt.Register]*ble.Characteristic
	events gatt.TransportEvents
	logger *logrus.Logger

	ops    chan func()
	ctx    context.Context
	cancel context.CancelFunc

	closed     atomic.Bool
	notifyOnce sync.Once
}

func newTransport(client ble.Client, chars map[gatt.Register]*ble.Characteristic, events gatt.TransportEvents, logger *logrus.Logger) *transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &transport{
		client: client,
		chars:  chars,
		events: events,
		logger: logger,
		ops:    make(chan func(), opBacklogDepth),
		ctx:    ctx,
		cancel: cancel,
	}

	groutine.Go(ctx, "ble-transport", func(ctx context.Context) {
		for {
			select {
			case op := <-t.ops:
				op()
			case <-ctx.Done():
				return
			}
		}
	})

	// CoreBluetooth reports unsolicited disconnections through the client's
	// Disconnected channel; not every platform client has one.
	if disc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(ctx, "ble-disconnect-monitor", func(ctx context.Context) {
			select {
			case <-disc.Disconnected():
				t.logger.Warn("BLE client reported disconnection")
				t.notifyDisconnected()
			case <-ctx.Done():
			}
		})
	} else {
		t.logger.Debug("Client does not support Disconnected() channel (non-Darwin platform?)")
	}

	return t
}

// notifyDisconnected stops the worker and delivers the Disconnected event
// exactly once, no matter how many teardown paths race.
func (t *transport) notifyDisconnected() {
	t.closed.Store(true)
	t.cancel()
	t.notifyOnce.Do(func() {
		t.events.Disconnected()
	})
}

// dispatch hands one client call to the worker. A rejection means no
// completion will follow.
func (t *transport) dispatch(op func()) error {
	if t.closed.Load() {
		return gatt.ErrNotConnected
	}
	select {
	case t.ops <- op:
		return nil
	case <-t.ctx.Done():
		return gatt.ErrNotConnected
	default:
		return fmt.Errorf("operation backlog full")
	}
}

// WriteRegister implements gatt.Transport. The write is issued with response
// so the client call's return doubles as the wire confirmation.
func (t *transport) WriteRegister(reg gatt.Register, payload []byte) error {
	char, ok := t.chars[reg]
	if !ok {
		return fmt.Errorf("register %s not resolved", reg)
	}
	return t.dispatch(func() {
		err := gatt.NormalizeError(t.client.WriteCharacteristic(char, payload, false))
		if err != nil {
			t.logger.WithFields(logrus.Fields{
				"register": reg,
				"error":    err,
			}).Warn("Register write failed")
		}
		t.events.WriteConfirmed(reg, err == nil)
	})
}

// ReadRegister implements gatt.Transport.
func (t *transport) ReadRegister(reg gatt.Register) error {
	char, ok := t.chars[reg]
	if !ok {
		return fmt.Errorf("register %s not resolved", reg)
	}
	return t.dispatch(func() {
		value, err := t.client.ReadCharacteristic(char)
		if err != nil {
			t.logger.WithFields(logrus.Fields{
				"register": reg,
				"error":    gatt.NormalizeError(err),
			}).Warn("Register read failed")
			t.events.ReadConfirmed(reg, nil, false)
			return
		}
		t.events.ReadConfirmed(reg, value, true)
	})
}

// ReadRSSI implements gatt.Transport.
func (t *transport) ReadRSSI() error {
	return t.dispatch(func() {
		t.events.RSSIRead(t.client.ReadRSSI(), true)
	})
}

// Disconnect implements gatt.Transport.
func (t *transport) Disconnect() error {
	if t.closed.Swap(true) {
		return nil
	}
	err := t.client.CancelConnection()
	t.notifyDisconnected()
	return err
}
