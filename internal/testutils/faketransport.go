package testutils

import (
	"sync"

	"github.com/revolverobotics/gokubi/internal/gatt"
)

// FakeOp is one operation dispatched to a FakeTransport.
type FakeOp struct {
	Kind    string // "write", "read", "rssi", "disconnect"
	Reg     gatt.Register
	Payload []byte
}

// FakeTransport records dispatched operations and lets the test drive
// confirmations by hand. It never confirms on its own, so tests control
// exactly when the queue advances.
type FakeTransport struct {
	mu     sync.Mutex
	ops    []FakeOp
	events gatt.TransportEvents

	autoConfirm bool
	readValues  map[gatt.Register][]byte
	rssiValue   int

	// DispatchErr, when set, is returned by every dispatch method to
	// simulate local rejection.
	DispatchErr error
}

// NewFakeTransport creates a transport reporting confirmations to events.
func NewFakeTransport(events gatt.TransportEvents) *FakeTransport {
	return &FakeTransport{events: events}
}

// SetAutoConfirm makes every subsequent dispatch confirm successfully on its
// own, so tests that only care about the end state need not drive each
// confirmation by hand.
func (f *FakeTransport) SetAutoConfirm(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoConfirm = on
}

// SetReadValue supplies the value auto-confirmed reads return for reg.
func (f *FakeTransport) SetReadValue(reg gatt.Register, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readValues == nil {
		f.readValues = make(map[gatt.Register][]byte)
	}
	f.readValues[reg] = value
}

// SetRSSIValue supplies the reading auto-confirmed RSSI reads return.
func (f *FakeTransport) SetRSSIValue(rssi int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rssiValue = rssi
}

// WriteRegister implements gatt.Transport.
func (f *FakeTransport) WriteRegister(reg gatt.Register, payload []byte) error {
	if f.DispatchErr != nil {
		return f.DispatchErr
	}
	f.record(FakeOp{Kind: "write", Reg: reg, Payload: append([]byte(nil), payload...)})

	f.mu.Lock()
	auto := f.autoConfirm
	f.mu.Unlock()
	if auto && f.events != nil {
		f.events.WriteConfirmed(reg, true)
	}
	return nil
}

// ReadRegister implements gatt.Transport.
func (f *FakeTransport) ReadRegister(reg gatt.Register) error {
	if f.DispatchErr != nil {
		return f.DispatchErr
	}
	f.record(FakeOp{Kind: "read", Reg: reg})

	f.mu.Lock()
	auto := f.autoConfirm
	value := f.readValues[reg]
	f.mu.Unlock()
	if auto && f.events != nil {
		f.events.ReadConfirmed(reg, value, true)
	}
	return nil
}

// ReadRSSI implements gatt.Transport.
func (f *FakeTransport) ReadRSSI() error {
	if f.DispatchErr != nil {
		return f.DispatchErr
	}
	f.record(FakeOp{Kind: "rssi"})

	f.mu.Lock()
	auto := f.autoConfirm
	rssi := f.rssiValue
	f.mu.Unlock()
	if auto && f.events != nil {
		f.events.RSSIRead(rssi, true)
	}
	return nil
}

// Disconnect implements gatt.Transport. The Disconnected event fires
// synchronously.
func (f *FakeTransport) Disconnect() error {
	f.record(FakeOp{Kind: "disconnect"})
	if f.events != nil {
		f.events.Disconnected()
	}
	return nil
}

func (f *FakeTransport) record(op FakeOp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

// Ops returns a snapshot of every dispatched operation in order.
func (f *FakeTransport) Ops() []FakeOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeOp(nil), f.ops...)
}

// OpsOfKind returns the dispatched operations of one kind, in order.
func (f *FakeTransport) OpsOfKind(kind string) []FakeOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FakeOp
	for _, op := range f.ops {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

// LastOp returns the most recently dispatched operation.
func (f *FakeTransport) LastOp() (FakeOp, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ops) == 0 {
		return FakeOp{}, false
	}
	return f.ops[len(f.ops)-1], true
}

// Reset discards the recorded operations.
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = nil
}

// ConfirmWrite reports a write outcome through the events sink.
func (f *FakeTransport) ConfirmWrite(reg gatt.Register, ok bool) {
	f.events.WriteConfirmed(reg, ok)
}

// ConfirmRead reports a read outcome through the events sink.
func (f *FakeTransport) ConfirmRead(reg gatt.Register, value []byte, ok bool) {
	f.events.ReadConfirmed(reg, value, ok)
}

// PushRSSI reports a signal-strength reading through the events sink.
func (f *FakeTransport) PushRSSI(rssi int, ok bool) {
	f.events.RSSIRead(rssi, ok)
}

// FireDisconnected simulates an unsolicited connection loss.
func (f *FakeTransport) FireDisconnected() {
	f.events.Disconnected()
}
