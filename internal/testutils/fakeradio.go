package testutils

import (
	"context"
	"sync"

	"github.com/revolverobotics/gokubi/internal/gatt"
)

// FakeRadio replays scripted advertisements and connection outcomes.
type FakeRadio struct {
	mu sync.Mutex

	// Advertisements are streamed to every scan, in order. Entries may
	// repeat to simulate duplicate sightings.
	Advertisements []gatt.Advertisement

	// ScanErr, when set, makes Scan fail immediately.
	ScanErr error

	// ConnectErr, when set, makes Connect fail after ConnectGate opens.
	ConnectErr error

	// Registers returned on successful connect; defaults to the complete
	// register set.
	Registers *gatt.RegisterSet

	// ConnectGate, when non-nil, blocks Connect until closed. Lets tests
	// observe the connecting state before the outcome lands.
	ConnectGate chan struct{}

	// AutoConfirm pre-arms handed-out transports to confirm every dispatch
	// successfully.
	AutoConfirm bool

	transports []*FakeTransport
	scans      int
	connects   int
}

// CompleteRegisterSet returns a register set with every known register
// resolved.
func CompleteRegisterSet() *gatt.RegisterSet {
	regs := gatt.KnownRegisters()
	uuids := make([]string, len(regs))
	for i, r := range regs {
		uuids[i] = string(r)
	}
	return gatt.NewRegisterSet(uuids)
}

// Scan implements gatt.Radio: replay the script, then block until the window
// closes the context.
func (r *FakeRadio) Scan(ctx context.Context, handler func(gatt.Advertisement)) error {
	r.mu.Lock()
	r.scans++
	advs := append([]gatt.Advertisement(nil), r.Advertisements...)
	err := r.ScanErr
	r.mu.Unlock()

	if err != nil {
		return err
	}
	for _, adv := range advs {
		if ctx.Err() != nil {
			return nil
		}
		handler(adv)
	}
	<-ctx.Done()
	return nil
}

// Connect implements gatt.Radio, handing back a FakeTransport wired to
// events.
func (r *FakeRadio) Connect(ctx context.Context, address string, events gatt.TransportEvents) (gatt.Transport, *gatt.RegisterSet, error) {
	r.mu.Lock()
	r.connects++
	gate := r.ConnectGate
	err := r.ConnectErr
	regs := r.Registers
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, nil, err
	}
	if regs == nil {
		regs = CompleteRegisterSet()
	}

	t := NewFakeTransport(events)
	r.mu.Lock()
	if r.AutoConfirm {
		t.autoConfirm = true
	}
	r.transports = append(r.transports, t)
	r.mu.Unlock()
	return t, regs, nil
}

// Close implements gatt.Radio.
func (r *FakeRadio) Close() error { return nil }

// ScanCount returns how many scan windows were opened.
func (r *FakeRadio) ScanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scans
}

// ConnectCount returns how many connects were attempted.
func (r *FakeRadio) ConnectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connects
}

// Transports returns every transport handed out, in connect order.
func (r *FakeRadio) Transports() []*FakeTransport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*FakeTransport(nil), r.transports...)
}

// LastTransport returns the transport handed out by the most recent connect.
func (r *FakeRadio) LastTransport() *FakeTransport {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.transports) == 0 {
		return nil
	}
	return r.transports[len(r.transports)-1]
}
