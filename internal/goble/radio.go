// Package goble implements the gatt.Radio interface on top of the go-ble
// stack. It owns the adapter, runs discovery, and turns go-ble's synchronous
// client calls into the asynchronous confirmation model the operation queue
// expects.
package goble

import (
	"context"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/revolverobotics/gokubi/internal/gatt"
)

// Radio is the production gatt.Radio over a go-ble adapter.
type Radio struct {
	dev    ble.Device
	logger *logrus.Logger
}

// New acquires the adapter. A missing or disabled adapter surfaces as
// gatt.ErrRadioUnavailable.
func New(logger *logrus.Logger) (*Radio, error) {
	if logger == nil {
		logger = logrus.New()
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, gatt.NormalizeError(err)
	}
	ble.SetDefaultDevice(dev)
	return &Radio{dev: dev, logger: logger}, nil
}

// Scan implements gatt.Radio. Duplicate advertisements are allowed through;
// deduplication is the caller's concern.
func (r *Radio) Scan(ctx context.Context, handler func(gatt.Advertisement)) error {
	err := r.dev.Scan(ctx, true, func(adv ble.Advertisement) {
		handler(gatt.Advertisement{
			Name:    adv.LocalName(),
			Address: adv.Addr().String(),
			RSSI:    adv.RSSI(),
		})
	})
	if err != nil && ctx.Err() == nil {
		return gatt.NormalizeError(err)
	}
	return nil
}

// Connect implements gatt.Radio: dial, discover the full profile, and map the
// discovered characteristics onto the register banks. A device that connects
// but lacks any expected register yields gatt.ErrServiceResolution.
func (r *Radio) Connect(ctx context.Context, address string, events gatt.TransportEvents) (gatt.Transport, *gatt.RegisterSet, error) {
	r.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", address, gatt.NormalizeError(err))
	}

	r.logger.WithField("address", address).Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			r.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection after discovery failure")
		}
		return nil, nil, fmt.Errorf("%w: %v", gatt.ErrServiceResolution, err)
	}

	chars := make(map[gatt.Register]*ble.Characteristic)
	var uuids []string
	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			uuid := char.UUID.String()
			uuids = append(uuids, uuid)
			reg := gatt.Register(gatt.NormalizeUUID(uuid))
			if _, ok := gatt.Lookup(reg); ok {
				chars[reg] = char
			}
		}
	}

	regs := gatt.NewRegisterSet(uuids)
	if !regs.Complete() {
		r.logger.WithFields(logrus.Fields{
			"address":  address,
			"resolved": regs.Len(),
			"expected": len(gatt.KnownRegisters()),
		}).Error("Device is missing expected registers")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			r.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection after resolution failure")
		}
		return nil, nil, fmt.Errorf("%w: resolved %d of %d registers",
			gatt.ErrServiceResolution, regs.Len(), len(gatt.KnownRegisters()))
	}

	t := newTransport(client, chars, events, r.logger)

	r.logger.WithFields(logrus.Fields{
		"address":   address,
		"registers": regs.Len(),
	}).Info("BLE device connected")
	return t, regs, nil
}

// Close releases the adapter.
func (r *Radio) Close() error {
	return r.dev.Stop()
}
