package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/revolverobotics/gokubi/internal/gatt"
	"github.com/revolverobotics/gokubi/internal/goble"
	"github.com/revolverobotics/gokubi/internal/runloop"
	"github.com/revolverobotics/gokubi/kubi"
	"github.com/revolverobotics/gokubi/manager"
	"github.com/revolverobotics/gokubi/pkg/config"
)

// newRadio creates the production radio (can be overridden in tests)
var newRadio = func(logger *logrus.Logger) (gatt.Radio, error) {
	return goble.New(logger)
}

// session wires a command to a running engine: loop, radio, manager, and the
// mirrored event stream. One session per command invocation.
type session struct {
	cfg    *config.Config
	logger *logrus.Logger
	loop   *runloop.Loop
	radio  gatt.Radio
	mgr    *manager.Manager
}

// newSession builds and starts the engine from the command's flags.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg := config.DefaultConfig()
	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	// Arguments are valid past this point; runtime failures should not
	// print usage.
	cmd.SilenceUsage = true

	radio, err := newRadio(logger)
	if err != nil {
		return nil, err
	}

	loop := runloop.New()
	loop.Start()

	s := &session{
		cfg:    cfg,
		logger: logger,
		loop:   loop,
		radio:  radio,
	}
	s.run(func() {
		s.mgr = manager.New(loop, radio, cfg, nil, logger)
	})
	return s, nil
}

// Close tears the engine down. Safe after partial construction.
func (s *session) Close() {
	if s.mgr != nil {
		s.run(s.mgr.Close)
	}
	if s.radio != nil {
		_ = s.radio.Close()
	}
	s.loop.Stop()
}

// run executes fn on the loop and waits for it to finish.
func (s *session) run(fn func()) {
	s.loop.Post(fn)
	s.loop.Sync()
}

// waitEvent consumes mirrored events until pred accepts one or the deadline
// passes.
func (s *session) waitEvent(timeout time.Duration, pred func(manager.Event) bool) (manager.Event, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case ev, ok := <-s.mgr.Notifications():
			if !ok {
				return manager.Event{}, fmt.Errorf("engine closed")
			}
			if pred(ev) {
				return ev, nil
			}
		case <-deadline.C:
			return manager.Event{}, ErrTimedOut
		}
	}
}

// findTimeout bounds one proximity search: the scan window, the dial, and
// slack for the loop turnaround.
func (s *session) findTimeout() time.Duration {
	return s.cfg.ScanWindow() + s.cfg.ConnectTimeout() + 5*time.Second
}

// connectNearest runs a proximity search and waits for the engine to settle
// on Connected or Disconnected.
func (s *session) connectNearest() (*kubi.Kubi, error) {
	s.run(s.mgr.FindKubi)
	return s.awaitConnected(s.findTimeout())
}

// connectTo dials a known address directly.
func (s *session) connectTo(name, address string) (*kubi.Kubi, error) {
	result := manager.NewSearchResult(name, address, 0)
	s.run(func() { s.mgr.ConnectTo(result) })
	return s.awaitConnected(s.cfg.ConnectTimeout() + 5*time.Second)
}

// awaitConnected resolves the current episode to a handle or an error.
func (s *session) awaitConnected(timeout time.Duration) (*kubi.Kubi, error) {
	ev, err := s.waitEvent(timeout, func(ev manager.Event) bool {
		if ev.Kind != manager.EventStatusChanged {
			return false
		}
		return ev.NewStatus == manager.StatusConnected || ev.NewStatus == manager.StatusDisconnected
	})
	if err != nil {
		// Give up cleanly so the engine is idle before Close.
		s.run(func() {
			s.mgr.StopFinding()
			s.mgr.Disconnect()
		})
		return nil, err
	}

	if ev.NewStatus == manager.StatusDisconnected {
		var failure manager.Failure
		s.run(func() { failure = s.mgr.LastFailure() })
		if err := failureError(failure); err != nil {
			return nil, err
		}
		return nil, ErrNoKubiFound
	}

	var k *kubi.Kubi
	s.run(func() { k = s.mgr.Kubi() })
	if k == nil {
		return nil, fmt.Errorf("connected but no device handle")
	}
	return k, nil
}

// acquire connects by explicit address when one was given, otherwise by
// proximity search.
func (s *session) acquire(address, name string) (*kubi.Kubi, error) {
	if address != "" {
		return s.connectTo(name, address)
	}
	return s.connectNearest()
}

// waitIdle polls until the handle's operation queue has fully drained, so
// submitted writes reach the device before the session disconnects.
func (s *session) waitIdle(k *kubi.Kubi, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var idle bool
		s.run(func() { idle = k.Idle() })
		if idle {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// disconnect requests a teardown and waits for it to complete.
func (s *session) disconnect() {
	s.run(s.mgr.Disconnect)
	_, _ = s.waitEvent(5*time.Second, func(ev manager.Event) bool {
		return ev.Kind == manager.EventStatusChanged && ev.NewStatus == manager.StatusDisconnected
	})
}
