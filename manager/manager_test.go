package manager

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/revolverobotics/gokubi/internal/gatt"
	"github.com/revolverobotics/gokubi/internal/testutils"
	"github.com/revolverobotics/gokubi/pkg/config"
)

// recordingDelegate collects engine notifications; fields are only touched on
// the loop.
type recordingDelegate struct {
	found       []*SearchResult
	transitions []Status
	scans       [][]*SearchResult
	failures    []Failure
}

func (d *recordingDelegate) DeviceFound(_ *Manager, result *SearchResult) {
	d.found = append(d.found, result)
}

func (d *recordingDelegate) StatusChanged(_ *Manager, _, newStatus Status) {
	d.transitions = append(d.transitions, newStatus)
}

func (d *recordingDelegate) ScanComplete(_ *Manager, results []*SearchResult) {
	d.scans = append(d.scans, results)
}

func (d *recordingDelegate) Failed(_ *Manager, reason Failure) {
	d.failures = append(d.failures, reason)
}

type ManagerTestSuite struct {
	suite.Suite
	helper   *testutils.TestHelper
	delegate *recordingDelegate
	radio    *testutils.FakeRadio
	cfg      *config.Config
	mgr      *Manager
}

func (suite *ManagerTestSuite) SetupTest() {
	suite.helper = testutils.NewTestHelper(suite.T())
	suite.delegate = &recordingDelegate{}
	suite.radio = &testutils.FakeRadio{AutoConfirm: true}

	suite.cfg = config.DefaultConfig()
	suite.cfg.ScanWindowMS = 30
	suite.cfg.RSSIIntervalMS = 3600000
}

func (suite *ManagerTestSuite) newManager() *Manager {
	suite.mgr = New(suite.helper.Loop, suite.radio, suite.cfg, suite.delegate, suite.helper.Logger)
	return suite.mgr
}

func (suite *ManagerTestSuite) awaitStatus(expected Status, timeout time.Duration) {
	suite.helper.Eventually(func() bool {
		return suite.mgr.Status() == expected
	}, timeout, "engine must reach", expected)
}

func adv(name, address string, rssi int) gatt.Advertisement {
	return gatt.Advertisement{Name: name, Address: address, RSSI: rssi}
}

func (suite *ManagerTestSuite) TestFindAllKubis() {
	// GOAL: Verify a scan-all window filters by name prefix, keeps the first
	// sighting per address, ranks by signal strength and returns to
	// Disconnected without connecting
	//
	// TEST SCENARIO: Five advertisements, two of them noise and one a
	// duplicate → ScanComplete with two ranked results

	suite.radio.Advertisements = []gatt.Advertisement{
		adv("kubi-Alpha", "aa:aa", -50),
		adv("Rev-Bravo", "bb:bb", -40),
		adv("kubi-Alpha", "aa:aa", -10), // repeat sighting, must not refresh
		adv("ku", "cc:cc", -30),         // shorter than any prefix
		adv("Speaker-X", "dd:dd", -20),  // prefix mismatch
	}
	m := suite.newManager()

	suite.helper.Run(m.FindAllKubis)
	suite.awaitStatus(StatusDisconnected, time.Second)

	suite.helper.Run(func() {
		suite.Require().Len(suite.delegate.scans, 1, "the window MUST complete exactly once")
		results := suite.delegate.scans[0]
		suite.Require().Len(results, 2, "only prefixed names MUST survive the filter")
		suite.Equal("Rev-Bravo", results[0].Name(), "results MUST be ranked strongest first")
		suite.Equal("kubi-Alpha", results[1].Name())
		suite.Equal(-50, results[1].RSSI(), "the first sighting MUST win over repeats")

		suite.Equal([]Status{StatusFinding, StatusDisconnected}, suite.delegate.transitions)
		suite.Empty(suite.delegate.failures)
		suite.Equal(FailureNone, m.LastFailure())
	})
	suite.Equal(0, suite.radio.ConnectCount(), "scan-all MUST never connect")
}

func (suite *ManagerTestSuite) TestFindKubiConnectsToNearest() {
	// GOAL: Verify a proximity search picks the strongest qualifying device,
	// announces it and rides the connection up to Connected

	suite.radio.Advertisements = []gatt.Advertisement{
		adv("kubi-Far", "aa:aa", -70),
		adv("kubi-Near", "bb:bb", -38),
	}
	m := suite.newManager()

	suite.helper.Run(m.FindKubi)
	suite.awaitStatus(StatusConnected, time.Second)

	suite.helper.Run(func() {
		suite.Require().Len(suite.delegate.found, 1)
		suite.Equal("kubi-Near", suite.delegate.found[0].Name(), "the strongest device MUST be chosen")
		suite.Equal([]Status{StatusFinding, StatusConnecting, StatusConnected}, suite.delegate.transitions)
		suite.Require().NotNil(m.Kubi())
		suite.True(m.Kubi().Ready())
	})
}

func (suite *ManagerTestSuite) TestFindKubiBelowThresholdGivesUp() {
	// GOAL: Verify a best sighting below the connect threshold ends the
	// search without a failure, the same as an empty harvest

	suite.radio.Advertisements = []gatt.Advertisement{
		adv("kubi-Weak", "aa:aa", -60),
	}
	m := suite.newManager()

	suite.helper.Run(m.FindKubi)
	suite.awaitStatus(StatusDisconnected, time.Second)

	suite.helper.Run(func() {
		suite.Empty(suite.delegate.found, "a below-threshold device MUST NOT be announced")
		suite.Empty(suite.delegate.failures, "giving up is not a failure")
		suite.Equal(FailureNone, m.LastFailure())
	})
	suite.Equal(0, suite.radio.ConnectCount())
}

func (suite *ManagerTestSuite) TestAutoFindRescansUntilStopped() {
	// GOAL: Verify auto-find reopens the window after an empty harvest and
	// StopFinding ends the cycle without failure

	suite.cfg.AutoFind = true
	m := suite.newManager()

	suite.helper.Run(m.FindKubi)
	suite.helper.Eventually(func() bool {
		return suite.radio.ScanCount() >= 3
	}, 2*time.Second, "auto-find must keep rescanning")

	suite.helper.Run(m.StopFinding)
	suite.awaitStatus(StatusDisconnected, time.Second)

	settled := suite.radio.ScanCount()
	time.Sleep(100 * time.Millisecond)
	suite.Equal(settled, suite.radio.ScanCount(), "StopFinding MUST end the rescan cycle")
	suite.helper.Run(func() {
		suite.Empty(suite.delegate.failures)
	})
}

func (suite *ManagerTestSuite) TestScanStartFailure() {
	suite.radio.ScanErr = errors.New("hci busy")
	suite.newManager()

	suite.helper.Run(suite.mgr.FindKubi)
	suite.awaitStatus(StatusDisconnected, time.Second)

	suite.helper.Run(func() {
		suite.Equal([]Failure{FailureScanStartFailed}, suite.delegate.failures)
	})
}

func (suite *ManagerTestSuite) TestRadioUnavailable() {
	suite.radio.ScanErr = fmt.Errorf("%w: powered off", gatt.ErrRadioUnavailable)
	suite.newManager()

	suite.helper.Run(suite.mgr.FindAllKubis)
	suite.awaitStatus(StatusDisconnected, time.Second)

	suite.helper.Run(func() {
		suite.Equal([]Failure{FailureRadioUnavailable}, suite.delegate.failures,
			"a powered-off radio MUST be reported as unavailable")
	})
}

func (suite *ManagerTestSuite) TestServiceResolutionFailure() {
	suite.radio.Advertisements = []gatt.Advertisement{adv("kubi-Bad", "aa:aa", -30)}
	suite.radio.ConnectErr = fmt.Errorf("%w: resolved 3 of 10 registers", gatt.ErrServiceResolution)
	m := suite.newManager()

	suite.helper.Run(m.FindKubi)
	suite.awaitStatus(StatusDisconnected, time.Second)

	suite.helper.Run(func() {
		suite.Equal([]Failure{FailureServiceResolution}, suite.delegate.failures)
		suite.Nil(m.Kubi(), "a failed handle MUST be discarded")
	})
}

func (suite *ManagerTestSuite) TestDeliberateDisconnectCarriesNoFailure() {
	// GOAL: Verify a requested teardown transitions through Disconnecting and
	// never reports ConnectionLost

	m := suite.connectToNearest()

	suite.helper.Run(m.Disconnect)
	suite.awaitStatus(StatusDisconnected, time.Second)

	suite.helper.Run(func() {
		suite.Contains(suite.delegate.transitions, StatusDisconnecting)
		suite.Empty(suite.delegate.failures, "a deliberate disconnect is not a failure")
		suite.Equal(FailureNone, m.LastFailure())
	})
}

func (suite *ManagerTestSuite) TestUnsolicitedDisconnectLatchesConnectionLost() {
	m := suite.connectToNearest()

	suite.radio.LastTransport().FireDisconnected()
	suite.awaitStatus(StatusDisconnected, time.Second)

	suite.helper.Run(func() {
		suite.Equal([]Failure{FailureConnectionLost}, suite.delegate.failures)
		suite.Equal(FailureConnectionLost, m.LastFailure())
	})
}

func (suite *ManagerTestSuite) TestNewEpisodeResetsTheLatch() {
	// GOAL: Verify starting a new search clears the failure latched by the
	// previous episode

	m := suite.connectToNearest()
	suite.radio.LastTransport().FireDisconnected()
	suite.awaitStatus(StatusDisconnected, time.Second)

	suite.helper.Run(func() {
		suite.Equal(FailureConnectionLost, m.LastFailure())
		m.StopFinding() // no-op outside Finding
		m.FindAllKubis()
		suite.Equal(FailureNone, m.LastFailure(), "a new episode MUST start with a clear latch")
	})
	suite.awaitStatus(StatusDisconnected, time.Second)
}

func (suite *ManagerTestSuite) TestAutoDisconnectOnWeakSignal() {
	// GOAL: Verify a reading below the disconnect threshold latches
	// OutOfRange exactly once and tears the connection down
	//
	// TEST SCENARIO: Connected handle reports -95 → Failed(OutOfRange) →
	// teardown ends at Disconnected with no second failure

	suite.cfg.AutoDisconnect = true
	m := suite.connectToNearest()

	suite.radio.LastTransport().PushRSSI(-95, true)
	suite.awaitStatus(StatusDisconnected, time.Second)

	suite.helper.Run(func() {
		suite.Equal([]Failure{FailureOutOfRange}, suite.delegate.failures,
			"the teardown that follows MUST NOT add ConnectionLost")
		suite.Nil(m.Kubi())
	})
}

func (suite *ManagerTestSuite) TestStrongSignalDoesNotDisconnect() {
	suite.cfg.AutoDisconnect = true
	m := suite.connectToNearest()

	suite.radio.LastTransport().PushRSSI(-60, true)
	time.Sleep(50 * time.Millisecond)
	suite.helper.Run(func() {
		suite.Equal(StatusConnected, m.Status())
		suite.Empty(suite.delegate.failures)
	})
}

func (suite *ManagerTestSuite) TestNotificationsMirrorDelegateCalls() {
	// GOAL: Verify the channel stream carries the same episode the delegate
	// saw, for consumers living off the loop

	suite.radio.Advertisements = []gatt.Advertisement{adv("kubi-Near", "aa:aa", -38)}
	m := suite.newManager()

	suite.helper.Run(m.FindKubi)
	suite.awaitStatus(StatusConnected, time.Second)

	var kinds []EventKind
	for len(m.Notifications()) > 0 {
		kinds = append(kinds, (<-m.Notifications()).Kind)
	}
	suite.Contains(kinds, EventDeviceFound)
	suite.Contains(kinds, EventStatusChanged)
}

func (suite *ManagerTestSuite) TestFindReplacesActiveConnection() {
	// GOAL: Verify a new search silently discards the active handle; the old
	// handle's disconnect does not latch ConnectionLost

	m := suite.connectToNearest()

	suite.helper.Run(m.FindAllKubis)
	suite.awaitStatus(StatusDisconnected, time.Second)

	suite.helper.Run(func() {
		suite.Nil(m.Kubi())
		suite.Empty(suite.delegate.failures, "a replaced handle MUST be discarded silently")
	})
}

func (suite *ManagerTestSuite) TestRapidReconnectWindsDownAbandonedHandle() {
	// GOAL: Verify that when ConnectTo is called again before the first
	// deferred dial runs, the abandoned handle's connection is wound down
	// and only the replacing handle stays live
	//
	// TEST SCENARIO: Two ConnectTo calls in one loop turn → both dials
	// complete → exactly one transport is disconnected, the other carries
	// the Connected engine

	m := suite.newManager()
	first := NewSearchResult("kubi-First", "aa:aa", -40)
	second := NewSearchResult("kubi-Second", "bb:bb", -41)

	suite.helper.Run(func() {
		m.ConnectTo(first)
		m.ConnectTo(second)
	})
	suite.awaitStatus(StatusConnected, time.Second)
	suite.helper.Eventually(func() bool {
		return suite.radio.ConnectCount() == 2
	}, time.Second, "both dials MUST run")

	suite.helper.Eventually(func() bool {
		return suite.disconnectOps() == 1
	}, time.Second, "the abandoned handle MUST wind its connection down")

	suite.helper.Run(func() {
		suite.Equal(StatusConnected, m.Status())
		suite.Require().NotNil(m.Kubi())
		suite.True(m.Kubi().Ready(), "the replacing handle MUST stay live")
		suite.Empty(suite.delegate.failures, "winding down the abandoned handle MUST NOT latch a failure")
	})
}

func (suite *ManagerTestSuite) TestDisconnectWhileDialing() {
	// GOAL: Verify Disconnect during an in-flight dial settles the engine at
	// Disconnected instead of waiting forever on a handle that will never
	// report anything
	//
	// TEST SCENARIO: Gate the dial → Disconnect while Connecting → engine
	// settles immediately, and releasing the gate resurfaces nothing

	suite.radio.ConnectGate = make(chan struct{})
	m := suite.newManager()

	suite.helper.Run(func() { m.ConnectTo(NewSearchResult("kubi-Slow", "aa:aa", -40)) })
	suite.helper.Eventually(func() bool { return suite.radio.ConnectCount() == 1 }, time.Second)

	suite.helper.Run(m.Disconnect)
	suite.awaitStatus(StatusDisconnected, time.Second)
	suite.helper.Run(func() {
		suite.Nil(m.Kubi(), "the dialing handle MUST be discarded")
		suite.Empty(suite.delegate.failures)
	})

	close(suite.radio.ConnectGate)
	time.Sleep(50 * time.Millisecond)
	suite.helper.Run(func() {
		suite.Equal(StatusDisconnected, m.Status(), "the aborted dial MUST NOT resurface")
		suite.Nil(m.Kubi())
	})
}

func (suite *ManagerTestSuite) TestDisconnectBeforeDeferredDial() {
	// GOAL: Verify Disconnect in the same loop turn as ConnectTo drops the
	// episode before the deferred dial ever runs

	m := suite.newManager()
	suite.helper.Run(func() {
		m.ConnectTo(NewSearchResult("kubi-Near", "aa:aa", -40))
		m.Disconnect()
	})
	suite.awaitStatus(StatusDisconnected, time.Second)

	time.Sleep(50 * time.Millisecond)
	suite.Equal(0, suite.radio.ConnectCount(), "the deferred dial MUST be dropped")
	suite.helper.Run(func() {
		suite.Nil(m.Kubi())
		suite.Empty(suite.delegate.failures)
	})
}

// disconnectOps counts disconnect operations across every transport the
// radio handed out.
func (suite *ManagerTestSuite) disconnectOps() int {
	var n int
	for _, t := range suite.radio.Transports() {
		n += len(t.OpsOfKind("disconnect"))
	}
	return n
}

// connectToNearest drives the engine to Connected against a single nearby
// device and resets the delegate recording.
func (suite *ManagerTestSuite) connectToNearest() *Manager {
	suite.radio.Advertisements = []gatt.Advertisement{adv("kubi-Near", "aa:aa", -38)}
	m := suite.newManager()

	suite.helper.Run(m.FindKubi)
	suite.awaitStatus(StatusConnected, time.Second)

	suite.helper.Run(func() {
		suite.delegate.transitions = nil
		suite.delegate.failures = nil
		suite.delegate.found = nil
	})
	return m
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}
