// Package manager implements the connection engine: discovery, ranking,
// proximity-based connection, and the lifecycle state machine around a single
// active Kubi handle.
package manager

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/revolverobotics/gokubi/internal/gatt"
	"github.com/revolverobotics/gokubi/internal/groutine"
	"github.com/revolverobotics/gokubi/internal/ringchan"
	"github.com/revolverobotics/gokubi/internal/runloop"
	"github.com/revolverobotics/gokubi/kubi"
	"github.com/revolverobotics/gokubi/pkg/config"
)

// Delegate receives engine notifications. Every call is made on the owning
// loop; implementations must not block.
type Delegate interface {
	// DeviceFound fires when a proximity search settles on a device, just
	// before the engine starts connecting to it.
	DeviceFound(m *Manager, result *SearchResult)

	// StatusChanged fires on every lifecycle transition.
	StatusChanged(m *Manager, oldStatus, newStatus Status)

	// ScanComplete fires when a FindAllKubis window closes, with the
	// ranked results.
	ScanComplete(m *Manager, results []*SearchResult)

	// Failed fires at most once per episode, with the first failure.
	Failed(m *Manager, reason Failure)
}

// EventKind discriminates mirrored engine events.
type EventKind int

const (
	// EventStatusChanged mirrors Delegate.StatusChanged.
	EventStatusChanged EventKind = iota
	// EventDeviceFound mirrors Delegate.DeviceFound.
	EventDeviceFound
	// EventScanComplete mirrors Delegate.ScanComplete.
	EventScanComplete
	// EventFailed mirrors Delegate.Failed.
	EventFailed
	// EventRSSIUpdated carries a connected signal-strength reading.
	EventRSSIUpdated
)

// Event is one mirrored engine notification. Only the fields relevant to the
// Kind are populated.
type Event struct {
	Kind      EventKind
	OldStatus Status
	NewStatus Status
	Failure   Failure
	Result    *SearchResult
	Results   []*SearchResult
	RSSI      int
}

// scanKind selects what happens when a discovery window closes.
type scanKind int

const (
	scanNearest scanKind = iota
	scanAll
)

// scanRun is the state of one discovery window. A fresh value per window
// makes stale completions (a canceled window's timer or goroutine) cheap to
// detect by pointer identity.
type scanRun struct {
	kind      scanKind
	cancel    context.CancelFunc
	window    *runloop.Timer
	sightings *hashmap.Map[string, *SearchResult]
}

// Manager drives discovery and owns at most one Kubi handle at a time.
//
// All exported methods must be called on the owning loop.
type Manager struct {
	loop     *runloop.Loop
	radio    gatt.Radio
	cfg      *config.Config
	logger   *logrus.Logger
	delegate Delegate

	status  Status
	failure Failure
	kubi    *kubi.Kubi

	scan *scanRun

	events *ringchan.RingChannel[Event]
}

// notificationDepth bounds the mirrored event channel; the oldest events are
// dropped when the consumer lags.
const notificationDepth = 64

// New creates an engine in the disconnected state.
func New(loop *runloop.Loop, radio gatt.Radio, cfg *config.Config, delegate Delegate, logger *logrus.Logger) *Manager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		loop:     loop,
		radio:    radio,
		cfg:      cfg,
		logger:   logger,
		delegate: delegate,
		status:   StatusDisconnected,
		failure:  FailureNone,
		events:   ringchan.New[Event](notificationDepth),
	}
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status { return m.status }

// LastFailure returns the failure latched this episode, or FailureNone.
func (m *Manager) LastFailure() Failure { return m.failure }

// Kubi returns the current handle, or nil outside Connecting/Connected.
func (m *Manager) Kubi() *kubi.Kubi { return m.kubi }

// Notifications returns the mirrored event stream. It is safe to receive
// from any goroutine; slow consumers lose the oldest events.
func (m *Manager) Notifications() <-chan Event { return m.events.C() }

// FindAllKubis opens one discovery window and reports every matching device
// through ScanComplete. An active connection or search is torn down first.
func (m *Manager) FindAllKubis() {
	m.failure = FailureNone
	m.teardown()
	m.startScan(scanAll)
}

// FindKubi searches for the nearest device and connects to it if its signal
// clears the connect threshold. With AutoFind enabled the search repeats
// until a device qualifies or StopFinding is called. An active connection or
// search is torn down first.
func (m *Manager) FindKubi() {
	m.failure = FailureNone
	m.teardown()
	m.startScan(scanNearest)
}

// ConnectTo connects to a previously discovered device, replacing any active
// connection or search. The latch resets: this starts a new episode.
func (m *Manager) ConnectTo(result *SearchResult) {
	m.failure = FailureNone
	m.teardown()
	m.setStatus(StatusConnecting)

	// The dial is deferred one loop turn so the caller observes the
	// Connecting transition before any connection event can land.
	m.loop.Post(func() {
		if m.status != StatusConnecting {
			// Torn down before the deferred dial ran.
			return
		}
		m.kubi = kubi.New(m.loop, m.radio, result.Name(), result.Address(), m, kubi.Options{
			DefaultSpeed:   m.cfg.DefaultSpeed,
			RSSIInterval:   m.cfg.RSSIInterval(),
			ConnectTimeout: m.cfg.ConnectTimeout(),
		}, m.logger)
	})
}

// Disconnect requests a deliberate teardown of the active connection. The
// eventual transition to Disconnected carries no failure. Outside
// Connecting/Connected this is a no-op; use StopFinding to end a search.
func (m *Manager) Disconnect() {
	if m.kubi == nil {
		// Connecting with the dial still deferred: drop the episode so the
		// deferred closure's status guard discards it.
		if m.status == StatusConnecting {
			m.setStatus(StatusDisconnected)
		}
		return
	}

	// A handle still dialing has no link to wind down and its aborted dial
	// surfaces no event; discard it and settle now.
	if !m.kubi.Ready() {
		old := m.kubi
		m.kubi = nil
		old.Disconnect()
		m.setStatus(StatusDisconnected)
		return
	}

	m.setStatus(StatusDisconnecting)
	m.kubi.Disconnect()
}

// StopFinding ends an active search without failure.
func (m *Manager) StopFinding() {
	if m.status != StatusFinding {
		return
	}
	m.cancelScan()
	m.setStatus(StatusDisconnected)
}

// Close tears everything down and closes the notification stream.
func (m *Manager) Close() {
	m.teardown()
	m.setStatus(StatusDisconnected)
	m.events.Close()
}

// teardown silently discards any active scan or handle. Handle events from a
// discarded handle no longer match m.kubi and are ignored.
func (m *Manager) teardown() {
	m.cancelScan()
	if m.kubi != nil {
		old := m.kubi
		m.kubi = nil
		old.Disconnect()
	}
}

// setStatus applies a lifecycle transition and notifies. Same-state
// transitions are dropped.
func (m *Manager) setStatus(next Status) {
	if m.status == next {
		return
	}
	old := m.status
	m.status = next
	m.logger.WithFields(logrus.Fields{
		"from": old,
		"to":   next,
	}).Debug("Kubi manager status changed")

	if m.delegate != nil {
		m.delegate.StatusChanged(m, old, next)
	}
	m.events.Send(Event{Kind: EventStatusChanged, OldStatus: old, NewStatus: next})
}

// fail latches and reports a failure. Only the first failure of an episode
// is reported; the rest are dropped.
func (m *Manager) fail(reason Failure) {
	if m.failure != FailureNone {
		m.logger.WithFields(logrus.Fields{
			"latched": m.failure,
			"dropped": reason,
		}).Debug("Kubi failure already latched")
		return
	}
	m.failure = reason
	m.logger.WithField("reason", reason).Warn("Kubi engine failure")

	if m.delegate != nil {
		m.delegate.Failed(m, reason)
	}
	m.events.Send(Event{Kind: EventFailed, Failure: reason})
}

// startScan opens one discovery window. The radio scan blocks, so it runs on
// its own goroutine; sightings are recorded concurrently and harvested when
// the window timer fires on the loop.
func (m *Manager) startScan(kind scanKind) {
	ctx, cancel := context.WithCancel(context.Background())
	run := &scanRun{
		kind:      kind,
		cancel:    cancel,
		sightings: hashmap.New[string, *SearchResult](),
	}
	m.scan = run
	m.setStatus(StatusFinding)

	groutine.Go(ctx, "kubi-scan", func(ctx context.Context) {
		err := m.radio.Scan(ctx, func(adv gatt.Advertisement) {
			m.recordSighting(run, adv)
		})
		if err != nil && ctx.Err() == nil {
			m.loop.Post(func() { m.scanFailed(run, err) })
		}
	})

	run.window = m.loop.PostDelayed(m.cfg.ScanWindow(), func() {
		m.finishScan(run)
	})
}

// cancelScan discards the active window, if any.
func (m *Manager) cancelScan() {
	if m.scan == nil {
		return
	}
	m.scan.window.Cancel()
	m.scan.cancel()
	m.scan = nil
}

// recordSighting filters and deduplicates one advertisement. It runs on the
// radio's goroutine; the concurrent map makes that safe without handing
// every advertisement to the loop.
func (m *Manager) recordSighting(run *scanRun, adv gatt.Advertisement) {
	if !m.matchesPrefix(adv.Name) {
		return
	}
	// First sighting wins; repeat advertisements within the window do not
	// refresh the recorded signal strength.
	run.sightings.Insert(adv.Address, NewSearchResult(adv.Name, adv.Address, adv.RSSI))
}

// matchesPrefix reports whether an advertised name identifies a Kubi. Names
// shorter than the shortest prefix never match.
func (m *Manager) matchesPrefix(name string) bool {
	if len(name) < 4 {
		return false
	}
	lower := strings.ToLower(name)
	for _, prefix := range m.cfg.NamePrefixes {
		if strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// scanFailed handles a scan that could not run. Stale runs are ignored.
func (m *Manager) scanFailed(run *scanRun, err error) {
	if m.scan != run {
		return
	}
	m.cancelScan()

	m.logger.WithError(err).Error("Kubi scan failed to start")
	if errors.Is(err, gatt.ErrRadioUnavailable) {
		m.fail(FailureRadioUnavailable)
	} else {
		m.fail(FailureScanStartFailed)
	}
	m.setStatus(StatusDisconnected)
}

// finishScan closes the window and acts on the harvest. Stale runs are
// ignored.
func (m *Manager) finishScan(run *scanRun) {
	if m.scan != run {
		return
	}
	run.cancel()
	m.scan = nil

	results := make([]*SearchResult, 0, run.sightings.Len())
	run.sightings.Range(func(_ string, r *SearchResult) bool {
		results = append(results, r)
		return true
	})
	sort.Slice(results, func(i, j int) bool {
		return results[i].RSSI() > results[j].RSSI()
	})

	m.logger.WithField("count", len(results)).Debug("Kubi scan window closed")

	if run.kind == scanAll {
		if m.delegate != nil {
			m.delegate.ScanComplete(m, results)
		}
		m.events.Send(Event{Kind: EventScanComplete, Results: results})
		m.setStatus(StatusDisconnected)
		return
	}

	// Nearest mode: an empty harvest and a best device below the connect
	// threshold are handled the same way.
	if len(results) > 0 && results[0].RSSI() > m.cfg.ConnectRSSI {
		best := results[0]
		if m.delegate != nil {
			m.delegate.DeviceFound(m, best)
		}
		m.events.Send(Event{Kind: EventDeviceFound, Result: best})
		m.ConnectTo(best)
		return
	}

	if m.cfg.AutoFind {
		m.loop.PostDelayed(m.cfg.AutoScanDelay(), func() {
			if m.status == StatusFinding && m.scan == nil {
				m.startScan(scanNearest)
			}
		})
		return
	}
	m.setStatus(StatusDisconnected)
}

// kubi.Events implementation. Events from handles discarded by teardown no
// longer match m.kubi and are dropped.

// KubiReady implements kubi.Events.
func (m *Manager) KubiReady(k *kubi.Kubi) {
	if k != m.kubi {
		// A handle replaced mid-dial still established a link; wind it
		// down so only the current handle holds a connection.
		k.Disconnect()
		return
	}
	m.setStatus(StatusConnected)
}

// KubiResolutionFailed implements kubi.Events.
func (m *Manager) KubiResolutionFailed(k *kubi.Kubi) {
	if k != m.kubi {
		return
	}
	m.kubi = nil
	m.fail(FailureServiceResolution)
	m.setStatus(StatusDisconnected)
}

// KubiDisconnected implements kubi.Events.
func (m *Manager) KubiDisconnected(k *kubi.Kubi) {
	if k != m.kubi {
		return
	}
	m.kubi = nil

	// A teardown we asked for is not a failure.
	if m.status != StatusDisconnecting {
		m.fail(FailureConnectionLost)
	}
	m.setStatus(StatusDisconnected)
}

// KubiRSSIUpdated implements kubi.Events.
func (m *Manager) KubiRSSIUpdated(k *kubi.Kubi, rssi int) {
	if k != m.kubi {
		return
	}
	m.events.Send(Event{Kind: EventRSSIUpdated, RSSI: rssi})

	if m.cfg.AutoDisconnect && rssi < m.cfg.DisconnectRSSI {
		m.logger.WithFields(logrus.Fields{
			"rssi":      rssi,
			"threshold": m.cfg.DisconnectRSSI,
		}).Warn("Kubi signal below disconnect threshold")
		m.fail(FailureOutOfRange)
		m.Disconnect()
	}
}
