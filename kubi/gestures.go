package kubi

import "time"

// Gesture names a scripted multi-step motion sequence.
type Gesture int

const (
	// GestureBow bows the head forward and back up.
	GestureBow Gesture = iota
	// GestureNod nods the head.
	GestureNod
	// GestureShake shakes the head.
	GestureShake
	// GestureScan sweeps the room.
	GestureScan
)

var gestureNames = map[string]Gesture{
	"bow":   GestureBow,
	"nod":   GestureNod,
	"shake": GestureShake,
	"scan":  GestureScan,
}

// ParseGesture resolves a gesture by name: bow, nod, shake or scan.
func ParseGesture(name string) (Gesture, bool) {
	g, ok := gestureNames[name]
	return g, ok
}

func (g Gesture) String() string {
	for name, v := range gestureNames {
		if v == g {
			return name
		}
	}
	return "unknown"
}

// gestureDelayUnit scales gesture step delays; tests shrink it.
var gestureDelayUnit = time.Millisecond

// Duration returns the time from scheduling until the final step fires.
func (g Gesture) Duration() time.Duration {
	var last int
	switch g {
	case GestureBow:
		last = 1650
	case GestureNod:
		last = 1100
	case GestureShake:
		last = 1250
	case GestureScan:
		last = 11000
	}
	return time.Duration(last) * gestureDelayUnit
}

// PerformGesture schedules the gesture's steps on the shared loop timeline.
// Each step is an independent one-shot timer: steps are not chained, so a
// second gesture or a manual move issued mid-gesture interleaves its writes
// with the remaining steps at the operation queue. There is no cancellation
// once the steps are scheduled.
func (k *Kubi) PerformGesture(g Gesture) {
	switch g {
	case GestureBow:
		k.bow()
	case GestureNod:
		k.nod()
	case GestureShake:
		k.shake()
	case GestureScan:
		k.scanRoom()
	}
}

// step schedules one gesture move after the given number of delay units. The
// closure reads cached positions at fire time, so steps track moves that land
// in between.
func (k *Kubi) step(units int, move func()) {
	k.loop.PostDelayed(time.Duration(units)*gestureDelayUnit, move)
}

func (k *Kubi) bow() {
	k.step(200, func() { k.MoveTo(k.lastPan, 10, k.opts.DefaultSpeed, false) })
	k.step(700, func() { k.MoveTo(k.lastPan, -27, k.opts.DefaultSpeed, false) })
	k.step(1650, func() { k.MoveTo(k.lastPan, 0, k.opts.DefaultSpeed, false) })
}

func (k *Kubi) nod() {
	// The resting tilt is captured at schedule time; the final step
	// returns to it.
	tilt := k.lastTilt
	k.step(200, func() { k.MoveTo(k.lastPan, -15, k.opts.DefaultSpeed, false) })
	k.step(500, func() { k.MoveTo(k.lastPan, 0, k.opts.DefaultSpeed, false) })
	k.step(800, func() { k.MoveTo(k.lastPan, -15, k.opts.DefaultSpeed, false) })
	k.step(1100, func() { k.Move(k.lastPan, tilt) })
}

func (k *Kubi) shake() {
	// The resting pan is captured at schedule time and swung around.
	pan := k.lastPan
	k.step(200, func() { k.MoveTo(pan-15, k.lastTilt, k.opts.DefaultSpeed, false) })
	k.step(500, func() { k.MoveTo(pan+15, k.lastTilt, k.opts.DefaultSpeed, false) })
	k.step(1250, func() { k.MoveTo(pan, k.lastTilt, k.opts.DefaultSpeed, false) })
}

func (k *Kubi) scanRoom() {
	k.step(200, func() { k.MoveTo(-120, 0, k.opts.DefaultSpeed, false) })
	k.step(3000, func() { k.MoveTo(-60, 0, k.opts.DefaultSpeed, false) })
	k.step(5000, func() { k.MoveTo(0, 0, k.opts.DefaultSpeed, false) })
	k.step(7000, func() { k.MoveTo(60, 0, k.opts.DefaultSpeed, false) })
	k.step(9000, func() { k.MoveTo(120, 0, k.opts.DefaultSpeed, false) })
	k.step(11000, func() { k.MoveTo(0, 0, k.opts.DefaultSpeed, false) })
}
