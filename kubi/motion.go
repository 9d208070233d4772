package kubi

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/revolverobotics/gokubi/internal/gatt"
)

const (
	// servoSpeedSubcommand is the fixed second byte of a speed-register
	// write frame.
	servoSpeedSubcommand = 0x20

	// Axis indexes on the wire.
	panAxis  = 1
	tiltAxis = 2

	// minSpeedRegister is the per-axis floor applied after encoding and
	// smoothing, to prevent jerky low-speed motion.
	minSpeedRegister = 15
)

// ServoAngle converts an angle in degrees to the servo goal-position
// register value. Valid for angles in [-150, 150]; out-of-range input is the
// caller's responsibility and is not clamped here.
func ServoAngle(angle float64) int {
	return int((angle + 150) * 0x3FF / 300)
}

// ServoSpeed converts a speed in degrees/second to the servo speed register
// value. The actual speed may vary with load on the servo.
//
// The max(..., 1.0) term only guards degenerate non-positive input; it is
// not an upper clamp, and for any realistic speed the multiplication term
// dominates. The peripheral firmware's behavior under out-of-range speed
// registers is unknown, so the original encoding is kept as is.
func ServoSpeed(speed float64) int {
	return int(math.Max(speed*0x3FF/11.4, 1.0))
}

// Move moves to the given pan and tilt at the default speed with smoothing
// enabled.
func (k *Kubi) Move(pan, tilt float64) {
	k.MoveTo(pan, tilt, k.opts.DefaultSpeed, true)
}

// MoveTo moves to the given pan and tilt at the given speed.
//
// With smooth enabled the per-axis speeds are scaled so both axes finish at
// the same time: the axis with the larger arc (distance from the last
// commanded position) runs at the full encoded speed and the other axis at
// the arc ratio of it, floored at minSpeedRegister. Equal arcs run both axes
// at full speed, as does smooth == false.
//
// Exactly four writes are enqueued, in this order: pan speed, tilt speed,
// pan target, tilt target. The cached last pan/tilt are updated immediately
// at submission, before any write is confirmed.
func (k *Kubi) MoveTo(pan, tilt, speed float64, smooth bool) {
	// Either the registers have not been resolved yet or resolution failed.
	if !k.Ready() {
		k.logger.WithFields(logrus.Fields{
			"pan":  pan,
			"tilt": tilt,
		}).Debug("Move ignored: kubi not ready")
		return
	}

	panVal := ServoAngle(pan)
	tiltVal := ServoAngle(tilt)

	var panSpeed, tiltSpeed int
	if !smooth {
		panSpeed = ServoSpeed(speed)
		tiltSpeed = panSpeed
	} else {
		panArc := math.Abs(pan - k.lastPan)
		tiltArc := math.Abs(tilt - k.lastTilt)

		// The larger arc gets the requested speed; the other axis is
		// scaled by the arc ratio so both moves take the same time.
		switch {
		case panArc > tiltArc:
			panSpeed = ServoSpeed(speed)
			tiltSpeed = int(tiltArc / panArc * float64(panSpeed))
		case tiltArc > panArc:
			tiltSpeed = ServoSpeed(speed)
			panSpeed = int(panArc / tiltArc * float64(tiltSpeed))
		default:
			panSpeed = ServoSpeed(speed)
			tiltSpeed = panSpeed
		}
	}

	if panSpeed < minSpeedRegister {
		panSpeed = minSpeedRegister
	}
	if tiltSpeed < minSpeedRegister {
		tiltSpeed = minSpeedRegister
	}

	// Speed frames: [axis, subcommand, low byte, high byte].
	k.queue.SubmitWrite(gatt.RegRegisterWrite2P, []byte{
		panAxis, servoSpeedSubcommand, byte(panSpeed), byte(panSpeed >> 8),
	})
	k.queue.SubmitWrite(gatt.RegRegisterWrite2P, []byte{
		tiltAxis, servoSpeedSubcommand, byte(tiltSpeed), byte(tiltSpeed >> 8),
	})

	// Target frames: [high byte, low byte].
	k.queue.SubmitWrite(gatt.RegServoHorizontal, []byte{
		byte(panVal >> 8), byte(panVal),
	})
	k.queue.SubmitWrite(gatt.RegServoVertical, []byte{
		byte(tiltVal >> 8), byte(tiltVal),
	})

	k.lastPan = pan
	k.lastTilt = tilt
}

// SetIndicatorColor sets the status indicator to the given color, as one raw
// 3-byte write sharing the motion queue and its ordering guarantees.
func (k *Kubi) SetIndicatorColor(red, green, blue byte) {
	if !k.Ready() {
		return
	}
	k.queue.SubmitWrite(gatt.RegIndicatorColor, []byte{red, green, blue})
}
