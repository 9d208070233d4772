package kubi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/revolverobotics/gokubi/internal/gatt"
	"github.com/revolverobotics/gokubi/internal/testutils"
)

type MotionTestSuite struct {
	suite.Suite
	helper    *testutils.TestHelper
	events    *recordedEvents
	radio     *testutils.FakeRadio
	kubi      *Kubi
	transport *testutils.FakeTransport
}

func (suite *MotionTestSuite) SetupTest() {
	suite.helper = testutils.NewTestHelper(suite.T())
	suite.events = &recordedEvents{}
	suite.radio = &testutils.FakeRadio{AutoConfirm: true}

	opts := DefaultOptions()
	opts.RSSIInterval = time.Hour
	suite.kubi = New(suite.helper.Loop, suite.radio, "Kubi-ABC123", "aa:bb:cc:dd:ee:ff",
		suite.events, opts, suite.helper.Logger)

	suite.helper.Eventually(func() bool { return suite.events.ready == 1 }, time.Second)
	suite.transport = suite.radio.LastTransport()
	suite.transport.Reset() // discard the initial RSSI read
}

// moveWrites waits for n confirmed write frames and returns them in dispatch
// order.
func (suite *MotionTestSuite) moveWrites(n int) []testutils.FakeOp {
	suite.helper.Eventually(func() bool {
		return len(suite.transport.OpsOfKind("write")) >= n
	}, time.Second, "expected", n, "write frames")
	writes := suite.transport.OpsOfKind("write")
	suite.Require().Len(writes, n, "exactly %d write frames MUST be dispatched", n)
	return writes
}

func (suite *MotionTestSuite) TestServoAngle() {
	// GOAL: Verify the angle-to-register mapping across the mechanical range

	tests := []struct {
		angle    float64
		expected int
	}{
		{-150, 0},
		{0, 511},
		{150, 1023},
		{60, 716},
		{30, 613},
		{10, 545},
		{-27, 419},
	}
	for _, tt := range tests {
		suite.Equal(tt.expected, ServoAngle(tt.angle), "angle %.0f", tt.angle)
	}
}

func (suite *MotionTestSuite) TestServoSpeed() {
	// GOAL: Verify the speed encoding and its non-positive input guard

	suite.Equal(89, ServoSpeed(1.0))
	suite.Equal(1, ServoSpeed(0), "non-positive speed MUST encode to the floor of 1")
	suite.Equal(1, ServoSpeed(-3))
}

func (suite *MotionTestSuite) TestMoveToFrameOrderAndLayout() {
	// GOAL: Verify a move submits exactly four frames in pan-speed,
	// tilt-speed, pan-target, tilt-target order with the documented layouts
	//
	// TEST SCENARIO: MoveTo(60, 30) smooth from origin → speeds scaled by
	// arc ratio → frames match byte for byte

	suite.helper.Run(func() { suite.kubi.MoveTo(60, 30, 1.0, true) })
	writes := suite.moveWrites(4)

	// Pan has the larger arc: full speed 89. Tilt runs at 30/60 of it: 44.
	suite.Equal(gatt.RegRegisterWrite2P, writes[0].Reg)
	suite.Equal([]byte{1, 0x20, 89, 0}, writes[0].Payload, "pan speed frame MUST be [axis, subcommand, lo, hi]")

	suite.Equal(gatt.RegRegisterWrite2P, writes[1].Reg)
	suite.Equal([]byte{2, 0x20, 44, 0}, writes[1].Payload, "tilt speed MUST be scaled by the arc ratio")

	// 60 degrees encodes to 716 = 0x2CC, 30 degrees to 613 = 0x265.
	suite.Equal(gatt.RegServoHorizontal, writes[2].Reg)
	suite.Equal([]byte{0x02, 0xCC}, writes[2].Payload, "target frames MUST be [hi, lo]")

	suite.Equal(gatt.RegServoVertical, writes[3].Reg)
	suite.Equal([]byte{0x02, 0x65}, writes[3].Payload)
}

func (suite *MotionTestSuite) TestMoveToWithoutSmoothing() {
	// GOAL: Verify smooth=false runs both axes at the same encoded speed

	suite.helper.Run(func() { suite.kubi.MoveTo(100, 1, 1.0, false) })
	writes := suite.moveWrites(4)

	suite.Equal(byte(89), writes[0].Payload[2], "pan speed MUST be the full encoded speed")
	suite.Equal(byte(89), writes[1].Payload[2], "tilt speed MUST equal pan speed without smoothing")
}

func (suite *MotionTestSuite) TestSpeedFloorAppliesPerAxis() {
	// GOAL: Verify both axes are floored at the minimum speed register after
	// smoothing, preventing stalled low-speed motion

	suite.helper.Run(func() { suite.kubi.MoveTo(100, 1, 0.1, true) })
	writes := suite.moveWrites(4)

	suite.Equal(byte(15), writes[0].Payload[2], "a sub-floor pan speed MUST be raised to the minimum")
	suite.Equal(byte(15), writes[1].Payload[2], "a sub-floor tilt speed MUST be raised to the minimum")
}

func (suite *MotionTestSuite) TestEqualArcsRunFullSpeed() {
	suite.helper.Run(func() { suite.kubi.MoveTo(40, 40, 1.0, true) })
	writes := suite.moveWrites(4)

	suite.Equal(byte(89), writes[0].Payload[2])
	suite.Equal(byte(89), writes[1].Payload[2], "equal arcs MUST both run at the requested speed")
}

func (suite *MotionTestSuite) TestOptimisticPositionCache() {
	// GOAL: Verify the cached pan/tilt update at submission, not at
	// confirmation, and feed the next move's arc computation

	suite.helper.Run(func() {
		suite.kubi.MoveTo(60, 30, 1.0, true)
		suite.Equal(60.0, suite.kubi.Pan(), "pan cache MUST update at submission")
		suite.Equal(30.0, suite.kubi.Tilt(), "tilt cache MUST update at submission")
	})
}

func (suite *MotionTestSuite) TestMoveIgnoredWhenNotReady() {
	suite.helper.Run(func() {
		suite.kubi.Disconnect()
	})
	suite.helper.Eventually(func() bool { return suite.events.disconnected == 1 }, time.Second)

	suite.transport.Reset()
	suite.helper.Run(func() { suite.kubi.MoveTo(10, 10, 1.0, true) })
	suite.Empty(suite.transport.Ops(), "a move on a torn-down handle MUST be dropped")
	suite.helper.Run(func() {
		suite.Equal(0.0, suite.kubi.Pan(), "a dropped move MUST NOT touch the position cache")
	})
}

func (suite *MotionTestSuite) TestSetIndicatorColor() {
	suite.helper.Run(func() { suite.kubi.SetIndicatorColor(255, 128, 0) })
	writes := suite.moveWrites(1)

	suite.Equal(gatt.RegIndicatorColor, writes[0].Reg)
	suite.Equal([]byte{255, 128, 0}, writes[0].Payload, "color frame MUST be [r, g, b]")
}

func TestMotionTestSuite(t *testing.T) {
	suite.Run(t, new(MotionTestSuite))
}
