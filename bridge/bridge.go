// Package bridge folds one tick's worth of already-parsed exchange state
// into a robotstate.State, and pushes the state's commanded powers back out
// to the exchange's per-slot command channels. It is the boundary between
// the seqlock shared memory (package exchange) and the backend's own domain
// types (package joint, package power, package robotstate).
package bridge

import (
	"math"

	"github.com/AuroraRoboticsLab/MiningRobot/exchange"
	"github.com/AuroraRoboticsLab/MiningRobot/joint"
	"github.com/AuroraRoboticsLab/MiningRobot/power"
	"github.com/AuroraRoboticsLab/MiningRobot/robotlog"
	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
)

// calibration offsets applied to parsed IMU pitch readings before they reach
// a JointState, correcting for how each IMU is actually mounted.
const (
	tiltCalibrationDeg  = 7.0
	pitchCalibrationDeg = 4.0
)

// driveMaxSpeed bounds how far the drive distance accumulator may advance
// in a single tick, rejecting encoder/localizer jumps the same way the
// original bridge code guards against a bad wrap or a localizer glitch.
const driveMaxSpeed = 2.0 // m/s

// encoderWrap is the modulus a drive encoder counter wraps at.
const encoderWrap = 256

// Bridge carries the small amount of state that must persist between
// ticks: the previous encoder counts (to compute a wrapped delta) and a
// mining-rate peak filter.
type Bridge struct {
	lastCounts   [2]byte
	haveCounts   bool
	mineRatePeak float64
	logs         *robotlog.Logs
}

// New builds a Bridge that logs IMU sanity failures to logs (nil disables
// logging, e.g. in tests).
func New(logs *robotlog.Logs) *Bridge { return &Bridge{logs: logs} }

// fixWrap256 returns the signed delta between two encoder counters that
// wrap modulo 256, choosing the shorter of the two directions around the
// wrap, exactly as the firmware's own counter arithmetic intends.
func fixWrap256(prev, cur byte) int {
	d := int(cur) - int(prev)
	if d > encoderWrap/2 {
		d -= encoderWrap
	} else if d < -encoderWrap/2 {
		d += encoderWrap
	}
	return d
}

// UpdateSensors folds x's already-parsed per-slot state into r: joint
// angles from the arm/frame IMUs (with calibration offsets applied), load
// cell readings, battery charge, cutter stall/rate, and accumulated drive
// distance. The IMU pitch/roll and gravity sanity check are computed by
// each slot's own driver process (see package driver) and only consumed
// here. dt is the tick period in seconds.
func (b *Bridge) UpdateSensors(r *robotstate.State, x *exchange.Nanoslot, now, dt float64) {
	f1 := x.SlotF1.State.Read()
	a1 := x.SlotA1.State.Read()
	c0 := x.SlotC0.State.Read()
	d0 := x.SlotD0.State.Read()
	f0 := x.SlotF0.State.Read()

	f1Connected := f1.Connected != 0
	a1Connected := a1.Connected != 0
	c0Connected := c0.Connected != 0
	d0Connected := d0.Connected != 0
	f0Connected := f0.Connected != 0

	r.Sensor.IMUsOK = f1.Frame.Valid && f1.Boom.Valid && f1Connected && a1Connected
	if !r.Sensor.IMUsOK && b.logs != nil {
		// the failing sample's own gravity magnitude stayed in the driver
		// process that rejected it; only the pass/fail bit crosses here.
		b.logs.IMUError("frame", 0, now)
	}
	r.Sensor.FramePitch = f1.Frame.PitchDeg

	r.Joint.Angles[joint.Geom(joint.Boom).JointIndex] = f1.Boom.PitchDeg - f1.Frame.PitchDeg + pitchCalibrationDeg
	r.Joint.Angles[joint.Geom(joint.Fork).JointIndex] = f1.Fork.PitchDeg - f1.Frame.PitchDeg
	r.Joint.Angles[joint.Geom(joint.Dump).JointIndex] = f1.Dump.PitchDeg - f1.Fork.PitchDeg

	// scoop/weigh load cells, read off the same forward slot as the frame IMUs.
	r.Sensor.ScoopL = f1.LoadL
	r.Sensor.ScoopR = f1.LoadR

	r.Joint.Angles[joint.Geom(joint.Stick).JointIndex] = a1.Stick.PitchDeg - f1.Boom.PitchDeg
	r.Joint.Angles[joint.Geom(joint.Tilt).JointIndex] = a1.Tool.PitchDeg - a1.Stick.PitchDeg + tiltCalibrationDeg
	r.Joint.Angles[joint.Geom(joint.Spin).JointIndex] = 0 // now hardware locked

	// tool load cells; SplitProgress's wedge check (autonomy.tickMine) reads LoadR.
	r.Sensor.LoadL = a1.LoadL
	r.Sensor.LoadR = a1.LoadR

	rate := c0.Spin
	if !c0Connected {
		rate = 0
	}
	if rate > b.mineRatePeak {
		b.mineRatePeak = rate
	} else {
		b.mineRatePeak *= 0.9 // decay the peak so a stall shows up quickly
	}
	r.Sensor.MineRate = b.mineRatePeak
	r.Sensor.MStall = rate < 0.1*b.mineRatePeak && b.mineRatePeak > 1

	r.Sensor.ChargeD = f0.Charge
	if !f0Connected {
		r.Sensor.ChargeD = 0
	}

	if d0Connected {
		b.accrueDrive(r, x.SlotD0.Sensor.Read().Counts, dt)
	}
}

// accrueDrive folds one tick's drive encoder counts into r.Accum.Drive and
// r.Accum.DriveTotal, rejecting any implied speed above driveMaxSpeed as a
// wrap-correction or sensor glitch rather than real motion.
func (b *Bridge) accrueDrive(r *robotstate.State, counts [2]byte, dt float64) {
	if !b.haveCounts {
		b.lastCounts = counts
		b.haveCounts = true
		return
	}
	const metersPerCount = 0.01 // wheel circumference / encoder counts per revolution
	dl := fixWrap256(b.lastCounts[0], counts[0])
	dr := fixWrap256(b.lastCounts[1], counts[1])
	b.lastCounts = counts

	dist := float64(dl+dr) / 2 * metersPerCount
	if dt > 0 && math.Abs(dist/dt) > driveMaxSpeed {
		return
	}
	r.Accum.Drive += math.Abs(dist)
}

// AutonomyMode maps a run state onto the wire's 3-level autonomy mode:
// 0 (STOP/safe) while parked or stopped, 1 for every manually-driven
// state, and 2 for everything the state machine itself is driving.
func AutonomyMode(run robotstate.RunState) exchange.Byte {
	switch run {
	case robotstate.STOP, robotstate.Stowed:
		return 0
	case robotstate.Drive, robotstate.DriveRaw, robotstate.BackendDriver:
		return 1
	default:
		return 2
	}
}

// PostCommands scales r.Power into each slot's integer motor command and
// writes it to x, and bumps the shared backend heartbeat. mode is written
// into every slot's autonomy channel, already folded with any
// heartbeat-stall override by the caller.
func (b *Bridge) PostCommands(r *robotstate.State, x *exchange.Nanoslot, mode exchange.Byte) {
	p := r.Power.Sanitize()
	auto := exchange.Autonomy{Mode: mode}

	x.SlotD0.Command.Write(exchange.Command0xD0{
		Autonomy: auto,
		Motor: [4]exchange.MotorPercent{
			int8(power.MotorScale(p.Left)), int8(power.MotorScale(p.Left)),
			int8(power.MotorScale(p.Right)), int8(power.MotorScale(p.Right)),
		},
	})
	x.SlotA0.Command.Write(exchange.Command0xA0{
		Autonomy: auto,
		Motor: [4]exchange.MotorPercent{
			int8(power.MotorScale(p.Fork)), int8(power.MotorScale(p.Dump)),
			int8(power.MotorScale(p.Boom)), int8(power.MotorScale(p.Stick)),
		},
	})
	x.Slot70.Command.Write(exchange.Command0x70{
		Autonomy: auto,
		Torque:   [1]exchange.MotorPercent{int8(power.MotorScale(p.Tilt))},
	})

	if p.Attached.IsGrinder() {
		x.SlotC0.Command.Write(exchange.Command0xC0{
			Autonomy: auto,
			Mine:     int8(power.MotorScale(p.Attached.Grinder)),
		})
	}

	h := x.BackendHeartbeat.Read()
	x.BackendHeartbeat.Write(h + 1)
	x.Autonomy.Write(auto)
}
