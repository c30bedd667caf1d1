// Package autonomy implements the backend's autonomy state machine: the
// sequence of states a dig-haul-dump cycle moves through, and the per-tick
// logic that decides when to advance, stall, or fall back to manual drive.
//
// Real field localization (aurora::robot_navtarget and friends) and 2-D
// path planning are out of scope; haul_out/haul_back drive on the
// distilled accumulator contract alone (haulDriveDone), not on any actual
// position estimate. A deployment wiring this up to a real localizer
// should fill robotstate.State.Pose itself and is free to replace
// haulDriveDone's body without touching the rest of the machine.
package autonomy

import (
	"math"

	"github.com/AuroraRoboticsLab/MiningRobot/hazard"
	"github.com/AuroraRoboticsLab/MiningRobot/joint"
	"github.com/AuroraRoboticsLab/MiningRobot/mining"
	"github.com/AuroraRoboticsLab/MiningRobot/power"
	"github.com/AuroraRoboticsLab/MiningRobot/robotlog"
	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
)

// weigh substep settle/hold time, seconds.
const weighStepTime = 1.5

// mine state tunables.
const (
	mineRateSuppress = 50.0  // raw units; below this, advance is suppressed
	mineLoadRStall   = -10.0 // kgf; a side wedge on the right load cell
	mineStallStep    = 0.02
	mineStallCap     = 0.3
	mineStallReset   = 0.12
	mineDecayRate    = 0.96
	mineDecayAggro   = 0.005
	mineProgStep     = 0.004
	scanWaitTime     = 2.0 // seconds, cues vision before mine_start
)

// haulDriveDone's distance/battery thresholds.
const (
	haulDriveLimit   = 500.0 // meters; terminate a haul leg after this much accumulated drive
	lowBatteryCharge = 15.0  // percent; terminate a haul leg early on low battery
)

// insanityLimit is how many consecutive ticks of an invalid joint plan or
// vetoed power command force a drop back to manual drive.
const insanityLimit = 10

// weigh/dump/stow joint poses.
var (
	weighJointScoop  = joint.JointState{Angles: [joint.NumJoints]float64{0: 0, 1: -20, 2: 0, 3: 0, 4: 0, 5: 0}}
	weighJointFinish = joint.JointState{Angles: [joint.NumJoints]float64{0: 6, 1: -15, 2: 0, 3: 0, 4: 0, 5: 0}}
	dumpJointScoop   = joint.JointState{Angles: [joint.NumJoints]float64{0: -10, 1: -80, 2: 0, 3: 0, 4: 0, 5: 0}}
	stowedJoint      = joint.JointState{Angles: [joint.NumJoints]float64{0: -17, 1: -80, 2: 0, 3: 0, 4: 0, 5: 0}}
)

// Machine runs the state transition logic for one robot. It is not safe for
// concurrent use; callers serialize calls to Tick with any direct writes to
// the robotstate.State it is given.
type Machine struct {
	planner      *mining.Planner
	logs         *robotlog.Logs
	insaneStreak int
}

// New builds a Machine with its own mining planner.
func New(logs *robotlog.Logs) *Machine {
	return &Machine{planner: mining.NewPlanner(), logs: logs}
}

// EnterState transitions r into to, resetting the per-state bookkeeping the
// original's enter_state() resets: substep, commanded drive powers, and (on
// entry to Autonomy) the autonomous-run start time. now is seconds since
// backend start.
func (m *Machine) EnterState(r *robotstate.State, to robotstate.RunState, now float64) {
	if m.logs != nil && to != r.Run {
		m.logs.Transition(r.Run, to, now)
	}
	r.LastRun = r.Run
	r.Run = to
	r.Substep = 0
	r.StateStartTime = now
	r.Power.Left = 0
	r.Power.Right = 0
	if to == robotstate.Autonomy {
		r.AutonomyStartTime = now
	}
}

// fail drops r back to manual Drive and logs why, mirroring
// autonomous_fail().
func (m *Machine) fail(r *robotstate.State, reason string, now float64) {
	if m.logs != nil {
		m.logs.AutonomousFail(r.Run, reason, now)
	}
	m.EnterState(r, robotstate.Drive, now)
}

func elapsed(r *robotstate.State, now float64) float64 { return now - r.StateStartTime }

// haulDriveDone reports whether the current haul leg should terminate:
// either the accumulated drive distance for this leg reached the limit, or
// the drive battery is too low to keep going.
func haulDriveDone(r *robotstate.State) bool {
	if r.Accum.Drive >= haulDriveLimit {
		return true
	}
	if r.Sensor.ChargeD > 0 && r.Sensor.ChargeD < lowBatteryCharge {
		return true
	}
	return false
}

// moveSingleJoint steps one joint angle toward target at up to maxRate
// degrees/tick and reports whether it arrived (within 1 degree).
func moveSingleJoint(cur, target, maxRate float64) (next float64, arrived bool) {
	d := target - cur
	if math.Abs(d) <= 1.0 {
		return target, true
	}
	if d > maxRate {
		d = maxRate
	} else if d < -maxRate {
		d = -maxRate
	}
	return cur + d, false
}

// moveArm steps every joint of r.Joint toward target and reports whether
// all of them have arrived.
func moveArm(r *robotstate.State, target joint.JointState, maxRate float64) bool {
	allArrived := true
	for i := range r.Joint.Angles {
		next, arrived := moveSingleJoint(r.Joint.Angles[i], target.Angles[i], maxRate)
		r.Joint.Angles[i] = next
		if !arrived {
			allArrived = false
		}
	}
	return allArrived
}

// Tick advances r by one control period of dt seconds, now being seconds
// since backend start. It is the entire autonomy state machine: each case
// implements one robotstate.RunState's behavior and transition rule.
func (m *Machine) Tick(r *robotstate.State, now, dt float64) {
	switch r.Run {

	case robotstate.STOP:
		r.Power = power.Vector{}

	case robotstate.Drive, robotstate.DriveRaw, robotstate.BackendDriver:
		// manual states: the control layer writes r.Power directly: nothing
		// for the autonomy tick to do beyond holding the state.

	case robotstate.Autonomy:
		m.EnterState(r, robotstate.Scan, now)

	case robotstate.Scan:
		if !r.Sensor.IMUsOK {
			m.fail(r, "imu not ready during scan", now)
			return
		}
		if elapsed(r, now) >= scanWaitTime {
			m.EnterState(r, robotstate.MineStart, now)
		}

	case robotstate.MineStart:
		if moveArm(r, mining.MineJointBase, 4) {
			r.MineProgress = 0
			r.StallBackoff = 0
			m.EnterState(r, robotstate.Mine, now)
		}

	case robotstate.Mine:
		m.tickMine(r, now, dt)

	case robotstate.MineStall:
		// Reachable only via an explicit external state request: mine's own
		// stall handling is entirely inline (see tickMine) and never
		// transitions here on its own.
		m.EnterState(r, robotstate.Mine, now)

	case robotstate.MineFinish:
		if moveArm(r, mining.MineJointFinish, 4) {
			r.Power.Attached.Grinder = 0
			m.EnterState(r, robotstate.STOP, now)
		}

	case robotstate.Weigh:
		m.tickWeigh(r, now)

	case robotstate.HaulStart:
		r.Accum.DriveTotal += r.Accum.Drive
		r.Accum.Drive = 0
		m.EnterState(r, robotstate.HaulOut, now)

	case robotstate.HaulOut:
		r.Accum.Drive += r.Tune.Drive * dt // distance accrues from the bridge in a full deployment
		if haulDriveDone(r) {
			m.EnterState(r, robotstate.HaulBack, now)
		}

	case robotstate.HaulBack:
		r.Accum.Drive += r.Tune.Drive * dt
		if haulDriveDone(r) {
			m.EnterState(r, robotstate.HaulDump, now)
		}

	case robotstate.HaulDump:
		if moveArm(r, dumpJointScoop, 3) {
			r.Accum.ScoopTotal += r.Accum.Scoop
			r.Accum.Scoop = 0
			m.EnterState(r, robotstate.STOP, now)
		}

	case robotstate.HaulFinish:
		// named in the state list but unreachable from the transition rules
		// above; kept so an external request can still land here and fall
		// through to STOP.
		m.EnterState(r, robotstate.STOP, now)

	case robotstate.Stow:
		if moveArm(r, stowedJoint, 4) {
			m.EnterState(r, robotstate.Stowed, now)
		}

	case robotstate.Stowed:
		r.Power = power.Vector{}

	case robotstate.DailyStart:
		r.Accum = robotstate.Accum{}
		m.EnterState(r, robotstate.Drive, now)
	}

	r.Accum.OpTotal += dt
	m.applyHazards(r, now)
}

// applyHazards vetoes the power command just produced, unless the current
// state is DriveRaw, which bypasses the hazard checker entirely. A vetoed
// command has its arm axes zeroed; insanityLimit consecutive vetoes forces
// a drop back to manual drive.
func (m *Machine) applyHazards(r *robotstate.State, now float64) {
	if r.Run == robotstate.DriveRaw {
		m.insaneStreak = 0
		return
	}
	if reason := hazard.JointMoveHazards(r.Joint, r.Power); reason != "" {
		r.Power.Fork, r.Power.Dump, r.Power.Boom, r.Power.Stick, r.Power.Tilt = 0, 0, 0, 0, 0
		m.insaneStreak++
		if m.insaneStreak >= insanityLimit {
			m.insaneStreak = 0
			m.fail(r, "hazard veto streak: "+reason, now)
		}
		return
	}
	m.insaneStreak = 0
}

// tickMine runs the Mine state: advance progress, plan the next IK target,
// and watch for a cutter stall.
func (m *Machine) tickMine(r *robotstate.State, now, dt float64) {
	r.Power.Attached.Kind = power.AttachedGrinder
	r.Power.Attached.Grinder = r.Tune.Cut

	backoff := r.Sensor.MineRate == 0 || r.Sensor.LoadR < mineLoadRStall
	if backoff {
		r.StallBackoff += mineStallStep
		if r.StallBackoff >= mineStallCap {
			r.StallBackoff = mineStallReset
			r.Power.Attached.Grinder = 0
			m.EnterState(r, robotstate.STOP, now)
			return
		}
	} else {
		r.StallBackoff = mineDecayRate*r.StallBackoff - mineDecayAggro*r.Tune.Aggro
		if r.StallBackoff < 0 {
			r.StallBackoff = 0
		}
	}

	// The arm keeps planning and moving every tick, retracting by
	// capBackoff as the stall accumulator rises, even while progress is
	// suppressed below.
	out, up := mining.SplitProgress(r.MineProgress, r.Tune.Aggro)
	capBackoff := math.Min(mineStallCap, r.StallBackoff)
	depth := 0.01*r.Tune.Cut - capBackoff - out
	if err := m.planner.Plan(r.Sensor.FramePitch, up, depth, &r.JointPlan); err != nil {
		m.fail(r, "mine target unreachable", now)
		return
	}
	reached := moveArm(r, r.JointPlan, 2)

	suppressAdvance := r.Sensor.MineRate < mineRateSuppress || r.StallBackoff > 0
	if reached && !suppressAdvance {
		r.MineProgress += mineProgStep * r.Tune.Aggro
		if r.MineProgress >= 1.0 {
			r.MineProgress = 1.0
			m.EnterState(r, robotstate.MineFinish, now)
		}
	}
}

// tickWeigh runs the Weigh state's four substeps: lift the scoop, settle,
// read the load cells, then return to the driving pose.
func (m *Machine) tickWeigh(r *robotstate.State, now float64) {
	if !r.Sensor.IMUsOK {
		m.fail(r, "imu not ready before weigh", now)
		return
	}
	switch r.Substep {
	case 0: // command the weigh pose
		if moveArm(r, weighJointScoop, 3) {
			r.Substep = 1
			r.StateStartTime = now
		}
	case 1: // read the right load cell, 1.5s settle
		if elapsed(r, now) >= weighStepTime {
			r.Substep = 2
			r.StateStartTime = now
		}
	case 2: // read the left load cell, another 1.5s
		if elapsed(r, now) >= weighStepTime {
			r.Accum.Scoop = math.Max(0, -(r.Sensor.ScoopL + r.Sensor.ScoopR))
			r.Substep = 3
			r.StateStartTime = now
		}
	case 3: // return to the driving pose
		if moveArm(r, weighJointFinish, 3) {
			m.EnterState(r, robotstate.STOP, now)
		}
	}
}
