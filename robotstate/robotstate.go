// Package robotstate holds the integrated state the backend keeps across
// ticks: the robot's joint angles and commanded powers, the sensor values
// the bridge has folded in, the accumulators that persist across states, and
// which autonomy state it is currently in. It carries no behavior of its own;
// package autonomy and package bridge both operate on a *State.
package robotstate

import (
	"github.com/AuroraRoboticsLab/MiningRobot/joint"
	"github.com/AuroraRoboticsLab/MiningRobot/power"
)

// RunState is the backend's autonomy state machine state.
type RunState int

const (
	STOP RunState = iota
	Drive
	DriveRaw
	BackendDriver
	Autonomy
	Scan
	MineStart
	Mine
	MineStall
	MineFinish
	Weigh
	HaulStart
	HaulOut
	HaulDump
	HaulBack
	HaulFinish
	Stow
	Stowed
	DailyStart
	runStateCount
)

var runStateNames = [runStateCount]string{
	"STOP", "drive", "driveraw", "backend_driver", "autonomy", "scan",
	"mine_start", "mine", "mine_stall", "mine_finish", "weigh",
	"haul_start", "haul_out", "haul_dump", "haul_back", "haul_finish",
	"stow", "stowed", "daily_start",
}

func (s RunState) String() string {
	if s < 0 || int(s) >= len(runStateNames) {
		return "unknown"
	}
	return runStateNames[s]
}

// Tuneable is the set of operator-adjustable gains that shape autonomous
// behavior, normally driven from the control UI.
type Tuneable struct {
	Aggro float64 // mining aggression / depth-rate scale
	Tool  float64 // tool angle bias
	Cut   float64 // cutter speed scale
	Drive float64 // drive power scale
}

// DefaultTuneable matches the factory defaults the original control panel
// started every run with.
func DefaultTuneable() Tuneable {
	return Tuneable{Aggro: 1.0, Tool: 0, Cut: 1.0, Drive: 1.0}
}

// Accum holds the persistent counters that survive across autonomy states
// and are the basis for end-of-state and end-of-day reporting.
type Accum struct {
	Scoop      float64 // kgf currently loaded in the scoop
	ScoopTotal float64 // kgf mined so far this haul cycle
	Drive      float64 // meters driven this haul cycle
	DriveTotal float64 // meters driven today
	OpTotal    float64 // total operating seconds today
}

// Sensor is the subset of the bridge-parsed sensor state the autonomy
// machine reads to decide when to transition.
type Sensor struct {
	MineRate   float64 // current cutter spin rate, head units/sec
	MStall     bool    // cutter motor stalled
	LoadL      float64 // tool load cell, kgf, negative = down
	LoadR      float64 // tool load cell, right side; also the mine-stall wedge check
	ScoopL     float64 // scoop/weigh load cell, kgf, negative = down
	ScoopR     float64
	FramePitch float64 // degrees, frame IMU pitch, feeds the mine planner
	ChargeD    float64 // drive battery percent, 0-100
	IMUsOK     bool
}

// Pose is the robot's best estimate of its position on the field, filled in
// by whatever localizer is attached; the autonomy machine only reads the
// fields it actually needs for haul progress and never performs its own
// localization.
type Pose struct {
	X, Y    float64
	Heading float64 // degrees
}

// State is the full per-tick snapshot the autonomy and bridge packages
// share. A backend process owns exactly one of these.
type State struct {
	Joint     joint.JointState // current measured joint angles
	JointPlan joint.JointState // joint angles the current move is driving toward
	Power     power.Vector     // motor powers computed this tick

	Sensor Sensor
	Accum  Accum
	Pose   Pose
	Tune   Tuneable

	Run     RunState
	LastRun RunState
	Substep int

	// StateStartTime and AutonomyStartTime are seconds since backend start,
	// used to time substeps and log autonomous run duration.
	StateStartTime    float64
	AutonomyStartTime float64

	// MineProgress is mining.SplitProgress's progress parameter, 0 at the
	// surface and approaching 1 at full depth for the current target.
	MineProgress float64
	// StallBackoff accumulates while the cutter is stalled and decays
	// otherwise; see package autonomy's Mine state.
	StallBackoff float64

	// HaulOutPhase lets the haul_out state remember which leg of its
	// simplified drive-out sequence it is on.
	HaulOutPhase int
}
