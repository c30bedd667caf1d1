// Package mining parameterizes a single mining cut as a scalar progress in
// [0,1] and turns it, plus the frame's current pitch and a target cut
// depth, into an IK target for the arm.
package mining

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/AuroraRoboticsLab/MiningRobot/ik"
	"github.com/AuroraRoboticsLab/MiningRobot/joint"
)

// ErrUnreachable is returned when the planned target is outside the arm's
// reach or the resulting joint state fails its sanity check.
var ErrUnreachable = fmt.Errorf("mining: target unreachable or unsafe")

// MineJointBase is the arm pose commanded on entry to mining, before any
// progress has been made.
var MineJointBase = joint.JointState{Angles: [joint.NumJoints]float64{0: -17, 1: -30, 2: 10, 3: 0, 4: -30, 5: 0}}

// MineJointFinish is the arm pose commanded once a cut reaches progress 1.0.
var MineJointFinish = joint.JointState{Angles: [joint.NumJoints]float64{0: -17, 1: -30, 2: 40, 3: 7, 4: -45, 5: 0}}

// Tunables governing the shape of a cut. MinePitAngle and MineFloorHeight
// are reasonable defaults for the excahauler's geometry, not derived from
// any measured constraint.
const (
	MinePitAngle     = 30.0 // degrees, nominal excavation pitch
	MineStartDistance = 0.25 // m, clearance from the scoop tip to start mining
	MineFloorHeight  = 0.05 // m
	mineTiltSlope    = 1.2  // 1.0 -> 45 deg cut, 2.0 -> about 60 deg
)

// SplitProgress turns a single 0-1 cut-progress scalar into an (out, up)
// pair: out is a lead-in/lead-out retraction distance (meters), up is how
// far along the up-direction the cut has advanced. length scales how far
// "up" the cut goes (this doubles as the autonomy state machine's
// aggression tunable).
func SplitProgress(progress, length float64) (out, up float64) {
	const (
		iend = 0.15 // fraction of cut used for lead-in
		oend = 0.03 // fraction of cut used for lead-out
		lead = 0.05 // meters of lead-in/out retraction
	)
	upstart := 0.0
	uplen := length

	switch {
	case progress < iend:
		up = upstart
		out = (iend - progress) / iend * lead
	case progress > 1.0-oend:
		up = upstart + uplen
		out = (progress - (1.0 - oend)) / oend * lead
	default:
		out = 0.0
		up = upstart + uplen*(progress-iend)/(1.0-iend-oend)
	}
	return out, up
}

// vecFromAngle returns the planar direction vector for angleDeg, measured
// around the X axis from the Y axis (matching joint.frameDegrees' convention).
func vecFromAngle(angleDeg float64) (y, z float64) {
	rad := mgl64.DegToRad(angleDeg)
	return math.Cos(rad), math.Sin(rad)
}

// vecFromMineAngle rotates that planar direction into the cut's own
// (X-level, Y/Z tilted) coordinate convention.
func vecFromMineAngle(angleDeg float64) mgl64.Vec3 {
	y, z := vecFromAngle(angleDeg)
	return mgl64.Vec3{z, y, 0}
}

// Planner holds the scoop-tip origin (in frame coordinates, at the mining
// base pose) that every cut trajectory is planned relative to.
type Planner struct {
	ScoopTip mgl64.Vec3
	ik       *ik.Solver
}

// NewPlanner computes ScoopTip from the dump link's geometry at
// MineJointBase, exactly as mine_planner's constructor does.
func NewPlanner() *Planner {
	scoopTipLocal := mgl64.Vec3{0, 0.308, 0.168}
	return &Planner{
		ScoopTip: joint.PointWorldFromLocal(MineJointBase, joint.Dump, scoopTipLocal),
		ik:       ik.NewSolver(),
	}
}

// LookupMineTarget computes the frame-coordinates point the grinder should
// be driven to for this combination of frame pitch (degrees), progress
// (0-1, the up-direction fraction already resolved by SplitProgress) and
// depth (meters, negative is clearance above the surface).
func (p *Planner) LookupMineTarget(framePitch, progress, depth float64) mgl64.Vec3 {
	up := vecFromMineAngle(MinePitAngle - framePitch)
	in := mgl64.Vec3{0, 1, 0} // advance along Y, forward only
	start := p.ScoopTip.Add(mgl64.Vec3{0, MineStartDistance, MineFloorHeight})
	return start.Add(up.Mul(progress)).Add(in.Mul(depth))
}

// TargetPlan drives the arm's tilt joint toward mineTarget, orienting the
// tool along the cut's up-direction, and checks the result for reachability
// and sanity.
func (p *Planner) TargetPlan(mineTarget mgl64.Vec3, j *joint.JointState) error {
	headCenter := mgl64.Vec3{0, -0.2, 1.2}
	headLook := mineTarget.Sub(headCenter).Normalize()
	toolDeg := mgl64.RadToDeg(math.Atan2(headLook.Z(), headLook.Y()))

	if err := p.ik.SolveTilt(j, mineTarget, toolDeg); err != nil {
		return err
	}
	if !j.Sane() {
		return ErrUnreachable
	}
	return nil
}

// Plan combines LookupMineTarget and TargetPlan into a single call, mirroring
// mine_planner::mine_plan. mineJoint starts at MineJointBase and is updated
// in place.
func (p *Planner) Plan(framePitch, progress, depth float64, mineJoint *joint.JointState) error {
	target := p.LookupMineTarget(framePitch, progress, depth)
	return p.TargetPlan(target, mineJoint)
}
