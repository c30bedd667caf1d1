// Package hazard vetoes actuator commands that would drive the excahauler's
// moving parts into its own frame or into each other.
package hazard

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/AuroraRoboticsLab/MiningRobot/joint"
	"github.com/AuroraRoboticsLab/MiningRobot/power"
)

// Geometry constants ported from the excahauler's collision table.
const (
	safeDist     = 0.03 // m, buffer gap kept between moving parts
	miningHeadR  = 0.09 // m, radius of the mining head
	smallPower   = 0.01 // nominal 1% power, below which a command is "not moving"
)

var (
	toolBackLower = mgl64.Vec3{0, -0.442, 0}
	toolBackUpper = mgl64.Vec3{0, -0.502, 0.24}
	miningHeadMid = mgl64.Vec3{0, -0.05, 0.03}

	scoopHazUpper = mgl64.Vec3{0, 0.02, 0.275}
	scoopHazMid   = mgl64.Vec3{0, -0.015, -0.122}
	scoopHazLower = mgl64.Vec3{0, 0.333, -0.09}

	boomHazLower = mgl64.Vec3{0, 0, 0}
	boomHazUpper = mgl64.Vec3{0, 0, 0.25}
)

// pointToLineDist is the distance from p to the segment [v,w], using only
// the Y/Z plane (the excahauler's collision geometry ignores X).
func pointToLineDist(v, w, p mgl64.Vec3) float64 {
	vy, vz := v.Y(), v.Z()
	wy, wz := w.Y(), w.Z()
	py, pz := p.Y(), p.Z()

	len2 := (vy-wy)*(vy-wy) + (vz-wz)*(vz-wz)
	if len2 < 0.0001 {
		dy, dz := py-vy, pz-vz
		return math.Sqrt(dy*dy + dz*dz)
	}
	t := ((py-vy)*(wy-vy) + (pz-vz)*(wz-vz)) / len2
	if t > 1.0 {
		t = 1.0
	}
	if t < 0.0 {
		t = 0.0
	}
	projY := vy + (wy-vy)*t
	projZ := vz + (wz-vz)*t
	dy, dz := py-projY, pz-projZ
	return math.Sqrt(dy*dy + dz*dz)
}

// JointMoveHazards checks a proposed power command against the robot's
// current joint state. It returns the first hazard reason found, or ""
// if the command keeps the robot in a safe configuration.
func JointMoveHazards(j joint.JointState, p power.Vector) string {
	// (1) Coarse angle/pose rules.
	scoopDown := j.Fork() < -10 || j.Dump() < -70
	driving := math.Abs(p.Left) > smallPower || math.Abs(p.Right) > smallPower
	if scoopDown && driving {
		return "scoop dragging on ground"
	}

	backTilted := j.Boom() > 40 && j.Stick() > 20
	backMove := p.Boom < -smallPower || p.Stick > smallPower
	if backTilted && backMove {
		return "hitting back ebox"
	}

	// (2) Scoop<->tool interference, in a common (scoop-local, 45-degree
	// corrected) frame.
	dumpTransform := joint.Transform(j, joint.Dump)
	toolWorldMid := joint.PointWorldFromLocal(j, joint.Grinder, miningHeadMid)
	toolWorldBackLower := joint.PointWorldFromLocal(j, joint.Grinder, toolBackLower)
	toolWorldBackUpper := joint.PointWorldFromLocal(j, joint.Grinder, toolBackUpper)

	tip := modScoopLocalFromWorld(dumpTransform, toolWorldMid)
	toolBackLowerPt := modScoopLocalFromWorld(dumpTransform, toolWorldBackLower)
	toolBackUpperPt := modScoopLocalFromWorld(dumpTransform, toolWorldBackUpper)

	headInScoop := tip.Y()+miningHeadR+safeDist > scoopHazUpper.Y() &&
		tip.Z()-(miningHeadR+safeDist) < scoopHazUpper.Z() &&
		tip.Y()-(miningHeadR+safeDist) < scoopHazLower.Y() &&
		tip.Z()+miningHeadR+safeDist > scoopHazLower.Z()
	toolBackInScoop := toolBackLowerPt.Y()+safeDist > scoopHazUpper.Y() &&
		toolBackLowerPt.Z()-safeDist < scoopHazUpper.Z() &&
		toolBackLowerPt.Y()-safeDist < scoopHazLower.Y() &&
		toolBackLowerPt.Z()+safeDist > scoopHazLower.Z()

	if (headInScoop || toolBackInScoop) && p.Attached.IsGrinder() && math.Abs(p.Attached.Grinder) > smallPower {
		return "can't spin inside scoop"
	}

	distToScoopBottom := pointToLineDist(scoopHazMid, scoopHazLower, tip)
	headNearBottom := distToScoopBottom < miningHeadR+safeDist
	headUnderScoop := tip.Z()-miningHeadR < scoopHazMid.Z() || tip.Z()-miningHeadR < scoopHazLower.Z()

	distToScoopBack := pointToLineDist(scoopHazMid, scoopHazUpper, tip)
	headNearBack := distToScoopBack < miningHeadR+safeDist
	headBehindScoop := tip.Y() < scoopHazMid.Y() && tip.Z()-miningHeadR < scoopHazUpper.Z()

	if headNearBottom && !headUnderScoop {
		switch {
		case p.Boom > smallPower:
			return "boom pushing tool into scoop"
		case p.Stick < -smallPower:
			return "stick pushing tool into scoop"
		case p.Tilt > smallPower:
			return "tilting tool into scoop"
		case p.Dump > smallPower:
			return "dump pushing scoop into tool"
		case p.Fork > smallPower:
			return "fork pushing scoop into tool"
		}
	}
	if headNearBottom && headUnderScoop {
		switch {
		case p.Boom < -smallPower:
			return "boom pushing tool into scoop"
		case p.Stick < -smallPower:
			return "stick pushing tool into scoop"
		case p.Tilt < -smallPower:
			return "tilting tool into scoop"
		case p.Dump < -smallPower:
			return "dump pushing scoop into tool"
		case p.Fork < -smallPower:
			return "fork pushing scoop into tool"
		}
	}
	if headNearBack && !headBehindScoop {
		switch {
		case p.Boom < -smallPower:
			return "boom pushing tool into scoop"
		case p.Stick < -smallPower:
			return "stick pushing tool into scoop"
		case p.Tilt < -smallPower:
			return "tilting tool into scoop"
		case p.Dump < -smallPower:
			return "dump pushing scoop into tool"
		case math.Abs(p.Fork) > smallPower:
			return "fork pushing scoop into tool"
		}
	}
	if headNearBack && headBehindScoop {
		switch {
		case p.Boom > smallPower:
			return "boom pushing tool into scoop"
		case p.Stick < -smallPower:
			return "stick pushing tool into scoop"
		case math.Abs(p.Tilt) > smallPower:
			return "tilting tool into scoop (use stick/boom)"
		case p.Dump > smallPower:
			return "dump pushing scoop into tool"
		case p.Fork > smallPower:
			return "fork pushing scoop into tool"
		}
	}

	toolUpperScoopUpperDist := pointToLineDist(toolBackUpperPt, toolBackLowerPt, scoopHazUpper)
	toolLowerScoopUpperDist := pointToLineDist(toolBackLowerPt, tip, scoopHazUpper)
	toolUpperScoopLowerDist := pointToLineDist(toolBackUpperPt, toolBackLowerPt, scoopHazLower)
	toolLowerScoopLowerDist := pointToLineDist(toolBackLowerPt, tip, scoopHazLower)

	toolBackNearScoopUpper := toolUpperScoopUpperDist < safeDist || toolLowerScoopUpperDist < safeDist
	toolBackNearScoopLower := toolUpperScoopLowerDist < safeDist || toolLowerScoopLowerDist < safeDist

	if toolBackNearScoopUpper {
		switch {
		case math.Abs(p.Boom) > smallPower:
			return "boom pushing tool into scoop (use stick!)"
		case p.Stick < -smallPower:
			return "stick pushing tool into scoop"
		case p.Tilt < -smallPower:
			return "tilting tool into scoop"
		case math.Abs(p.Dump) > smallPower:
			return "dump pushing scoop into tool"
		case p.Fork > smallPower:
			return "fork pushing scoop into tool"
		}
	}
	if toolBackNearScoopLower {
		switch {
		case p.Boom > smallPower:
			return "boom pushing tool into scoop"
		case p.Stick < -smallPower:
			return "stick pushing tool into scoop"
		case p.Tilt < -smallPower:
			return "tilting tool into scoop"
		case p.Dump < -smallPower:
			return "dump pushing scoop into tool"
		case p.Fork > smallPower:
			return "fork pushing scoop into tool"
		}
	}

	// (3) Tool<->boom interference.
	tipToBoom := joint.ParentFromChild(j, joint.Boom, joint.Grinder, mgl64.Vec3{0, 0, 0})
	toolBackToBoom := joint.ParentFromChild(j, joint.Boom, joint.Grinder, toolBackLower)

	headDistToBoom := pointToLineDist(boomHazLower, boomHazUpper, tipToBoom)
	toolDistToBoom := pointToLineDist(boomHazLower, boomHazUpper, toolBackToBoom)

	if headDistToBoom < miningHeadR+safeDist || toolDistToBoom < safeDist {
		switch {
		case p.Stick < -smallPower:
			return "stick pushing tool into boom"
		case p.Tilt < -smallPower:
			return "tilting tool into boom"
		}
	}

	return ""
}

// modScoopLocalFromWorld maps a world-space point into the scoop's
// "mod_scoop" frame: the dump link's frame with its Y and Z basis vectors
// each rotated a further 45 degrees in the YZ plane, fixing up the scoop's
// resting 45-degree tilt. Only the Y/Z result is meaningful; X is always 0,
// matching the original collision code which never reads tool-frame X.
func modScoopLocalFromWorld(dumpTransform mgl64.Mat4, world mgl64.Vec3) mgl64.Vec3 {
	yBasis := mgl64.Vec3{dumpTransform[4], dumpTransform[5], dumpTransform[6]}
	zBasis := mgl64.Vec3{dumpTransform[8], dumpTransform[9], dumpTransform[10]}
	origin := mgl64.Vec3{dumpTransform[12], dumpTransform[13], dumpTransform[14]}

	yAngleOld := math.Atan(yBasis.Z() / yBasis.Y())
	zAngleOld := math.Atan(zBasis.Z() / zBasis.Y())
	yAngleNew := yAngleOld + math.Pi/4.0
	zAngleNew := zAngleOld + math.Pi/4.0

	modY := mgl64.Vec3{0, math.Cos(yAngleNew), math.Sin(yAngleNew)}
	modZ := mgl64.Vec3{0, math.Cos(zAngleNew), math.Sin(zAngleNew)}

	dy := world.Y() - origin.Y()
	dz := world.Z() - origin.Z()
	det := modY.Y()*modZ.Z() - modZ.Y()*modY.Z()
	localY := (modZ.Z()*dy - modZ.Y()*dz) / det
	localZ := (-modY.Z()*dy + modY.Y()*dz) / det
	return mgl64.Vec3{0, localY, localZ}
}
