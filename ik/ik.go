// Package ik solves the excahauler's planar (YZ) two-bar inverse-kinematics
// problem: given a target position for the tilt link's origin and a desired
// tool pitch, produce boom/stick/tilt joint angles.
package ik

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/AuroraRoboticsLab/MiningRobot/joint"
)

// ErrUnreachable is returned by Solver.SolveTilt when the target lies
// outside the boom/stick's combined reach.
var ErrUnreachable = fmt.Errorf("ik: target unreachable")

// Solver holds the arm's fixed link lengths and the resting angle of each
// link's origin vector, both computed once from the static link geometry.
type Solver struct {
	boomLen, stickLen     float64
	boomStart, stickStart float64
}

// NewSolver derives boom_len/stick_len/boom_start/stick_start from the
// static link table, exactly as excahauler_IK's constructor does.
func NewSolver() *Solver {
	boomOrigin := joint.Geom(joint.Stick).Offset
	stickOrigin := joint.Geom(joint.Tilt).Offset
	return &Solver{
		boomLen:    boomOrigin.Len(),
		stickLen:   stickOrigin.Len(),
		boomStart:  frameDegrees(boomOrigin),
		stickStart: frameDegrees(stickOrigin),
	}
}

// frameDegrees returns the angle, in degrees about the X axis, of v's
// projection onto the YZ plane: the Y axis is 0 degrees, Z is +90.
func frameDegrees(v mgl64.Vec3) float64 {
	return mgl64.RadToDeg(math.Atan2(v.Z(), v.Y()))
}

// SolveTilt updates j's boom, stick and tilt angles so the tilt link's
// origin reaches tiltLoc (in frame coordinates relative to the boom's
// parent) and the tool points at toolDeg in the YZ plane. Returns
// ErrUnreachable if tiltLoc is farther than boomLen+stickLen or closer than
// |boomLen-stickLen|.
func (s *Solver) SolveTilt(j *joint.JointState, tiltLoc mgl64.Vec3, toolDeg float64) error {
	boomOrigin := joint.Geom(joint.Boom).Offset
	tiltRel := tiltLoc.Sub(boomOrigin)
	tiltLen := tiltRel.Len()
	tiltDeg := frameDegrees(tiltRel)

	a, b, c := s.boomLen, tiltLen, s.stickLen

	cosTB := (a*a + b*b - c*c) / (2.0 * a * b)
	if cosTB > 1.0 || cosTB < -1.0 {
		return ErrUnreachable
	}
	tbDeg := mgl64.RadToDeg(math.Acos(cosTB))
	boomAngle := tiltDeg + tbDeg - s.boomStart

	cosSB := (a*a + c*c - b*b) / (2.0 * a * c)
	if cosSB > 1.0 || cosSB < -1.0 {
		return ErrUnreachable
	}
	sbDeg := mgl64.RadToDeg(math.Acos(cosSB))
	stickAngle := sbDeg - s.stickStart + s.boomStart - 180.0

	tiltAngle := toolDeg - stickAngle - boomAngle
	if tiltAngle < -180.0 {
		tiltAngle += 360.0
	}

	j.Angles[joint.Geom(joint.Boom).JointIndex] = boomAngle
	j.Angles[joint.Geom(joint.Stick).JointIndex] = stickAngle
	j.Angles[joint.Geom(joint.Tilt).JointIndex] = tiltAngle
	return nil
}
