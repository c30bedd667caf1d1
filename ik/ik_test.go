package ik

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/AuroraRoboticsLab/MiningRobot/joint"
)

func TestSolveTiltReachability(t *testing.T) {
	Convey("a target farther than boom+stick reach is unreachable", t, func() {
		s := NewSolver()
		far := mgl64.Vec3{0, s.boomLen + s.stickLen + 1, 0}
		var j joint.JointState
		err := s.SolveTilt(&j, far, 0)
		So(err, ShouldEqual, ErrUnreachable)
	})

	Convey("a target closer than |boomLen-stickLen| is unreachable", t, func() {
		s := NewSolver()
		boomOrigin := joint.Geom(joint.Boom).Offset
		tooClose := boomOrigin.Add(mgl64.Vec3{0, 0.001, 0.001})
		var j joint.JointState
		err := s.SolveTilt(&j, tooClose, 0)
		So(err, ShouldEqual, ErrUnreachable)
	})
}

func TestSolveTiltReachesTarget(t *testing.T) {
	Convey("a reachable target is hit within floating-point tolerance", t, func() {
		s := NewSolver()
		boomOrigin := joint.Geom(joint.Boom).Offset
		mid := boomOrigin.Add(mgl64.Vec3{0, s.boomLen*0.6 + s.stickLen*0.4, 0.05})

		var j joint.JointState
		err := s.SolveTilt(&j, mid, 0)
		So(err, ShouldBeNil)

		got := joint.PointWorldFromLocal(j, joint.Tilt, mgl64.Vec3{0, 0, 0})
		So(got.Y(), ShouldAlmostEqual, mid.Y(), 1e-6)
		So(got.Z(), ShouldAlmostEqual, mid.Z(), 1e-6)
	})
}
