package power

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSanitizeClampsAndRejectsNaN(t *testing.T) {
	Convey("Sanitize clamps in-range values and zeroes anything electrically insane", t, func() {
		v := Vector{Left: 2, Right: -2, Fork: math.NaN(), Dump: 0.5}
		v.Attached = Attached{Kind: AttachedGrinder, Grinder: 10}

		got := v.Sanitize()
		So(got.Left, ShouldEqual, 1.0)
		So(got.Right, ShouldEqual, -1.0)
		So(got.Fork, ShouldEqual, 0)
		So(got.Dump, ShouldEqual, 0.5)
		So(got.Attached.Grinder, ShouldEqual, 0) // |10|>4, insane
	})

	Convey("Sanitize only touches the Arm fields when an arm is attached", t, func() {
		v := Vector{}
		v.Attached = Attached{Kind: AttachedArm, Arm: [5]float64{2, -2, math.NaN(), 0.3, 0}}
		got := v.Sanitize()
		So(got.Attached.Arm, ShouldResemble, [5]float64{1, -1, 0, 0.3, 0})
	})
}

func TestMotorScale(t *testing.T) {
	Convey("MotorScale maps [-1,1] onto [-100,100] and rejects insane input", t, func() {
		So(MotorScale(1.0), ShouldEqual, 100)
		So(MotorScale(-1.0), ShouldEqual, -100)
		So(MotorScale(0.5), ShouldEqual, 50)
		So(MotorScale(5), ShouldEqual, 0)
		So(MotorScale(math.NaN()), ShouldEqual, 0)
	})
}

func TestAttachedKindPredicates(t *testing.T) {
	Convey("IsGrinder/IsArm reflect Kind alone", t, func() {
		g := Attached{Kind: AttachedGrinder}
		So(g.IsGrinder(), ShouldBeTrue)
		So(g.IsArm(), ShouldBeFalse)

		a := Attached{Kind: AttachedArm}
		So(a.IsArm(), ShouldBeTrue)
		So(a.IsGrinder(), ShouldBeFalse)

		n := Attached{Kind: AttachedNone}
		So(n.IsArm(), ShouldBeFalse)
		So(n.IsGrinder(), ShouldBeFalse)
	})
}
