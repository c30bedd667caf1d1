package robotstate

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRunStateString(t *testing.T) {
	Convey("every declared run state has a printable name", t, func() {
		So(STOP.String(), ShouldEqual, "STOP")
		So(Mine.String(), ShouldEqual, "mine")
		So(DailyStart.String(), ShouldEqual, "daily_start")
	})

	Convey("an out-of-range run state prints as unknown", t, func() {
		So(RunState(-1).String(), ShouldEqual, "unknown")
		So(runStateCount.String(), ShouldEqual, "unknown")
	})
}

func TestDefaultTuneable(t *testing.T) {
	Convey("the factory defaults match the original control panel's starting values", t, func() {
		d := DefaultTuneable()
		So(d.Aggro, ShouldEqual, 1.0)
		So(d.Tool, ShouldEqual, 0.0)
		So(d.Cut, ShouldEqual, 1.0)
		So(d.Drive, ShouldEqual, 1.0)
	})
}
