package autonomy

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/AuroraRoboticsLab/MiningRobot/mining"
	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
)

func newState(run robotstate.RunState) *robotstate.State {
	r := &robotstate.State{Run: run, Tune: robotstate.DefaultTuneable()}
	return r
}

func TestEnterStateResetsSubstepAndPower(t *testing.T) {
	Convey("EnterState zeroes substep, drive power, and stamps StateStartTime", t, func() {
		m := New(nil)
		r := newState(robotstate.Drive)
		r.Substep = 3
		r.Power.Left, r.Power.Right = 0.5, -0.5

		m.EnterState(r, robotstate.Scan, 12.0)

		So(r.Run, ShouldEqual, robotstate.Scan)
		So(r.LastRun, ShouldEqual, robotstate.Drive)
		So(r.Substep, ShouldEqual, 0)
		So(r.StateStartTime, ShouldEqual, 12.0)
		So(r.Power.Left, ShouldEqual, 0)
		So(r.Power.Right, ShouldEqual, 0)
	})

	Convey("entering Autonomy stamps AutonomyStartTime", t, func() {
		m := New(nil)
		r := newState(robotstate.Drive)
		m.EnterState(r, robotstate.Autonomy, 5.0)
		So(r.AutonomyStartTime, ShouldEqual, 5.0)
	})
}

func TestScanTransitionsToMineStartAfterWait(t *testing.T) {
	Convey("scan waits scanWaitTime with IMUs ok, then advances to mine_start", t, func() {
		m := New(nil)
		r := newState(robotstate.Scan)
		r.Sensor.IMUsOK = true
		r.StateStartTime = 0

		m.Tick(r, 1.0, 0.02)
		So(r.Run, ShouldEqual, robotstate.Scan)

		m.Tick(r, scanWaitTime+0.01, 0.02)
		So(r.Run, ShouldEqual, robotstate.MineStart)
	})

	Convey("scan fails back to drive if the IMUs aren't ready", t, func() {
		m := New(nil)
		r := newState(robotstate.Scan)
		r.Sensor.IMUsOK = false

		m.Tick(r, 1.0, 0.02)
		So(r.Run, ShouldEqual, robotstate.Drive)
	})
}

func TestMineStallBackoffStopsInline(t *testing.T) {
	Convey("a stalled cutter backs off and eventually forces STOP without ever visiting mine_stall", t, func() {
		m := New(nil)
		r := newState(robotstate.Mine)
		r.Sensor.MineRate = 0 // stalled: triggers backoff every tick

		ticks := 0
		for r.Run == robotstate.Mine && ticks < 100 {
			m.Tick(r, float64(ticks), 0.02)
			ticks++
		}

		So(r.Run, ShouldEqual, robotstate.STOP)
		So(r.StallBackoff, ShouldEqual, mineStallReset)
		So(r.Power.Attached.Grinder, ShouldEqual, 0)
	})
}

func TestMineFinishTransitionsToSTOP(t *testing.T) {
	Convey("mine_finish moves to the finish pose and lands in STOP, not weigh", t, func() {
		m := New(nil)
		r := newState(robotstate.MineFinish)
		r.Joint = mining.MineJointFinish

		m.Tick(r, 1.0, 0.02)
		So(r.Run, ShouldEqual, robotstate.STOP)
		So(r.Power.Attached.Grinder, ShouldEqual, 0)
	})
}

func TestHaulStartFoldsDriveIntoTotal(t *testing.T) {
	Convey("haul_start folds the leg's accumulated drive into DriveTotal and resets it", t, func() {
		m := New(nil)
		r := newState(robotstate.HaulStart)
		r.Accum.Drive = 42.0
		r.Accum.DriveTotal = 100.0

		m.Tick(r, 1.0, 0.02)

		So(r.Accum.DriveTotal, ShouldEqual, 142.0)
		So(r.Accum.Drive, ShouldEqual, 0)
		So(r.Run, ShouldEqual, robotstate.HaulOut)
	})
}

func TestHaulOutAndBackTerminateOnDriveLimit(t *testing.T) {
	Convey("haul_out advances to haul_back once the drive limit accrues", t, func() {
		m := New(nil)
		r := newState(robotstate.HaulOut)
		r.Tune.Drive = 1.0
		r.Accum.Drive = haulDriveLimit - 0.001

		m.Tick(r, 1.0, 0.01)
		So(r.Run, ShouldEqual, robotstate.HaulBack)
	})

	Convey("haul_out terminates early on low battery", t, func() {
		m := New(nil)
		r := newState(robotstate.HaulOut)
		r.Sensor.ChargeD = 5.0

		m.Tick(r, 1.0, 0.01)
		So(r.Run, ShouldEqual, robotstate.HaulBack)
	})
}

func TestHaulDumpFoldsScoopIntoTotalThenStops(t *testing.T) {
	Convey("haul_dump folds Scoop into ScoopTotal and stops once the dump pose is reached", t, func() {
		m := New(nil)
		r := newState(robotstate.HaulDump)
		r.Joint = dumpJointScoop
		r.Accum.Scoop = 12.5
		r.Accum.ScoopTotal = 30.0

		m.Tick(r, 1.0, 0.02)

		So(r.Accum.ScoopTotal, ShouldEqual, 42.5)
		So(r.Accum.Scoop, ShouldEqual, 0)
		So(r.Run, ShouldEqual, robotstate.STOP)
	})
}

func TestHaulFinishFallsThroughToSTOP(t *testing.T) {
	Convey("haul_finish is an inert fallback straight to STOP", t, func() {
		m := New(nil)
		r := newState(robotstate.HaulFinish)
		m.Tick(r, 1.0, 0.02)
		So(r.Run, ShouldEqual, robotstate.STOP)
	})
}

func TestMineStallStateReentersMine(t *testing.T) {
	Convey("an external request into mine_stall immediately re-enters mine", t, func() {
		m := New(nil)
		r := newState(robotstate.MineStall)
		m.Tick(r, 1.0, 0.02)
		So(r.Run, ShouldEqual, robotstate.Mine)
	})
}

func TestWeighSubstepsAdvanceOnTimersAndStopAtEnd(t *testing.T) {
	Convey("weigh steps through settle/hold substeps and computes Scoop from the load cells", t, func() {
		m := New(nil)
		r := newState(robotstate.Weigh)
		r.Sensor.IMUsOK = true
		r.Joint = weighJointScoop

		m.Tick(r, 0.0, 0.02) // substep 0 -> 1, pose already at target
		So(r.Substep, ShouldEqual, 1)

		m.Tick(r, weighStepTime+0.01, 0.02) // substep 1 -> 2
		So(r.Substep, ShouldEqual, 2)

		r.Sensor.ScoopL = -3.0
		r.Sensor.ScoopR = -4.0
		m.Tick(r, 2*weighStepTime+0.02, 0.02) // substep 2 -> 3, computes Scoop
		So(r.Substep, ShouldEqual, 3)
		So(r.Accum.Scoop, ShouldEqual, 7.0)

		r.Joint = weighJointFinish
		m.Tick(r, 2*weighStepTime+0.03, 0.02) // substep 3: at finish pose, stop
		So(r.Run, ShouldEqual, robotstate.STOP)
	})

	Convey("weigh fails back to drive without IMUs", t, func() {
		m := New(nil)
		r := newState(robotstate.Weigh)
		r.Sensor.IMUsOK = false
		m.Tick(r, 1.0, 0.02)
		So(r.Run, ShouldEqual, robotstate.Drive)
	})
}

func TestApplyHazardsInsanityStreakForcesDrive(t *testing.T) {
	Convey("a sustained hazard veto forces a drop back to manual drive", t, func() {
		m := New(nil)
		r := newState(robotstate.Drive)
		r.Joint.Angles[1] = -80 // dump down
		r.Power.Left = 1.0      // driving with the scoop down: always vetoed

		for i := 0; i < insanityLimit; i++ {
			m.Tick(r, float64(i), 0.02)
		}
		So(r.Run, ShouldEqual, robotstate.Drive)
		So(r.Power.Left, ShouldEqual, 0)
	})

	Convey("DriveRaw bypasses the hazard checker entirely", t, func() {
		m := New(nil)
		r := newState(robotstate.DriveRaw)
		r.Joint.Angles[1] = -80
		r.Power.Left = 1.0

		for i := 0; i < insanityLimit+5; i++ {
			m.Tick(r, float64(i), 0.02)
		}
		So(r.Run, ShouldEqual, robotstate.DriveRaw)
		So(r.Power.Left, ShouldEqual, 1.0)
	})
}

func TestDailyStartResetsAccumAndGoesToDrive(t *testing.T) {
	Convey("daily_start clears every accumulator and drops into drive", t, func() {
		m := New(nil)
		r := newState(robotstate.DailyStart)
		r.Accum = robotstate.Accum{Scoop: 1, ScoopTotal: 2, Drive: 3, DriveTotal: 4, OpTotal: 5}

		m.Tick(r, 1.0, 0.02)

		So(r.Accum, ShouldResemble, robotstate.Accum{OpTotal: 0.02})
		So(r.Run, ShouldEqual, robotstate.Drive)
	})
}
