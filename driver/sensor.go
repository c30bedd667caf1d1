package driver

import (
	"math"

	"github.com/AuroraRoboticsLab/MiningRobot/exchange"
)

// gravity sanity-check tunables: an IMU sample is rejected if its measured
// gravity magnitude deviates from standard gravity by more than
// 3*vibration + 4.0 m/s^2, where vibration is the sample-to-sample jerk.
const (
	standardGravity  = 9.8
	gravityVibeScale = 3.0
	gravityBaseSlack = 4.0
)

// IMUPitchRoll converts a raw quaternion/accelerometer sample into pitch/roll
// degrees and the accelerometer magnitude, the latter used by GravityCheck.
func IMUPitchRoll(raw exchange.IMURaw) (pitchDeg, rollDeg, accelMag float64) {
	qw, qx, qy, qz := float64(raw.Quat[0])/16384, float64(raw.Quat[1])/16384, float64(raw.Quat[2])/16384, float64(raw.Quat[3])/16384
	// standard quaternion-to-Euler, pitch about X, roll about Y
	sinp := 2 * (qw*qy - qz*qx)
	sinp = math.Max(-1, math.Min(1, sinp))
	pitchDeg = radToDeg(math.Asin(sinp))
	rollDeg = radToDeg(math.Atan2(2*(qw*qx+qy*qz), 1-2*(qx*qx+qy*qy)))

	ax, ay, az := float64(raw.Accel[0])/8192*9.8, float64(raw.Accel[1])/8192*9.8, float64(raw.Accel[2])/8192*9.8
	accelMag = math.Sqrt(ax*ax + ay*ay + az*az)
	return
}

func radToDeg(rad float64) float64 { return rad * 180 / math.Pi }

// GravityCheck tracks one physical IMU's sample-to-sample accelerometer
// magnitude, so it can flag a sample whose gravity reading has drifted too
// far from standard gravity given how much the magnitude has been jumping
// around lately. One instance per IMU stream; a slot with several IMUs
// needs several instances.
type GravityCheck struct {
	lastAccel float64
	haveLast  bool
}

// Check parses raw and reports whether its gravity magnitude is within
// tolerance.
func (g *GravityCheck) Check(raw exchange.IMURaw) (pitchDeg, rollDeg float64, ok bool) {
	pitchDeg, rollDeg, mag := IMUPitchRoll(raw)
	vibe := 0.0
	if g.haveLast {
		vibe = math.Abs(mag - g.lastAccel)
	}
	g.lastAccel = mag
	g.haveLast = true
	tolerance := gravityVibeScale*vibe + gravityBaseSlack
	ok = math.Abs(mag-standardGravity) <= tolerance
	return
}

// ChargePercent maps a single battery cell's voltage to a rough
// percent-remaining figure, linear between the pack's nominal empty and
// full cell voltages.
func ChargePercent(cellVolts float64) float64 {
	const empty, full = 3.0, 4.2
	pct := (cellVolts - empty) / (full - empty) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
