package robot

import (
	"context"
	"math/rand"
	"time"

	"github.com/AuroraRoboticsLab/MiningRobot/driver"
	"github.com/AuroraRoboticsLab/MiningRobot/exchange"
)

// simSensorDelta bounds how far one simulated reading may drift from the
// previous tick: a small bounded jitter every interval rather than
// resampling from scratch, so a simulated run still exercises the bridge's
// vibration/stall/wrap logic instead of sitting dead flat.
const simSensorDelta = 40

// simInterval is how often the simulator refreshes the exchange.
const simInterval = 100 * time.Millisecond

// levelQuat is the scaled identity quaternion: no tilt, no roll.
var levelQuat = [4]int16{16384, 0, 0, 0}

// RunSimulator stands in for the slot driver processes: it periodically
// writes plausible sensor readings into x so a backend started with
// --sim can run its whole tick loop (bridge, autonomy, control) with no
// serial hardware attached. seed selects the jitter sequence so a sim run
// is reproducible; an empty seed falls back to an unseeded source.
func RunSimulator(ctx context.Context, x *exchange.Nanoslot, seed string) {
	src := rand.NewSource(seedFromString(seed))
	rng := rand.New(src)

	var driveCounts [2]byte
	var mineSpin byte = 40
	var frameCheck, boomCheck driver.GravityCheck

	connected := exchange.State{Connected: 1}
	x.SlotF1.State.Write(exchange.State0xF1{State: connected})
	x.SlotA1.State.Write(exchange.State0xA1{State: connected})
	x.SlotC0.State.Write(exchange.State0xC0{State: connected})
	x.SlotD0.State.Write(exchange.State0xD0{State: connected})
	x.SlotF0.State.Write(exchange.State0xF0{State: connected})

	ticker := time.NewTicker(simInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f1Sensor := exchange.Sensor0xF1{
				Heartbeat: nextHeartbeat(x.SlotF1.Sensor.Read().Heartbeat),
				IMU:       [4]exchange.IMURaw{jitterIMU(rng), jitterIMU(rng), jitterIMU(rng), jitterIMU(rng)},
				LoadL:     -500, LoadR: -500,
			}
			x.SlotF1.Sensor.Write(f1Sensor)
			framePitch, frameRoll, frameOK := frameCheck.Check(f1Sensor.IMU[0])
			boomPitch, boomRoll, boomOK := boomCheck.Check(f1Sensor.IMU[1])
			forkPitch, forkRoll, _ := driver.IMUPitchRoll(f1Sensor.IMU[2])
			dumpPitch, dumpRoll, _ := driver.IMUPitchRoll(f1Sensor.IMU[3])
			x.SlotF1.State.Write(exchange.State0xF1{
				State: connected,
				Frame: exchange.IMUState{PitchDeg: framePitch, RollDeg: frameRoll, Valid: frameOK},
				Boom:  exchange.IMUState{PitchDeg: boomPitch, RollDeg: boomRoll, Valid: boomOK},
				Fork:  exchange.IMUState{PitchDeg: forkPitch, RollDeg: forkRoll, Valid: true},
				Dump:  exchange.IMUState{PitchDeg: dumpPitch, RollDeg: dumpRoll, Valid: true},
				LoadL: -float64(f1Sensor.LoadL) / 1000,
				LoadR: -float64(f1Sensor.LoadR) / 1000,
			})

			a1Sensor := exchange.Sensor0xA1{
				Heartbeat: nextHeartbeat(x.SlotA1.Sensor.Read().Heartbeat),
				IMU:       [2]exchange.IMURaw{jitterIMU(rng), jitterIMU(rng)},
				LoadL:     -500, LoadR: -500,
			}
			x.SlotA1.Sensor.Write(a1Sensor)
			stickPitch, stickRoll, _ := driver.IMUPitchRoll(a1Sensor.IMU[0])
			toolPitch, toolRoll, _ := driver.IMUPitchRoll(a1Sensor.IMU[1])
			x.SlotA1.State.Write(exchange.State0xA1{
				State: connected,
				Stick: exchange.IMUState{PitchDeg: stickPitch, RollDeg: stickRoll, Valid: true},
				Tool:  exchange.IMUState{PitchDeg: toolPitch, RollDeg: toolRoll, Valid: true},
				LoadL: -float64(a1Sensor.LoadL) / 1000,
				LoadR: -float64(a1Sensor.LoadR) / 1000,
			})

			driveCounts[0] += byte(1 + rng.Intn(3))
			driveCounts[1] += byte(1 + rng.Intn(3))
			x.SlotD0.Sensor.Write(exchange.Sensor0xD0{
				Heartbeat: nextHeartbeat(x.SlotD0.Sensor.Read().Heartbeat),
				Counts:    driveCounts,
			})

			mineSpin = jitterByte(rng, mineSpin, simSensorDelta)
			c0Sensor := exchange.Sensor0xC0{
				Heartbeat: nextHeartbeat(x.SlotC0.Sensor.Read().Heartbeat),
				SpinCount: mineSpin,
				Cell0:     3700, Cell1: 3700,
			}
			x.SlotC0.Sensor.Write(c0Sensor)
			cutterCell := float64(c0Sensor.Cell1) / 1000
			x.SlotC0.State.Write(exchange.State0xC0{
				State:  connected,
				Spin:   float64(c0Sensor.SpinCount),
				Load:   float64(c0Sensor.Cell0) / 1000,
				Cell:   cutterCell,
				Charge: driver.ChargePercent(cutterCell),
			})

			f0Sensor := exchange.Sensor0xF0{
				Heartbeat: nextHeartbeat(x.SlotF0.Sensor.Read().Heartbeat),
				Cell1:     3700,
			}
			x.SlotF0.Sensor.Write(f0Sensor)
			driveCell := float64(f0Sensor.Cell1) / 1000
			x.SlotF0.State.Write(exchange.State0xF0{
				State:  connected,
				Cell:   driveCell,
				Charge: driver.ChargePercent(driveCell),
			})
		}
	}
}

func nextHeartbeat(h exchange.Heartbeat) exchange.Heartbeat { return h + 1 }

// jitterIMU reports a level orientation with a slowly drifting accelerometer
// reading, enough to exercise the bridge's vibration term without ever
// tripping its gravity sanity check.
func jitterIMU(rng *rand.Rand) exchange.IMURaw {
	return exchange.IMURaw{
		Quat:  levelQuat,
		Accel: [3]int16{0, 0, int16(8192 + rng.Intn(21) - 10)},
	}
}

// jitterByte nudges cur by up to +/-delta, clamped to stay non-negative.
func jitterByte(rng *rand.Rand, cur byte, delta int) byte {
	d := rng.Intn(2*delta+1) - delta
	v := int(cur) + d
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return byte(v)
}

// seedFromString folds seed into an int64 PRNG seed; an empty seed falls
// back to a fixed constant rather than the current time, keeping --sim
// runs with no seed argument reproducible too.
func seedFromString(seed string) int64 {
	if seed == "" {
		return 1
	}
	var h int64 = 1469598103934665603 // FNV-1a 64-bit offset basis
	for _, c := range seed {
		h ^= int64(c)
		h *= 1099511628211
	}
	return h
}
