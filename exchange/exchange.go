// Package exchange implements the lock-free shared-memory layer that
// couples the backend process to its N peripheral driver processes.
// Each field of interest lives in a Channel[T], a single-writer/many-reader
// seqlock: writes bump an odd/even sequence counter around the copy, reads
// retry whenever they observe the counter mid-write.
package exchange

import "sync/atomic"

// Channel is a seqlock-guarded value of type T. The zero value is a valid,
// empty channel. Exactly one goroutine (or OS process, via shared memory)
// may call Write; any number may call Read concurrently.
type Channel[T any] struct {
	seq  atomic.Uint32
	data T
}

// Write stores v, visible to readers only once the sequence counter returns
// to even.
func (c *Channel[T]) Write(v T) {
	c.seq.Add(1) // now odd: a write is in progress
	c.data = v
	c.seq.Add(1) // now even: the write is complete
}

// Read returns the most recently written value, retrying if it observes a
// write in progress or straddles one.
func (c *Channel[T]) Read() T {
	for {
		s1 := c.seq.Load()
		if s1&1 != 0 {
			continue
		}
		v := c.data
		s2 := c.seq.Load()
		if s1 == s2 {
			return v
		}
	}
}

// Byte, Heartbeat, MotorPercent, Voltage, ActuatorAngle and Counter mirror
// the firmware's narrow wire types, so the Go and Arduino-side struct
// layouts stay byte-compatible in spirit.
type (
	Byte          = uint8
	Heartbeat     = uint8
	MotorPercent  = int8
	Voltage       = int16
	ActuatorAngle = int16
	Counter       = uint8
)

// Autonomy is shared by every slot: mode 0 is STOP/safe mode, 1-2 is manual
// driving, and anything greater is autonomous driving.
type Autonomy struct {
	Mode Byte
}

// State is the generic per-slot connection state every firmware state type
// embeds.
type State struct {
	Connected Byte
}

// Debug is the per-slot debug payload kept alongside command/sensor/state.
type Debug struct {
	Flags       Byte
	PacketCount Byte
}

// Slot is one microcontroller's worth of exchange data: the command sent to
// it, the raw sensor data read back, the parsed persistent state derived
// from that sensor data, and its debug payload. C is the command struct, S
// the raw sensor struct, St the parsed state struct for one slot ID.
type Slot[C, S, St any] struct {
	Command Channel[C]
	Sensor  Channel[S]
	State   Channel[St]
	Debug   Channel[Debug]
}

// Command0x70 is sent to a slender-arm single-motor actuator controller.
type Command0x70 struct {
	Autonomy Autonomy
	Torque   [1]MotorPercent
	Target   [1]ActuatorAngle
}

// Sensor0x70 is read back from a slender-arm actuator controller.
type Sensor0x70 struct {
	Heartbeat Heartbeat
	Mag       [1]Byte
	Angle     [1]ActuatorAngle
}

// State0x70 is the parsed, degrees-scaled readback angle.
type State0x70 struct {
	State
	Angle [1]float64
}

// Command0xA0 drives the arm electronics box's four brushed linear actuators.
type Command0xA0 struct {
	Autonomy Autonomy
	Motor    [4]MotorPercent
}

// Sensor0xA0 reports back from the arm electronics box.
type Sensor0xA0 struct {
	Heartbeat Heartbeat
	Stop      Byte
}

// State0xA0 carries no extra parsed fields beyond connection state.
type State0xA0 struct {
	State
}

// Command0xA1 controls the arm IMU/load-cell slot.
type Command0xA1 struct {
	Autonomy Autonomy
	ReadL    Byte // if 1, read from the left load-cell channel
}

// Sensor0xA1 is the raw arm IMU + load-cell readback.
type Sensor0xA1 struct {
	IMU       [2]IMURaw // index 0: tool, index 1: stick
	LoadL     int32
	LoadR     int32
	Heartbeat Heartbeat
	Spare     [3]Byte
}

// State0xA1 is the parsed arm IMU + load-cell state.
type State0xA1 struct {
	State
	Stick IMUState // arm stick frame
	Tool  IMUState // tool coupler (tilt + spin)
	LoadL float64  // kgf, negative = down
	LoadR float64
}

// Command0xD0 drives the four brushed drive motors.
type Command0xD0 struct {
	Autonomy Autonomy
	Motor    [4]MotorPercent
}

// Sensor0xD0 is the raw drive-encoder readback.
type Sensor0xD0 struct {
	Heartbeat Heartbeat
	Raw       Byte
	Stall     Byte
	Counts    [2]Counter
}

// State0xD0 carries no extra parsed fields beyond connection state.
type State0xD0 struct {
	State
}

// Command0xF0 drives the back box's linear actuators and reports battery
// voltage.
type Command0xF0 struct {
	Autonomy Autonomy
	Motor    [4]MotorPercent
}

// Sensor0xF0 is the raw back-box readback.
type Sensor0xF0 struct {
	Heartbeat Heartbeat
	Stop      Byte
	Cell1     Voltage
}

// State0xF0 is the parsed drive-battery state.
type State0xF0 struct {
	State
	Cell   float64 // volts on the first cell
	Charge float64 // percent, normally 20-80
}

// Command0xF1 controls the forward IMU/load-cell slot.
type Command0xF1 struct {
	Autonomy Autonomy
	ReadL    Byte
}

// Sensor0xF1 is the raw forward IMU + load-cell readback (frame/boom/fork/dump).
type Sensor0xF1 struct {
	IMU       [4]IMURaw
	LoadL     int32
	LoadR     int32
	Heartbeat Heartbeat
	Spare     [3]Byte
}

// State0xF1 is the parsed frame/boom/fork/dump IMU + load-cell state.
type State0xF1 struct {
	State
	Frame IMUState
	Boom  IMUState
	Fork  IMUState
	Dump  IMUState
	LoadL float64
	LoadR float64
}

// Command0xC0 drives the mining head cutter.
type Command0xC0 struct {
	Autonomy Autonomy
	Mine     MotorPercent
}

// Sensor0xC0 is the raw cutter readback.
type Sensor0xC0 struct {
	Heartbeat Heartbeat
	SpinCount Counter
	Cell0     Voltage
	Cell1     Voltage
}

// State0xC0 is the parsed cutter state.
type State0xC0 struct {
	State
	Spin   float64 // spin count per second
	Load   float64 // volts on Cell0, the cutter pack's secondary cell
	Cell   float64 // volts on Cell1, feeds Charge
	Charge float64
}

// Command0xEE drives the debug/development nano.
type Command0xEE struct {
	Autonomy Autonomy
	LED      MotorPercent
}

// Sensor0xEE is the debug nano's readback.
type Sensor0xEE struct {
	Heartbeat Heartbeat
	Latency   Byte
}

// State0xEE carries no extra parsed fields beyond connection state.
type State0xEE struct {
	State
}

// IMURaw is the raw accelerometer/gyro/quaternion sample from one onboard
// IMU, as read off the wire.
type IMURaw struct {
	Quat  [4]int16 // scaled quaternion, w/x/y/z
	Accel [3]int16
	Gyro  [3]int16
}

// IMUState is the parsed IMU orientation carried in a slot's State record.
type IMUState struct {
	PitchDeg float64
	RollDeg  float64
	Valid    bool
}

// Nanoslot is the full shared-memory record: one slot per microcontroller,
// plus the backend heartbeat and shared autonomy mode every slot reads.
// Field order matches the original layout exactly: size, backend heartbeat,
// autonomy, padding, then each slot in ID order.
type Nanoslot struct {
	Size             uint16
	BackendHeartbeat Channel[Heartbeat]
	Autonomy         Channel[Autonomy]
	pad0             [7]byte

	Slot70 Slot[Command0x70, Sensor0x70, State0x70]
	Slot71 Slot[Command0x70, Sensor0x70, State0x70]
	Slot72 Slot[Command0x70, Sensor0x70, State0x70]
	Slot73 Slot[Command0x70, Sensor0x70, State0x70]

	SlotA0 Slot[Command0xA0, Sensor0xA0, State0xA0]
	SlotA1 Slot[Command0xA1, Sensor0xA1, State0xA1]

	SlotC0 Slot[Command0xC0, Sensor0xC0, State0xC0]

	SlotD0 Slot[Command0xD0, Sensor0xD0, State0xD0]

	SlotF0 Slot[Command0xF0, Sensor0xF0, State0xF0]
	SlotF1 Slot[Command0xF1, Sensor0xF1, State0xF1]

	SlotEE Slot[Command0xEE, Sensor0xEE, State0xEE]
}

// SanityCheckSize mirrors nanoslot_exchange::sanity_check_size: a driver
// reports err if its own compiled struct size disagrees with wantSize,
// most likely meaning the backend and driver were built from different
// versions of this package.
func SanityCheckSize(wantSize uint16, gotSize uint16) bool {
	return wantSize == gotSize
}
