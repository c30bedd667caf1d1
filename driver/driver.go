// Package driver runs one microcontroller slot's serial link: opens the
// port, waits through the bootloader delay, and loops reading framed sensor
// packets into the shared exchange and writing framed command packets back
// out, independent of every other slot's process.
package driver

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/Masterminds/semver"
	"github.com/goburrow/serial"

	"github.com/AuroraRoboticsLab/MiningRobot/exchange"
	"github.com/AuroraRoboticsLab/MiningRobot/wire"
)

// BootloaderDelay is how long a driver waits after opening the port before
// sending anything, so a just-reset bootloader has time to hand control to
// the real firmware.
const BootloaderDelay = 2 * time.Second

// HeartbeatStallPackets is how many packets may pass with no backend
// heartbeat advance before a driver forces autonomy mode to 0 ("safe") on
// its own, regardless of what the exchange's autonomy channel says.
const HeartbeatStallPackets = 10

// disconnect thresholds, matching the firmware driver's cold-start vs
// previously-solid-connection policy.
const (
	disconnectColdStart   = 100
	disconnectAfterSolid  = 10
	solidConnectionPackets = 10
)

// ErrProtocolMismatch is returned when an ID handshake reports command or
// sensor struct sizes that don't match this driver's compiled-in sizes.
var ErrProtocolMismatch = fmt.Errorf("driver: ID packet struct size mismatch")

// ErrFirmwareVersion is returned when the firmware's version string fails
// the driver's semver constraint.
type ErrFirmwareVersion struct {
	Got, Want string
}

func (e *ErrFirmwareVersion) Error() string {
	return fmt.Sprintf("driver: firmware version %q does not satisfy %q", e.Got, e.Want)
}

// ErrFirmwareFatal is returned when the firmware reports an ERROR packet.
type ErrFirmwareFatal struct {
	Message string
}

func (e *ErrFirmwareFatal) Error() string { return "driver: firmware error: " + e.Message }

// Config configures one slot's driver process.
type Config struct {
	SlotID          byte
	Device          string   // e.g. "/dev/ttyUSB0"
	BaudRate        int      // defaults to wire.BaudRate if zero
	FirmwareVersion string   // semver constraint, e.g. "~0.1.0"
}

// Driver runs the read-dispatch-post loop for one slot. C is the command
// struct sent to the microcontroller, S is the raw sensor struct read back.
type Driver[C, S any] struct {
	cfg  Config
	port io.ReadWriteCloser

	packetCount int
	failCount   int
	weirdCount  int
	connected   bool

	lastBackendHeartbeat exchange.Heartbeat
	stalePackets         int
}

// Open opens the serial port and waits through the bootloader delay.
func Open[C, S any](cfg Config) (*Driver[C, S], error) {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = wire.BaudRate
	}
	port, err := serial.Open(&serial.Config{
		Address:  cfg.Device,
		BaudRate: baud,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  500 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("driver: opening %s: %w", cfg.Device, err)
	}
	time.Sleep(BootloaderDelay)

	return &Driver[C, S]{cfg: cfg, port: port, connected: true}, nil
}

// Close releases the serial port.
func (d *Driver[C, S]) Close() error { return d.port.Close() }

// Port exposes the underlying serial connection, so callers can wrap it in
// their own buffered reader/writer for the read-dispatch-post loop.
func (d *Driver[C, S]) Port() io.ReadWriteCloser { return d.port }

// ReadFrame reads one frame and tallies the connect/disconnect bookkeeping,
// mirroring nanoslot_comms::read_packet.
func (d *Driver[C, S]) ReadFrame(r *bufio.Reader) (wire.Frame, bool) {
	f, err := wire.ReadFrame(r)
	if err != nil {
		d.failCount++
		bad := d.failCount >= disconnectColdStart
		if d.packetCount >= solidConnectionPackets && d.failCount >= disconnectAfterSolid {
			bad = true
		}
		if bad {
			d.connected = false
			log.Printf("slot %02X arduino disconnect (%d good, %d weird, %d fail)",
				d.cfg.SlotID, d.packetCount, d.weirdCount, d.failCount)
		}
		return wire.Frame{}, false
	}
	d.packetCount++
	d.failCount = 0
	return f, true
}

// Connected reports whether the link is still considered up.
func (d *Driver[C, S]) Connected() bool { return d.connected }

// HandleID validates an ID handshake packet's struct sizes and (if
// firmwareVersion is carried in a later DEBUG line, validated by the
// caller) reports ErrProtocolMismatch on any size disagreement.
func (d *Driver[C, S]) HandleID(payload []byte) error {
	if len(payload) != 4 {
		return fmt.Errorf("driver: ID packet length %d, want 4", len(payload))
	}
	var c C
	var s S
	wantCmd := byte(binary.Size(c))
	wantSensor := byte(binary.Size(s))
	if payload[1] != wantCmd || payload[2] != wantSensor || payload[3] != wire.IDSanityByte {
		return ErrProtocolMismatch
	}
	return nil
}

// CheckFirmwareVersion validates a firmware version string against this
// driver's configured semver constraint, matching ControlNode's handshake
// in spirit: "DEV" is always accepted, a bare 7-character string is always
// rejected (a direct, unversioned commit build), anything else must satisfy
// the constraint.
func CheckFirmwareVersion(version, constraint string) error {
	if version == "DEV" {
		return nil
	}
	if len(version) == 7 {
		return &ErrFirmwareVersion{Got: version, Want: constraint}
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return &ErrFirmwareVersion{Got: version, Want: constraint}
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("driver: bad firmware version constraint %q: %w", constraint, err)
	}
	if !c.Check(v) {
		return &ErrFirmwareVersion{Got: version, Want: constraint}
	}
	return nil
}

// NoteBackendHeartbeat tracks whether the backend's heartbeat is still
// advancing. autonomyMode is forced to 0 by EffectiveAutonomyMode once it
// has failed to advance for HeartbeatStallPackets packets in a row.
func (d *Driver[C, S]) NoteBackendHeartbeat(current exchange.Heartbeat) {
	if current != d.lastBackendHeartbeat {
		d.lastBackendHeartbeat = current
		d.stalePackets = 0
	} else {
		d.stalePackets++
	}
}

// EffectiveAutonomyMode returns mode unchanged, unless the backend
// heartbeat has stalled, in which case it forces safe mode (0).
func (d *Driver[C, S]) EffectiveAutonomyMode(mode exchange.Byte) exchange.Byte {
	if d.stalePackets >= HeartbeatStallPackets {
		return 0
	}
	return mode
}

// WriteCommand encodes and writes cmd as a COMMAND frame.
func (d *Driver[C, S]) WriteCommand(w *bufio.Writer, cmd C) error {
	buf := make([]byte, binary.Size(cmd))
	if err := binary.Write(sliceWriter{buf}, binary.LittleEndian, cmd); err != nil {
		return err
	}
	return wire.WriteFrame(w, wire.PCCommand, buf)
}

// DecodeSensor decodes payload into a sensor struct of type S.
func DecodeSensor[S any](payload []byte) (S, error) {
	var s S
	err := binary.Read(bytesReader{payload}, binary.LittleEndian, &s)
	return s, err
}

// sliceWriter and bytesReader adapt a byte slice to the io.Writer/io.Reader
// binary.Write/Read expect, without pulling in bytes.Buffer's extra
// bookkeeping for what is always a fixed, pre-sized copy.
type sliceWriter struct{ buf []byte }

func (w sliceWriter) Write(p []byte) (int, error) {
	n := copy(w.buf, p)
	return n, nil
}

type bytesReader struct{ buf []byte }

func (r bytesReader) Read(p []byte) (int, error) {
	n := copy(p, r.buf)
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}
