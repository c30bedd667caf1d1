// Command slotdriver is the per-microcontroller driver process: it owns one
// serial link, copies outbound commands from the shared exchange to the
// wire and inbound sensor bytes from the wire back to the exchange, and
// exits on a sustained disconnect so a supervisor can restart it.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/AuroraRoboticsLab/MiningRobot/driver"
	"github.com/AuroraRoboticsLab/MiningRobot/exchange"
	"github.com/AuroraRoboticsLab/MiningRobot/wire"
)

func main() {
	app := cli.NewApp()
	app.Name = "slotdriver"
	app.Usage = "run one microcontroller slot's serial driver"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "dev", Usage: "serial device, e.g. /dev/ttyUSB0"},
		cli.StringFlag{Name: "slot", Usage: "slot ID in hex, e.g. 70, A0, D0"},
		cli.StringFlag{Name: "firmware-version", Value: "~0.1.0", Usage: "semver constraint the firmware's reported version must satisfy"},
		cli.IntFlag{Name: "period-ms", Value: 20, Usage: "driver loop pacing hint"},
		cli.BoolFlag{Name: "verbose"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	dev := c.String("dev")
	slot := c.String("slot")
	if dev == "" || slot == "" {
		return fmt.Errorf("slotdriver: --dev and --slot are required")
	}

	slotID, err := parseSlotID(slot)
	if err != nil {
		return err
	}

	cfg := driver.Config{
		SlotID:          slotID,
		Device:          dev,
		FirmwareVersion: c.String("firmware-version"),
	}
	period := time.Duration(c.Int("period-ms")) * time.Millisecond

	// x is this process's view of the shared exchange. A real deployment
	// attaches this to the same shared-memory segment the backend process
	// maps; here it stands alone, exercised the same way robot.Robot's own
	// in-process Nanoslot is.
	x := &exchange.Nanoslot{}

	switch slotID {
	case 0x70:
		return runLoop(cfg, period, &x.Slot70, x, func(connected bool, _ *exchange.Sensor0x70) {
			st := x.Slot70.State.Read()
			st.Connected = connectedByte(connected)
			x.Slot70.State.Write(st)
		})
	case 0x71:
		return runLoop(cfg, period, &x.Slot71, x, func(connected bool, _ *exchange.Sensor0x70) {
			st := x.Slot71.State.Read()
			st.Connected = connectedByte(connected)
			x.Slot71.State.Write(st)
		})
	case 0x72:
		return runLoop(cfg, period, &x.Slot72, x, func(connected bool, _ *exchange.Sensor0x70) {
			st := x.Slot72.State.Read()
			st.Connected = connectedByte(connected)
			x.Slot72.State.Write(st)
		})
	case 0x73:
		return runLoop(cfg, period, &x.Slot73, x, func(connected bool, _ *exchange.Sensor0x70) {
			st := x.Slot73.State.Read()
			st.Connected = connectedByte(connected)
			x.Slot73.State.Write(st)
		})
	case 0xA0:
		return runLoop(cfg, period, &x.SlotA0, x, func(connected bool, _ *exchange.Sensor0xA0) {
			st := x.SlotA0.State.Read()
			st.Connected = connectedByte(connected)
			x.SlotA0.State.Write(st)
		})
	case 0xA1:
		return runLoop(cfg, period, &x.SlotA1, x, func(connected bool, sensor *exchange.Sensor0xA1) {
			st := x.SlotA1.State.Read()
			st.Connected = connectedByte(connected)
			if sensor != nil {
				stickPitch, stickRoll, _ := driver.IMUPitchRoll(sensor.IMU[0])
				toolPitch, toolRoll, _ := driver.IMUPitchRoll(sensor.IMU[1])
				st.Stick = exchange.IMUState{PitchDeg: stickPitch, RollDeg: stickRoll, Valid: true}
				st.Tool = exchange.IMUState{PitchDeg: toolPitch, RollDeg: toolRoll, Valid: true}
				st.LoadL = -float64(sensor.LoadL) / 1000
				st.LoadR = -float64(sensor.LoadR) / 1000
			}
			x.SlotA1.State.Write(st)
		})
	case 0xC0:
		return runLoop(cfg, period, &x.SlotC0, x, func(connected bool, sensor *exchange.Sensor0xC0) {
			st := x.SlotC0.State.Read()
			st.Connected = connectedByte(connected)
			if sensor != nil {
				st.Spin = float64(sensor.SpinCount)
				st.Load = float64(sensor.Cell0) / 1000
				st.Cell = float64(sensor.Cell1) / 1000
				st.Charge = driver.ChargePercent(st.Cell)
			}
			x.SlotC0.State.Write(st)
		})
	case 0xD0:
		return runLoop(cfg, period, &x.SlotD0, x, func(connected bool, _ *exchange.Sensor0xD0) {
			st := x.SlotD0.State.Read()
			st.Connected = connectedByte(connected)
			x.SlotD0.State.Write(st)
		})
	case 0xF0:
		return runLoop(cfg, period, &x.SlotF0, x, func(connected bool, sensor *exchange.Sensor0xF0) {
			st := x.SlotF0.State.Read()
			st.Connected = connectedByte(connected)
			if sensor != nil {
				st.Cell = float64(sensor.Cell1) / 1000
				st.Charge = driver.ChargePercent(st.Cell)
			}
			x.SlotF0.State.Write(st)
		})
	case 0xF1:
		var frameCheck, boomCheck driver.GravityCheck
		return runLoop(cfg, period, &x.SlotF1, x, func(connected bool, sensor *exchange.Sensor0xF1) {
			st := x.SlotF1.State.Read()
			st.Connected = connectedByte(connected)
			if sensor != nil {
				framePitch, frameRoll, frameOK := frameCheck.Check(sensor.IMU[0])
				boomPitch, boomRoll, boomOK := boomCheck.Check(sensor.IMU[1])
				forkPitch, forkRoll, _ := driver.IMUPitchRoll(sensor.IMU[2])
				dumpPitch, dumpRoll, _ := driver.IMUPitchRoll(sensor.IMU[3])
				st.Frame = exchange.IMUState{PitchDeg: framePitch, RollDeg: frameRoll, Valid: frameOK}
				st.Boom = exchange.IMUState{PitchDeg: boomPitch, RollDeg: boomRoll, Valid: boomOK}
				st.Fork = exchange.IMUState{PitchDeg: forkPitch, RollDeg: forkRoll, Valid: true}
				st.Dump = exchange.IMUState{PitchDeg: dumpPitch, RollDeg: dumpRoll, Valid: true}
				st.LoadL = -float64(sensor.LoadL) / 1000
				st.LoadR = -float64(sensor.LoadR) / 1000
				if !frameOK || !boomOK {
					log.Printf("slot %02X: IMU gravity check failed (frame ok=%v, boom ok=%v)", cfg.SlotID, frameOK, boomOK)
				}
			}
			x.SlotF1.State.Write(st)
		})
	case 0xEE:
		return runLoop(cfg, period, &x.SlotEE, x, func(connected bool, _ *exchange.Sensor0xEE) {
			st := x.SlotEE.State.Read()
			st.Connected = connectedByte(connected)
			x.SlotEE.State.Write(st)
		})
	default:
		return fmt.Errorf("slotdriver: unknown slot ID 0x%02X", slotID)
	}
}

func connectedByte(connected bool) exchange.Byte {
	if connected {
		return 1
	}
	return 0
}

func parseSlotID(s string) (byte, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%x", &v)
	if err != nil {
		return 0, fmt.Errorf("slotdriver: bad --slot value %q: %w", s, err)
	}
	return byte(v), nil
}

// runLoop opens the serial link and runs the read-dispatch-post cycle until
// the connection is declared dead. slot is this driver's record in the
// shared exchange x: decoded sensor packets are posted to slot.Sensor,
// outbound commands are read back from slot.Command, and updateState
// mirrors d.Connected() into slot.State on every frame, along with this
// slot's own parsed reading of the sensor struct when one was just decoded
// (nil otherwise) — this is the only place that struct gets written, so the
// backend's bridge can read it instead of re-deriving it from raw sensor
// bytes.
func runLoop[C, S, St any](cfg driver.Config, period time.Duration, slot *exchange.Slot[C, S, St], x *exchange.Nanoslot, updateState func(connected bool, sensor *S)) error {
	d, err := driver.Open[C, S](cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	r := bufio.NewReader(d.Port())
	w := bufio.NewWriter(d.Port())

	updateState(true, nil)
	defer updateState(false, nil)

	var packetCount exchange.Byte
	for d.Connected() {
		frame, ok := d.ReadFrame(r)
		if !ok {
			updateState(d.Connected(), nil)
			time.Sleep(period)
			continue
		}

		needCommand := false
		var decoded *S
		switch frame.Command {
		case wire.ID:
			if err := d.HandleID(frame.Payload); err != nil {
				log.Printf("slot %02X: %v", cfg.SlotID, err)
			}
			needCommand = true
		case wire.Sensor:
			sensor, err := driver.DecodeSensor[S](frame.Payload)
			if err != nil {
				log.Printf("slot %02X: decoding sensor packet: %v", cfg.SlotID, err)
			} else {
				slot.Sensor.Write(sensor)
				decoded = &sensor
			}
			needCommand = true
		case wire.Debug:
			log.Printf("slot %02X debug: %s", cfg.SlotID, frame.Payload)
		case wire.Error:
			return fmt.Errorf("slot %02X: %w", cfg.SlotID, &driver.ErrFirmwareFatal{Message: string(frame.Payload)})
		default:
			log.Printf("slot %02X: unknown packet type 0x%02X", cfg.SlotID, byte(frame.Command))
		}

		updateState(d.Connected(), decoded)

		if needCommand {
			backendHeartbeat := x.BackendHeartbeat.Read()
			d.NoteBackendHeartbeat(backendHeartbeat)
			autonomyMode := x.Autonomy.Read().Mode
			effectiveMode := d.EffectiveAutonomyMode(autonomyMode)

			packetCount++
			slot.Debug.Write(exchange.Debug{Flags: effectiveMode, PacketCount: packetCount})

			cmd := slot.Command.Read()
			if err := d.WriteCommand(w, cmd); err != nil {
				log.Printf("slot %02X: writing command: %v", cfg.SlotID, err)
			}
		}
	}
	return nil
}
