// Package telemetry fills a fixed, JSON-friendly snapshot of a
// robotstate.State for streaming to the local UI. It does not own a
// transport; package control writes the struct this package builds onto
// whatever channel it likes.
package telemetry

import "github.com/AuroraRoboticsLab/MiningRobot/robotstate"

// Frame is one telemetry update, embedding the accumulators and tuneables
// directly (mirroring comms.StatePayload's embed-and-extend shape) plus the
// derived fields a UI actually wants to render.
type Frame struct {
	robotstate.Accum
	Run      string  `json:"run_state"`
	Substep  int     `json:"substep"`
	Joint    [6]float64 `json:"joint_deg"`
	MineRate float64 `json:"mine_rate"`
	MStall   bool    `json:"mine_stall"`
	ChargeD  float64 `json:"charge_pct"`
	IMUsOK   bool    `json:"imus_ok"`
	Progress float64 `json:"mine_progress"`
}

// Fill builds a Frame from r.
func Fill(r *robotstate.State) Frame {
	return Frame{
		Accum:    r.Accum,
		Run:      r.Run.String(),
		Substep:  r.Substep,
		Joint:    r.Joint.Angles,
		MineRate: r.Sensor.MineRate,
		MStall:   r.Sensor.MStall,
		ChargeD:  r.Sensor.ChargeD,
		IMUsOK:   r.Sensor.IMUsOK,
		Progress: r.MineProgress,
	}
}
