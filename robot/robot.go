// Package robot wires together every other package into the backend
// process: configuration, persisted accumulators, the exchange memory the
// slot drivers talk over, the autonomy state machine, the sensor/actuator
// bridge, and the local control surface. main.go and tests construct a
// Robot and call Run.
package robot

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AuroraRoboticsLab/MiningRobot/bridge"
	"github.com/AuroraRoboticsLab/MiningRobot/autonomy"
	"github.com/AuroraRoboticsLab/MiningRobot/config"
	"github.com/AuroraRoboticsLab/MiningRobot/control"
	"github.com/AuroraRoboticsLab/MiningRobot/exchange"
	"github.com/AuroraRoboticsLab/MiningRobot/robotlog"
	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
	"github.com/AuroraRoboticsLab/MiningRobot/store"
)

// TickPeriod is the backend's control loop period, matching the slot
// drivers' own default pacing hint.
const TickPeriod = 20 * time.Millisecond

// Robot is the live backend: one in-process exchange (standing in for the
// shared-memory segment the slot driver processes would otherwise attach
// to), one robotstate.State, and the autonomy/bridge logic that drive it.
type Robot struct {
	Config *config.Config
	Env    *config.Env

	Store    *store.Store
	Logs     *robotlog.Logs
	Exchange *exchange.Nanoslot

	State   *robotstate.State
	Bridge  *bridge.Bridge
	Machine *autonomy.Machine
	Control *control.Server

	startedAt time.Time
}

// New builds a Robot from its already-open dependencies. The caller owns
// Store/Logs' lifetime (Close them after Run returns).
func New(cfg *config.Config, envCfg *config.Env, st *store.Store, logs *robotlog.Logs) (*Robot, error) {
	accum, err := st.LoadAccum()
	if err != nil {
		return nil, err
	}

	state := &robotstate.State{
		Accum: accum,
		Tune:  cfg.Tuneable,
		Run:   robotstate.Drive,
	}

	r := &Robot{
		Config:   cfg,
		Env:      envCfg,
		Store:    st,
		Logs:     logs,
		Exchange: &exchange.Nanoslot{},
		State:    state,
		Bridge:   bridge.New(logs),
		Machine:  autonomy.New(logs),
	}
	r.Control = control.New(st, envCfg.JWTIssuer, jwtSecret, envCfg.Debug, state)
	return r, nil
}

// jwtSecret is the local control surface's HMAC signing key. A real
// deployment should load this from an environment variable rather than a
// literal; this placeholder only holds for a single-operator dev run.
var jwtSecret = []byte("kH3vQ9mZ1pL7xR5nT8wC2jF6yB4dS0qA")

// Run drives the tick loop and the local control HTTP server until ctx is
// canceled, persisting accumulators on every haul/weigh/daily transition
// and on exit.
func (r *Robot) Run(ctx context.Context) error {
	r.startedAt = time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.tickLoop(ctx) })
	g.Go(func() error { return r.serve(ctx) })
	return g.Wait()
}

func (r *Robot) serve(ctx context.Context) error {
	srv := &http.Server{Addr: r.Env.ListenOn, Handler: r.Control.Router()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (r *Robot) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(TickPeriod)
	defer ticker.Stop()

	lastRun := r.State.Run
	for {
		select {
		case <-ctx.Done():
			return r.Store.SaveAccum(r.State.Accum)
		case now := <-ticker.C:
			r.Control.WithState(func(st *robotstate.State) {
				dt := TickPeriod.Seconds()
				elapsed := now.Sub(r.startedAt).Seconds()

				r.Bridge.UpdateSensors(st, r.Exchange, elapsed, dt)
				r.Machine.Tick(st, elapsed, dt)
				r.Bridge.PostCommands(st, r.Exchange, bridge.AutonomyMode(st.Run))

				if st.Run != lastRun {
					lastRun = st.Run
					_ = r.Store.SaveAccum(st.Accum)
				}
			})
		}
	}
}
