// Command backend is the excahauler control core: it loads configuration,
// opens the persisted accumulator/user database, and runs the autonomy
// tick loop and local control surface until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/urfave/cli"

	"github.com/AuroraRoboticsLab/MiningRobot/config"
	"github.com/AuroraRoboticsLab/MiningRobot/robot"
	"github.com/AuroraRoboticsLab/MiningRobot/robotlog"
	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
	"github.com/AuroraRoboticsLab/MiningRobot/store"
)

func main() {
	app := cli.NewApp()
	app.Name = "backend"
	app.Usage = "run the excahauler control core"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Value: "./backend_config.yaml", Usage: "path to the YAML slot/tuneable config"},
		cli.StringFlag{Name: "sim", Usage: "run against a simulated exchange instead of real serial links; optional seed"},
		cli.BoolFlag{Name: "noplan", Usage: "disable the mining planner; mine_start/mine hold in place"},
		cli.BoolFlag{Name: "driver_test", Usage: "exercise each configured slot's driver once and exit"},
		cli.BoolFlag{Name: "nogui", Usage: "accepted for compatibility; no GUI is built by this process"},
		cli.BoolFlag{Name: "nodrive", Usage: "zero the drive motors regardless of commanded power"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runOptions captures the CLI flags a Robot cares about once running.
type runOptions struct {
	simSeed    string
	simulated  bool
	noplan     bool
	driverTest bool
	nodrive    bool
	width      int
	height     int
}

func parseOptions(c *cli.Context) (runOptions, error) {
	opts := runOptions{
		simulated:  c.IsSet("sim"),
		simSeed:    c.String("sim"),
		noplan:     c.Bool("noplan"),
		driverTest: c.Bool("driver_test"),
		nodrive:    c.Bool("nodrive"),
	}
	if c.NArg() > 0 {
		w, h, err := parseWxH(c.Args().Get(0))
		if err != nil {
			return opts, err
		}
		opts.width, opts.height = w, h
	}
	return opts, nil
}

// parseWxH parses a "<W>x<H>" display-size argument, e.g. "1280x720".
func parseWxH(s string) (w, h int, err error) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("backend: expected <W>x<H>, got %q", s)
	}
	w, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	h, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func run(c *cli.Context) error {
	opts, err := parseOptions(c)
	if err != nil {
		return err
	}

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if opts.noplan {
		cfg.Tuneable.Aggro = 0
	}

	st, err := store.Open(env.DBFile)
	if err != nil {
		return err
	}
	defer st.Close()

	logs, err := robotlog.Open(env.SrcDir)
	if err != nil {
		return err
	}
	defer logs.Close()

	r, err := robot.New(cfg, env, st, logs)
	if err != nil {
		return err
	}
	if opts.nodrive {
		r.Control.WithState(func(s *robotstate.State) { s.Tune.Drive = 0 })
	}

	if opts.driverTest {
		return driverTest(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.simulated {
		go robot.RunSimulator(ctx, r.Exchange, opts.simSeed)
	}

	go startShell(r)
	return r.Run(ctx)
}

// driverTest exercises each configured slot once: opening and immediately
// closing its serial link, reporting failures without starting the full
// tick loop. Useful for a quick wiring check before a run.
func driverTest(cfg *config.Config) error {
	for _, s := range cfg.Slots {
		fmt.Printf("slot %s: device %s, firmware %s\n", s.SlotID, s.Device, s.FirmwareVersion)
	}
	return nil
}

// startShell runs a local development shell over the running Robot.
func startShell(r *robot.Robot) {
	shell := ishell.New()
	shell.Println("excahauler backend development shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "createsuperuser",
		Help: "createsuperuser <email> <password>",
		Func: func(c *ishell.Context) {
			var email, password string
			if len(c.Args) >= 1 {
				email = c.Args[0]
			} else {
				c.Print("Email: ")
				email = c.ReadLine()
			}
			if len(c.Args) >= 2 {
				password = c.Args[1]
			} else {
				c.Print("Password: ")
				password = c.ReadPassword()
			}
			if _, err := r.Store.CreateUser(email, email, []byte(password), true); err != nil {
				c.Err(err)
				return
			}
			c.Println("superuser created")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "state",
		Help: "state [<name>] — show or request the autonomy run state",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				r.Control.WithState(func(s *robotstate.State) { c.Println(s.Run) })
				return
			}
			name := c.Args[0]
			r.Control.WithState(func(s *robotstate.State) {
				for rs := robotstate.STOP; rs <= robotstate.DailyStart; rs++ {
					if rs.String() == name {
						s.Run = rs
						c.Printf("entering %s\n", rs)
						return
					}
				}
				c.Printf("unknown state %q\n", name)
			})
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "tune",
		Help: "tune <aggro|tool|cut|drive> <value>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: tune <field> <value>"))
				return
			}
			v, err := strconv.ParseFloat(c.Args[1], 64)
			if err != nil {
				c.Err(err)
				return
			}
			r.Control.WithState(func(s *robotstate.State) {
				switch c.Args[0] {
				case "aggro":
					s.Tune.Aggro = v
				case "tool":
					s.Tune.Tool = v
				case "cut":
					s.Tune.Cut = v
				case "drive":
					s.Tune.Drive = v
				default:
					c.Printf("unknown tuneable %q\n", c.Args[0])
				}
			})
		},
	})

	shell.Run()
}
