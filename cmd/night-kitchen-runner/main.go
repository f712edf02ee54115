// Command night-kitchen-runner starts a single payload unit, then attributes
// its own invocation to either a boot or a wake event and, if so, returns
// the machine to its previous power state.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/containerd/log"
	"github.com/urfave/cli/v2"

	"github.com/bnavetta/night-kitchen/internal/attribution"
	"github.com/bnavetta/night-kitchen/internal/dbusutil"
	"github.com/bnavetta/night-kitchen/internal/logging"
	"github.com/bnavetta/night-kitchen/internal/resume"
	"github.com/bnavetta/night-kitchen/internal/unitstarter"
	"github.com/bnavetta/night-kitchen/internal/uptime"
	"github.com/bnavetta/night-kitchen/version"
)

func init() {
	cli.VersionPrinter = func(cliContext *cli.Context) {
		fmt.Println(cliContext.App.Name, version.Package, cliContext.App.Version)
	}
}

func main() {
	if err := app().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func app() *cli.App {
	a := cli.NewApp()
	a.Name = "night-kitchen-runner"
	a.Usage = "start a payload unit, then power off or suspend if this run looks RTC-triggered"
	a.Version = version.Version
	a.ArgsUsage = "<unit-name>"
	a.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
	}
	a.Before = func(cliCtx *cli.Context) error {
		return logging.Configure(cliCtx.Bool("debug"))
	}
	a.Action = run
	return a
}

func run(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return cli.Exit("expected exactly one argument: the payload unit name", 1)
	}
	target := cliCtx.Args().Get(0)
	startTime := time.Now()
	// Captured now, not after the payload unit runs: uptime is a heuristic
	// for how long the machine has been on since boot, and it must reflect
	// the moment the runner started, not however long the payload happened
	// to take.
	startUptime, err := uptime.Get()
	if err != nil {
		return fmt.Errorf("reading system uptime: %w", err)
	}

	ctx := context.Background()

	conn, err := dbusutil.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	login := dbusutil.NewLoginManager(conn)
	units := dbusutil.NewUnitManager(conn)

	result, err := unitstarter.Start(ctx, conn, units, target)
	if err != nil {
		return fmt.Errorf("starting payload unit %s: %w", target, err)
	}
	log.G(ctx).WithField("unit", target).WithField("result", result).Info("payload unit job completed")

	action := decideAction(startUptime, startTime)

	switch action {
	case attribution.PowerOff:
		log.G(ctx).Info("attributing this boot to night-kitchen, powering off")
		if err := login.PowerOff(ctx, false); err != nil {
			return fmt.Errorf("powering off: %w", err)
		}
	case attribution.Suspend:
		log.G(ctx).Info("attributing this wake to night-kitchen, suspending")
		if err := login.Suspend(ctx, false); err != nil {
			return fmt.Errorf("suspending: %w", err)
		}
	case attribution.NoAction:
		log.G(ctx).Debug("not attributing this invocation to night-kitchen, leaving power state alone")
	}

	return nil
}

func decideAction(startUptime time.Duration, startTime time.Time) attribution.Action {
	resumeTime, haveResume, err := resume.Read(resume.Path())
	if err != nil {
		// Malformed resume file: treated as "no info", per the runner's
		// error-handling policy of continuing with defaults.
		haveResume = false
	}

	return attribution.Decide(startUptime, haveResume, resumeTime, startTime)
}
