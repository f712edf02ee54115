// Command night-kitchen-scheduler watches for sleep and shutdown
// transitions, bracketing each with a delay-mode inhibitor lock, and keeps
// the hardware RTC wake alarm programmed for the earliest upcoming
// maintenance timer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/containerd/log"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/urfave/cli/v2"

	"github.com/bnavetta/night-kitchen/internal/config"
	"github.com/bnavetta/night-kitchen/internal/dbusutil"
	"github.com/bnavetta/night-kitchen/internal/logging"
	"github.com/bnavetta/night-kitchen/internal/powermonitor"
	"github.com/bnavetta/night-kitchen/internal/resume"
	"github.com/bnavetta/night-kitchen/internal/rtc"
	"github.com/bnavetta/night-kitchen/internal/wakealarm"
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
	a.Name = "night-kitchen-scheduler"
	a.Usage = "program the RTC wake alarm and bracket sleep/shutdown with an inhibitor lock"
	a.Version = version.Version
	a.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to the scheduler's TOML configuration",
			Value: config.DefaultPath,
		},
	}
	a.Before = func(cliCtx *cli.Context) error {
		return logging.Configure(cliCtx.Bool("debug"))
	}
	a.Action = run
	return a
}

func run(cliCtx *cli.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	conn, err := dbusutil.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	login := dbusutil.NewLoginManager(conn)
	units := dbusutil.NewUnitManager(conn)

	rtcDriver, err := rtc.Open(cfg.RTCDevice)
	if err != nil {
		log.G(ctx).WithError(err).Warn("could not open RTC device, wake alarm programming will be skipped")
	} else {
		defer rtcDriver.Close()
	}

	planner := &wakealarm.Planner{
		Units:       cfg.Units,
		Timers:      units,
		RTC:         rtcDriver,
		AdjtimePath: cfg.AdjtimePath,
	}

	resumePath := resume.Path()

	monitor := &powermonitor.Monitor{
		Inhibitor: &powermonitor.LoginInhibitor{Login: login, Who: cfg.InhibitorWho, Why: cfg.InhibitorWhy},
		Callback:  makeCallback(planner, resumePath),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.G(ctx).Info("received SIGTERM, shutting down")
		cancel()
	}()

	if ready, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
		log.G(ctx).WithError(notifyErr).Debug("sd_notify READY failed")
	} else if !ready {
		log.G(ctx).Debug("not running under a service manager that watches NOTIFY_SOCKET")
	}

	watchdogInterval, wdErr := daemon.SdWatchdogEnabled(false)
	if wdErr != nil {
		log.G(ctx).WithError(wdErr).Debug("sd_watchdog_enabled failed")
	} else if watchdogInterval > 0 {
		go runWatchdog(ctx, watchdogInterval)
	}

	log.G(ctx).WithField("units", cfg.Units).Info("night-kitchen-scheduler starting")

	if err := monitor.Run(ctx, conn, login); err != nil {
		return fmt.Errorf("power monitor loop exited: %w", err)
	}

	log.G(ctx).Info("night-kitchen-scheduler exiting cleanly")
	return nil
}

// runWatchdog sends WATCHDOG=1 at half the interval the service manager
// configured via $WATCHDOG_USEC, the conventional safety margin so a missed
// tick doesn't immediately trip the watchdog. It exits when ctx is canceled.
func runWatchdog(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.G(ctx).WithError(err).Debug("sd_notify WATCHDOG=1 failed")
			}
		}
	}
}

// makeCallback binds the wake-alarm planner and resume-timestamp store to
// the three PowerEvent cases. PreSleep and PreShutdown both need the RTC
// armed for the next maintenance timer before the transition proceeds,
// since either one can leave the machine unable to run scheduled work until
// it wakes back up. PostSleep is the one point a resume actually happened,
// so that's where the resume timestamp is recorded for the runner to read.
func makeCallback(planner *wakealarm.Planner, resumePath string) powermonitor.Callback {
	return func(ctx context.Context, event powermonitor.PowerEvent) error {
		switch event {
		case powermonitor.PreSleep, powermonitor.PreShutdown:
			if planner.RTC == nil {
				log.G(ctx).Warn("no RTC driver available, skipping wake alarm programming")
				return nil
			}
			wrote, target, err := planner.Plan(ctx)
			if err != nil {
				log.G(ctx).WithError(err).Warn("failed to program wake alarm")
				return nil
			}
			if wrote {
				log.G(ctx).WithField("target", target).Info("programmed RTC wake alarm")
			}
			return nil
		case powermonitor.PostSleep:
			if err := resume.Write(resumePath, time.Now()); err != nil {
				log.G(ctx).WithError(err).Warn("failed to record resume timestamp")
			}
			return nil
		default:
			return nil
		}
	}
}
