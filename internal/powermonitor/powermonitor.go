// Package powermonitor implements the power-transition state machine: the
// freedesktop "delay lock" pattern layered over the login manager's
// PrepareForSleep and PrepareForShutdown signals.
package powermonitor

import (
	"context"
	"fmt"
	"io"

	"github.com/containerd/log"
	"github.com/godbus/dbus/v5"

	"github.com/bnavetta/night-kitchen/internal/dbusutil"
	"github.com/bnavetta/night-kitchen/internal/nkerrors"
)

// PowerEvent is delivered to the monitor's callback. It carries no payload;
// the three cases correspond to the three points at which the scheduler acts
// around the transitions it brackets: before sleep, after resume, and before
// shutdown.
type PowerEvent int

const (
	PreSleep PowerEvent = iota
	PostSleep
	PreShutdown
)

func (e PowerEvent) String() string {
	switch e {
	case PreSleep:
		return "PreSleep"
	case PostSleep:
		return "PostSleep"
	case PreShutdown:
		return "PreShutdown"
	default:
		return "Unknown"
	}
}

// State is one of the four states of the power monitor's state machine.
type State int

const (
	IdleNoLock State = iota
	IdleHeld
	Sleeping
	ShuttingDownTerminal
)

func (s State) String() string {
	switch s {
	case IdleNoLock:
		return "Idle-NoLock"
	case IdleHeld:
		return "Idle-Held"
	case Sleeping:
		return "Sleeping"
	case ShuttingDownTerminal:
		return "Shutting-Down-Terminal"
	default:
		return "Unknown"
	}
}

// Inhibitor acquires the sleep:shutdown delay lock. It exists as an
// interface so the state machine can be exercised without a live login
// manager connection.
type Inhibitor interface {
	Take(ctx context.Context) (io.Closer, error)
}

// LoginInhibitor is the production Inhibitor: it requests a delay-mode
// sleep:shutdown lock from the login manager, per spec with who/why strings
// drawn from configuration.
type LoginInhibitor struct {
	Login *dbusutil.LoginManager
	Who   string
	Why   string
}

// Take implements Inhibitor.
func (l *LoginInhibitor) Take(ctx context.Context) (io.Closer, error) {
	return l.Login.Inhibit(ctx, "sleep:shutdown", l.Who, l.Why, "delay")
}

// Callback receives each PowerEvent as it's delivered. It must not pump
// D-Bus itself — it runs on the same execution context as the message pump
// driving it, so doing so would deadlock. Returning an error only causes it
// to be logged; the state machine always proceeds to release the lock.
type Callback func(ctx context.Context, event PowerEvent) error

// Monitor implements the state machine described in spec.md's power monitor
// section. It is not safe for concurrent use — every method is expected to
// run on the single execution context driving the D-Bus pump.
type Monitor struct {
	Inhibitor Inhibitor
	Callback  Callback

	state State
	lock  io.Closer
}

// State returns the monitor's current state, for logging and tests.
func (m *Monitor) State() State {
	return m.state
}

// Start takes the initial inhibitor lock, transitioning Idle-NoLock ->
// Idle-Held. It is a no-op if a lock is already held.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.take(ctx); err != nil {
		return err
	}
	m.state = IdleHeld
	return nil
}

// HandlePrepareForSleep processes a PrepareForSleep(starting) signal.
func (m *Monitor) HandlePrepareForSleep(ctx context.Context, starting bool) error {
	if starting {
		if m.state != IdleHeld {
			log.G(ctx).WithField("state", m.state.String()).Warn("PrepareForSleep(true) received outside Idle-Held, ignoring")
			return nil
		}
		m.invoke(ctx, PreSleep)
		m.release()
		m.state = Sleeping
		return nil
	}

	if m.state != Sleeping {
		log.G(ctx).WithField("state", m.state.String()).Warn("PrepareForSleep(false) received outside Sleeping, ignoring")
		return nil
	}
	m.invoke(ctx, PostSleep)
	if err := m.take(ctx); err != nil {
		return err
	}
	m.state = IdleHeld
	return nil
}

// HandlePrepareForShutdown processes a PrepareForShutdown(starting) signal.
func (m *Monitor) HandlePrepareForShutdown(ctx context.Context, starting bool) error {
	if starting {
		if m.state != IdleHeld {
			log.G(ctx).WithField("state", m.state.String()).Warn("PrepareForShutdown(true) received outside Idle-Held, ignoring")
			return nil
		}
		m.invoke(ctx, PreShutdown)
		m.release()
		m.state = ShuttingDownTerminal
		return nil
	}

	if m.state == ShuttingDownTerminal {
		log.G(ctx).Warn("PrepareForShutdown(false) received after shutdown was already terminal; host did not actually shut down")
	}
	return nil
}

// Close drops the inhibitor lock, if one is held. Called at process exit.
func (m *Monitor) Close() error {
	m.release()
	return nil
}

func (m *Monitor) invoke(ctx context.Context, event PowerEvent) {
	if m.Callback == nil {
		return
	}
	if err := m.Callback(ctx, event); err != nil {
		log.G(ctx).WithError(err).WithField("event", event.String()).Error("power event callback failed")
	}
}

func (m *Monitor) take(ctx context.Context) error {
	if m.lock != nil {
		return nil
	}
	closer, err := m.Inhibitor.Take(ctx)
	if err != nil {
		return fmt.Errorf("taking inhibitor lock: %w", err)
	}
	m.lock = closer
	return nil
}

func (m *Monitor) release() {
	if m.lock == nil {
		return
	}
	if err := m.lock.Close(); err != nil {
		log.L.WithError(err).Warn("closing inhibitor lock fd")
	}
	m.lock = nil
}

// Run subscribes to the login manager's power signals and drives the
// message pump until ctx is canceled. Each received signal is dispatched
// synchronously to the matching handler before the next is read, satisfying
// the total-ordering and non-overlap guarantees of the callback contract.
//
// Selecting on sigCh and ctx.Done() together gives SIGTERM responsiveness
// without an artificial fixed-size slice loop: cancellation is observed as
// soon as the channel wakes up, which is at least as prompt as polling on a
// timer and simpler.
func (m *Monitor) Run(ctx context.Context, conn *dbus.Conn, login *dbusutil.LoginManager) error {
	if err := login.AddPowerEventMatches(conn); err != nil {
		return err
	}

	sigCh := make(chan *dbus.Signal, 16)
	conn.Signal(sigCh)
	defer conn.RemoveSignal(sigCh)

	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.release()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-sigCh:
			if !ok {
				return fmt.Errorf("D-Bus signal channel closed: %w", nkerrors.ErrBusUnavailable)
			}
			if arg, matched := dbusutil.IsPrepareForSleep(sig); matched {
				if err := m.HandlePrepareForSleep(ctx, arg); err != nil {
					log.G(ctx).WithError(err).Error("handling PrepareForSleep")
				}
				continue
			}
			if arg, matched := dbusutil.IsPrepareForShutdown(sig); matched {
				if err := m.HandlePrepareForShutdown(ctx, arg); err != nil {
					log.G(ctx).WithError(err).Error("handling PrepareForShutdown")
				}
				continue
			}
		}
	}
}
