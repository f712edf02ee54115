// Package unitstarter starts a single systemd unit and blocks until its job
// completes, surfacing rejection distinctly from completion.
package unitstarter

import (
	"context"
	"fmt"

	"github.com/containerd/log"
	"github.com/godbus/dbus/v5"

	"github.com/bnavetta/night-kitchen/internal/dbusutil"
	"github.com/bnavetta/night-kitchen/internal/nkerrors"
)

// Start starts target under the unit manager reachable through conn and
// blocks until the resulting job finishes. It returns the job's result
// string ("done", "failed", "canceled", ...) on success.
//
// Unlike a literal fixed-size polling loop, this selects directly on the
// signal channel and ctx.Done(): there's nothing to gain from artificially
// slicing the wait once the D-Bus signal delivery is already channel-based.
func Start(ctx context.Context, conn *dbus.Conn, um *dbusutil.UnitManager, target string) (string, error) {
	if err := um.Subscribe(); err != nil {
		return "", err
	}
	if err := um.AddJobRemovedMatch(conn); err != nil {
		return "", err
	}

	sigCh := make(chan *dbus.Signal, 16)
	conn.Signal(sigCh)
	defer conn.RemoveSignal(sigCh)

	if _, err := um.StartUnit(ctx, target, "fail"); err != nil {
		return "", fmt.Errorf("starting unit %s: %w", target, err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for %s job to complete: %w", target, ctx.Err())
		case sig, ok := <-sigCh:
			if !ok {
				return "", fmt.Errorf("D-Bus signal channel closed while waiting for %s: %w", target, nkerrors.ErrBusUnavailable)
			}
			removed, ok := dbusutil.ParseJobRemoved(sig)
			if !ok || removed.Unit != target {
				continue
			}
			log.G(ctx).WithField("unit", target).WithField("result", removed.Result).Info("unit job completed")
			return removed.Result, nil
		}
	}
}
