// Package dbusutil provides thin typed wrappers ("facades") over the two
// system D-Bus services Night-Kitchen depends on: the login manager
// (org.freedesktop.login1) and the unit manager (org.freedesktop.systemd1).
// Method calls made through callWithTimeout use a 500ms timeout; the session
// Id property read in SessionID and the AddMatchSignal registrations are not
// bounded by it. Callers pass interactive=false where the upstream API takes
// that flag, so a privileged call fails fast instead of
// triggering an interactive PolicyKit prompt — Night-Kitchen is always
// activated non-interactively, either by a timer or by a signal handler.
package dbusutil

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/bnavetta/night-kitchen/internal/nkerrors"
)

// CallTimeout bounds every D-Bus method call made through callWithTimeout.
const CallTimeout = 500 * time.Millisecond

// Connect opens a connection to the system bus. Failure here is always
// fatal at startup (spec.md's BusUnavailable case).
func Connect() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to system bus: %w: %w", err, nkerrors.ErrBusUnavailable)
	}
	return conn, nil
}

func callWithTimeout(ctx context.Context, obj dbus.BusObject, method string, args ...interface{}) *dbus.Call {
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	return obj.CallWithContext(ctx, method, 0, args...)
}

func wrapRPCError(method string, err error) error {
	if err == nil {
		return nil
	}
	if dbusErr, ok := err.(dbus.Error); ok {
		switch dbusErr.Name {
		case "org.freedesktop.DBus.Error.AccessDenied", "org.freedesktop.PolicyKit1.Error.NotAuthorized":
			return fmt.Errorf("%s: %w: %w", method, err, nkerrors.ErrRejected)
		}
	}
	return fmt.Errorf("%s: %w: %w", method, err, nkerrors.ErrRPCFailed)
}
