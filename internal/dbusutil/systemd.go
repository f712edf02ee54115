package dbusutil

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/bnavetta/night-kitchen/internal/nkerrors"
)

const (
	systemdService    = "org.freedesktop.systemd1"
	systemdObjectPath = "/org/freedesktop/systemd1"
	managerInterface  = "org.freedesktop.systemd1.Manager"
	timerInterface    = "org.freedesktop.systemd1.Timer"
	propertiesIface   = "org.freedesktop.DBus.Properties"
)

// UnitManager wraps the org.freedesktop.systemd1 manager object: starting
// units, watching their completion jobs, and reading a .timer unit's next
// elapsation. It implements wakealarm.TimerSource.
type UnitManager struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// NewUnitManager wraps an existing system bus connection.
func NewUnitManager(conn *dbus.Conn) *UnitManager {
	return &UnitManager{conn: conn, obj: conn.Object(systemdService, dbus.ObjectPath(systemdObjectPath))}
}

// Subscribe enables the manager's job-change signals (JobNew, JobRemoved,
// UnitNew, UnitRemoved). systemd only emits these to subscribed clients.
func (m *UnitManager) Subscribe() error {
	call := callWithTimeout(context.Background(), m.obj, managerInterface+".Subscribe")
	return wrapRPCError("Subscribe", call.Err)
}

// StartUnit enqueues a start job for name with the given mode ("fail",
// "replace", ...) and returns the job object path. Completion is observed
// asynchronously via JobRemoved.
func (m *UnitManager) StartUnit(ctx context.Context, name, mode string) (dbus.ObjectPath, error) {
	call := callWithTimeout(ctx, m.obj, managerInterface+".StartUnit", name, mode)
	if call.Err != nil {
		return "", wrapRPCError("StartUnit", call.Err)
	}
	var job dbus.ObjectPath
	if err := call.Store(&job); err != nil {
		return "", fmt.Errorf("decoding StartUnit reply: %w: %w", err, nkerrors.ErrRPCFailed)
	}
	return job, nil
}

// AddJobRemovedMatch subscribes conn to the manager's JobRemoved signal.
// Subscribe must also have been called, or systemd never emits it.
func (m *UnitManager) AddJobRemovedMatch(conn *dbus.Conn) error {
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbus.ObjectPath(systemdObjectPath)),
		dbus.WithMatchInterface(managerInterface),
		dbus.WithMatchMember("JobRemoved"),
	); err != nil {
		return fmt.Errorf("subscribing to JobRemoved: %w: %w", err, nkerrors.ErrRPCFailed)
	}
	return nil
}

// JobRemoved is the decoded body of a JobRemoved signal: (id, job, unit,
// result).
type JobRemoved struct {
	ID     uint32
	Job    dbus.ObjectPath
	Unit   string
	Result string
}

// ParseJobRemoved decodes sig if it is a JobRemoved signal from the unit
// manager, returning ok=false otherwise.
func ParseJobRemoved(sig *dbus.Signal) (JobRemoved, bool) {
	if sig.Name != managerInterface+".JobRemoved" || len(sig.Body) != 4 {
		return JobRemoved{}, false
	}
	id, ok1 := sig.Body[0].(uint32)
	job, ok2 := sig.Body[1].(dbus.ObjectPath)
	unit, ok3 := sig.Body[2].(string)
	result, ok4 := sig.Body[3].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return JobRemoved{}, false
	}
	return JobRemoved{ID: id, Job: job, Unit: unit, Result: result}, true
}

// loadUnit resolves a unit name to its D-Bus object path, loading it into
// systemd's memory if it isn't already (e.g. a timer unit that hasn't fired
// yet still resolves fine).
func (m *UnitManager) loadUnit(ctx context.Context, name string) (dbus.ObjectPath, error) {
	call := callWithTimeout(ctx, m.obj, managerInterface+".LoadUnit", name)
	if call.Err != nil {
		return "", wrapRPCError("LoadUnit", call.Err)
	}
	var path dbus.ObjectPath
	if err := call.Store(&path); err != nil {
		return "", fmt.Errorf("decoding LoadUnit reply: %w: %w", err, nkerrors.ErrRPCFailed)
	}
	return path, nil
}

func (m *UnitManager) timerProperty(ctx context.Context, unit, property string) (uint64, error) {
	path, err := m.loadUnit(ctx, unit)
	if err != nil {
		return 0, err
	}

	timerObj := m.conn.Object(systemdService, path)
	call := callWithTimeout(ctx, timerObj, propertiesIface+".Get", timerInterface, property)
	if call.Err != nil {
		return 0, wrapRPCError("Get "+property, call.Err)
	}

	var variant dbus.Variant
	if err := call.Store(&variant); err != nil {
		return 0, fmt.Errorf("decoding %s reply: %w: %w", property, err, nkerrors.ErrRPCFailed)
	}

	usec, ok := variant.Value().(uint64)
	if !ok {
		return 0, fmt.Errorf("unexpected type for %s: %T: %w", property, variant.Value(), nkerrors.ErrMalformed)
	}
	return usec, nil
}

// NextElapseUSecRealtime implements wakealarm.TimerSource.
func (m *UnitManager) NextElapseUSecRealtime(ctx context.Context, unit string) (uint64, error) {
	return m.timerProperty(ctx, unit, "NextElapseUSecRealtime")
}

// NextElapseUSecMonotonic implements wakealarm.TimerSource.
func (m *UnitManager) NextElapseUSecMonotonic(ctx context.Context, unit string) (uint64, error) {
	return m.timerProperty(ctx, unit, "NextElapseUSecMonotonic")
}
