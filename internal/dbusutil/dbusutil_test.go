package dbusutil

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"

	"github.com/bnavetta/night-kitchen/internal/nkerrors"
)

func TestParseJobRemoved(t *testing.T) {
	sig := &dbus.Signal{
		Name: managerInterface + ".JobRemoved",
		Body: []interface{}{uint32(7), dbus.ObjectPath("/org/freedesktop/systemd1/job/7"), "backup.service", "done"},
	}
	got, ok := ParseJobRemoved(sig)
	assert.True(t, ok)
	assert.Equal(t, JobRemoved{ID: 7, Job: "/org/freedesktop/systemd1/job/7", Unit: "backup.service", Result: "done"}, got)
}

func TestParseJobRemoved_WrongSignal(t *testing.T) {
	sig := &dbus.Signal{Name: "org.freedesktop.systemd1.Manager.JobNew", Body: []interface{}{}}
	_, ok := ParseJobRemoved(sig)
	assert.False(t, ok)
}

func TestIsPrepareForSleep(t *testing.T) {
	sig := &dbus.Signal{Name: login1Interface + ".PrepareForSleep", Body: []interface{}{true}}
	arg, ok := IsPrepareForSleep(sig)
	assert.True(t, ok)
	assert.True(t, arg)
}

func TestIsPrepareForShutdown_IgnoresOtherSignals(t *testing.T) {
	sig := &dbus.Signal{Name: login1Interface + ".PrepareForSleep", Body: []interface{}{true}}
	_, ok := IsPrepareForShutdown(sig)
	assert.False(t, ok)
}

func TestWrapRPCError_AccessDenied(t *testing.T) {
	err := wrapRPCError("PowerOff", dbus.Error{Name: "org.freedesktop.DBus.Error.AccessDenied", Body: []interface{}{"nope"}})
	assert.True(t, errors.Is(err, nkerrors.ErrRejected))
}

func TestWrapRPCError_Other(t *testing.T) {
	err := wrapRPCError("PowerOff", dbus.Error{Name: "org.freedesktop.DBus.Error.Failed", Body: []interface{}{"boom"}})
	assert.True(t, errors.Is(err, nkerrors.ErrRPCFailed))
}
