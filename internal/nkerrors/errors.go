// Package nkerrors defines the error taxonomy shared by the scheduler and
// runner: sentinel values that let callers distinguish "log and continue"
// failures from ones that should abort the current operation, without
// resorting to string matching.
package nkerrors

import "errors"

var (
	// ErrBusUnavailable means the process could not connect to the system
	// D-Bus. Always fatal at startup.
	ErrBusUnavailable = errors.New("system bus unavailable")

	// ErrRPCFailed means a D-Bus call returned an error or timed out.
	// Surfaced by the unit starter, inhibitor acquisition, and the
	// wake-alarm planner; recovered silently by session enumeration, which
	// treats failure as "no information available".
	ErrRPCFailed = errors.New("dbus rpc failed")

	// ErrHardwareUnavailable means /dev/rtc0 is missing or the wake-alarm
	// ioctls aren't supported by the underlying RTC driver. The planner logs
	// and skips RTC programming; it does not fail shutdown.
	ErrHardwareUnavailable = errors.New("rtc hardware unavailable")

	// ErrMalformed means /etc/adjtime or the resume-timestamp file exists
	// but could not be parsed. Treated as "no information", with the caller
	// falling back to defaults.
	ErrMalformed = errors.New("malformed data")

	// ErrRejected means a privileged D-Bus operation returned permission
	// denied. Surfaced without retry.
	ErrRejected = errors.New("operation rejected")
)
