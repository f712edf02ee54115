// Package rtc drives the Linux real-time clock character device, programming
// and reading back its wake alarm. The ioctl plumbing follows the same
// syscall.Syscall(SYS_IOCTL, ...) pattern as github.com/cleroux/rtc; this
// package adds the RTC_WKALM_RD/RTC_WKALM_SET alarm ioctls (which that
// library doesn't expose with the RTCWkAlrm type) plus the ClockMode-aware
// conversions Night-Kitchen's wake-alarm planner needs.
package rtc

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bnavetta/night-kitchen/internal/nkerrors"
)

// DefaultDevice is the RTC character device most single-RTC systems expose.
const DefaultDevice = "/dev/rtc0"

// WakeAlarm is the kernel's rtc_wkalrm layout: whether the alarm is armed,
// whether it has already fired and is waiting to be acknowledged (read-only,
// set by the kernel), and the calendar time it's set for. When Enabled is
// false, Time is ignored by the kernel.
type WakeAlarm struct {
	Enabled bool
	Pending bool
	Time    Time
}

// Driver holds an open file descriptor to an RTC device for the life of the
// process. Unlike the resume-timestamp store, there's no reason to open and
// close the device per call: the wake-alarm planner is the only caller, and
// it runs once per sleep or shutdown sequence.
type Driver struct {
	f *os.File
}

// Open opens the RTC character device at path.
func Open(path string) (*Driver, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening rtc device %s: %w", path, err)
	}
	return &Driver{f: f}, nil
}

// Close releases the underlying file descriptor.
func (d *Driver) Close() error {
	return d.f.Close()
}

// ReadAlarm issues RTC_WKALM_RD. It fails with ErrHardwareUnavailable if the
// device doesn't support the wake-alarm interface (some older RTCs only
// support RTC_ALM_READ/RTC_AIE_ON instead), and with a wrapped errno
// otherwise.
func (d *Driver) ReadAlarm() (WakeAlarm, error) {
	var raw unix.RTCWkAlrm
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, d.f.Fd(), unix.RTC_WKALM_RD, uintptr(unsafe.Pointer(&raw))); errno != 0 {
		return WakeAlarm{}, ioctlError("RTC_WKALM_RD", errno)
	}
	return fromRaw(raw), nil
}

// WriteAlarm issues RTC_WKALM_SET with the given alarm configuration. Same
// failure taxonomy as ReadAlarm.
func (d *Driver) WriteAlarm(alarm WakeAlarm) error {
	raw := toRaw(alarm)
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, d.f.Fd(), unix.RTC_WKALM_SET, uintptr(unsafe.Pointer(&raw))); errno != 0 {
		return ioctlError("RTC_WKALM_SET", errno)
	}
	return nil
}

func ioctlError(op string, errno syscall.Errno) error {
	if errors.Is(errno, syscall.ENOTTY) {
		return fmt.Errorf("%s not supported by this RTC: %w", op, nkerrors.ErrHardwareUnavailable)
	}
	return fmt.Errorf("%s ioctl failed: %w", op, errno)
}

func fromRaw(raw unix.RTCWkAlrm) WakeAlarm {
	return WakeAlarm{
		Enabled: raw.Enabled != 0,
		Pending: raw.Pending != 0,
		Time: Time{
			Second: int(raw.Time.Sec),
			Minute: int(raw.Time.Min),
			Hour:   int(raw.Time.Hour),
			Day:    int(raw.Time.Mday),
			Month:  int(raw.Time.Mon),
			Year:   int(raw.Time.Year),
		},
	}
}

func toRaw(alarm WakeAlarm) unix.RTCWkAlrm {
	var enabled, pending uint8
	if alarm.Enabled {
		enabled = 1
	}
	if alarm.Pending {
		pending = 1
	}
	return unix.RTCWkAlrm{
		Enabled: enabled,
		Pending: pending,
		Time: unix.RTCTime{
			Sec:  int32(alarm.Time.Second),
			Min:  int32(alarm.Time.Minute),
			Hour: int32(alarm.Time.Hour),
			Mday: int32(alarm.Time.Day),
			Mon:  int32(alarm.Time.Month),
			Year: int32(alarm.Time.Year),
		},
	}
}

// Program implements the non-clobber rule from the wake-alarm planner: given
// the clock mode used to interpret hardware times, it writes a new alarm for
// target only if no alarm is currently armed, or the armed alarm is later
// than target. It returns whether it wrote a new alarm.
func (d *Driver) Program(mode ClockMode, target time.Time) (wrote bool, err error) {
	current, err := d.ReadAlarm()
	if err != nil {
		return false, err
	}
	newAlarm, wrote := decideAlarm(current, mode, target)
	if !wrote {
		return false, nil
	}
	if err := d.WriteAlarm(newAlarm); err != nil {
		return false, err
	}
	return true, nil
}

// decideAlarm is the non-clobber decision, factored out so it can be unit
// tested without an RTC device: write a new alarm for target unless one is
// already armed for an equal or earlier time.
func decideAlarm(current WakeAlarm, mode ClockMode, target time.Time) (WakeAlarm, bool) {
	if current.Enabled {
		currentUTC := mode.ToUTC(current.Time.ToTime())
		if !target.Before(currentUTC) {
			return WakeAlarm{}, false
		}
	}
	hardware := mode.ToHardware(target)
	return WakeAlarm{Enabled: true, Time: TimeFromNaive(hardware)}, true
}
