// Package clock converts between the clock domains Night-Kitchen has to
// reconcile: the host unit manager reports timer elapsation points on either
// CLOCK_MONOTONIC or CLOCK_REALTIME, while the RTC only understands wall-clock
// time. This mirrors the approach systemd itself uses when converting
// between the two (see dual_clock_get / calc_next_elapse in systemd's
// time-util.c): read both clocks once, and use the difference as an offset.
package clock

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// FromMicrosecondsSinceEpoch treats usec as microseconds since the UTC Unix
// epoch and returns the corresponding instant, exactly, with no rounding.
func FromMicrosecondsSinceEpoch(usec uint64) time.Time {
	return time.Unix(0, int64(usec)*int64(time.Microsecond)).UTC()
}

// MonotonicToRealtime converts an instant on the CLOCK_MONOTONIC timeline to
// the equivalent CLOCK_REALTIME instant. It reads both clocks once, forms the
// offset delta = realtime_now - monotonic_now, and returns monotonic + delta.
//
// The two clock reads are not atomic, so the result can be off by a small
// (sub-millisecond) amount under clock skew. That's acceptable here: wake
// alarms are scheduled minutes to hours out. The offset is intentionally not
// cached across calls — NTP adjustments and clock skew make a cached delta
// unsafe, and recomputing it is cheap.
func MonotonicToRealtime(monotonic time.Time) (time.Time, error) {
	monotonicNow, err := gettime(unix.CLOCK_MONOTONIC)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading CLOCK_MONOTONIC: %w", err)
	}
	realtimeNow, err := gettime(unix.CLOCK_REALTIME)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading CLOCK_REALTIME: %w", err)
	}
	delta := realtimeNow.Sub(monotonicNow)
	return monotonic.Add(delta), nil
}

func gettime(clockid int32) (time.Time, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(clockid, &ts); err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts.Sec, ts.Nsec).UTC(), nil
}
