package rtc

import "time"

// Time is the calendar-broken-down time layout the Linux RTC ioctls consume
// (struct rtc_time in <linux/rtc.h>). Second goes up to 60 to encode a leap
// second. DayOfWeek, DayOfYear, and DST are present because the kernel struct
// has them, but this driver always zeroes them on write and ignores them on
// read.
type Time struct {
	Second      int // 0-60; 60 encodes a leap second
	Minute      int // 0-59
	Hour        int // 0-23
	Day         int // 1-31, day of month
	Month       int // 0-11
	Year        int // years since 1900
	DayOfWeek   int // unused, always 0
	DayOfYear   int // unused, always 0
	DST         int // unused, always 0
}

// leapSecondThreshold is the sub-second boundary this driver uses to signal
// "the calendar instant being converted represents a leap second". Go's
// time.Time has no native leap-second representation (Nanosecond is always in
// [0, 1e9)), so rather than the out-of-band "millisecond > 999" trick the
// original Rust implementation borrowed from chrono, this port treats any
// instant whose fractional second is at or above 999ms as the leap-second
// case. Ordinary integer-second instants (the overwhelming majority) are
// always well below this and round-trip exactly.
const leapSecondThreshold = 999 * time.Millisecond

// ToTime converts an RTC time to a calendar instant. The result carries no
// timezone information of its own — whether it should be interpreted as UTC
// or local wall-clock time depends on the hardware clock's ClockMode.
func (t Time) ToTime() time.Time {
	if t.Second == 60 {
		return time.Date(t.Year+1900, time.Month(t.Month+1), t.Day, t.Hour, t.Minute, 59, int(leapSecondThreshold), time.UTC)
	}
	return time.Date(t.Year+1900, time.Month(t.Month+1), t.Day, t.Hour, t.Minute, t.Second, 0, time.UTC)
}

// TimeFromNaive converts a naive calendar instant (already in the hardware
// clock's timezone — see ClockMode) to the RTC wire format.
func TimeFromNaive(t time.Time) Time {
	second := t.Second()
	if time.Duration(t.Nanosecond()) >= leapSecondThreshold {
		second = 60
	}
	return Time{
		Second: second,
		Minute: t.Minute(),
		Hour:   t.Hour(),
		Day:    t.Day(),
		Month:  int(t.Month()) - 1,
		Year:   t.Year() - 1900,
	}
}
