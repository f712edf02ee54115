package rtc

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bnavetta/night-kitchen/internal/nkerrors"
)

// ClockMode says which timezone the hardware clock itself is set to. Most
// Linux systems keep the RTC in UTC, but dual-boot machines commonly leave it
// on local time for compatibility with other operating systems.
type ClockMode int

const (
	// UTC is the kernel's documented default when /etc/adjtime is absent.
	UTC ClockMode = iota
	Local
)

func (m ClockMode) String() string {
	switch m {
	case Local:
		return "LOCAL"
	default:
		return "UTC"
	}
}

// ReadClockMode determines the hardware clock's timezone by reading the
// third line of /etc/adjtime (empty lines are counted). A missing file means UTC, which is
// the documented kernel default; any other content on that line is
// malformed.
func ReadClockMode(adjtimePath string) (ClockMode, error) {
	f, err := os.Open(adjtimePath)
	if err != nil {
		if os.IsNotExist(err) {
			return UTC, nil
		}
		return UTC, fmt.Errorf("opening %s: %w", adjtimePath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() && len(lines) < 3 {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return UTC, fmt.Errorf("reading %s: %w", adjtimePath, err)
	}
	if len(lines) < 3 {
		return UTC, fmt.Errorf("%s has fewer than 3 lines: %w", adjtimePath, nkerrors.ErrMalformed)
	}

	switch strings.TrimSpace(lines[2]) {
	case "UTC":
		return UTC, nil
	case "LOCAL":
		return Local, nil
	default:
		return UTC, fmt.Errorf("unrecognized clock mode %q in %s: %w", lines[2], adjtimePath, nkerrors.ErrMalformed)
	}
}

// ToUTC converts a naive hardware-clock reading to a UTC instant, using this
// ClockMode to interpret it.
func (m ClockMode) ToUTC(hardware time.Time) time.Time {
	if m == Local {
		local := time.Date(hardware.Year(), hardware.Month(), hardware.Day(),
			hardware.Hour(), hardware.Minute(), hardware.Second(), hardware.Nanosecond(), time.Local)
		return local.UTC()
	}
	return hardware.UTC()
}

// ToHardware converts a UTC instant to the naive calendar value the hardware
// clock should be programmed with, using this ClockMode.
func (m ClockMode) ToHardware(t time.Time) time.Time {
	if m == Local {
		local := t.In(time.Local)
		return time.Date(local.Year(), local.Month(), local.Day(),
			local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
	}
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(),
		t.UTC().Hour(), t.UTC().Minute(), t.UTC().Second(), t.UTC().Nanosecond(), time.UTC)
}
