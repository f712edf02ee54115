// Package uptime reads system uptime via the sysinfo(2) syscall, the same
// golang.org/x/sys/unix surface the rtc package uses for its ioctls.
package uptime

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Get returns the duration since the system booted.
func Get() (time.Duration, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	return time.Duration(info.Uptime) * time.Second, nil
}
