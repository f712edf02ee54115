// Package config defines Night-Kitchen's on-disk TOML configuration and its
// defaults.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is where the scheduler looks for its configuration if
// --config isn't given.
const DefaultPath = "/etc/night-kitchen/scheduler.toml"

// Scheduler holds the scheduler daemon's tunables.
type Scheduler struct {
	// Units is the set of .timer units the wake-alarm planner considers.
	Units []string `toml:"units"`

	// InhibitorWho and InhibitorWhy are passed to the login manager's
	// Inhibit call as the "who" and "why" arguments.
	InhibitorWho string `toml:"inhibitor_who"`
	InhibitorWhy string `toml:"inhibitor_why"`

	// RTCDevice is the character device the wake-alarm planner programs.
	RTCDevice string `toml:"rtc_device"`

	// AdjtimePath is where the hardware clock's UTC/local mode is recorded.
	AdjtimePath string `toml:"adjtime_path"`
}

// Default returns the scheduler configuration used when no file is present
// or a field is left unset.
func Default() Scheduler {
	return Scheduler{
		Units:        []string{"night-kitchen-daily.timer", "night-kitchen-weekly.timer"},
		InhibitorWho: "Night Kitchen Scheduler",
		InhibitorWhy: "Scheduling next system wakeup",
		RTCDevice:    "/dev/rtc0",
		AdjtimePath:  "/etc/adjtime",
	}
}

// Load reads and parses the TOML configuration at path, filling in any
// zero-valued field from Default(). A missing file is not an error: the
// defaults apply as-is.
func Load(path string) (Scheduler, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	var parsed Scheduler
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(parsed.Units) > 0 {
		cfg.Units = parsed.Units
	}
	if parsed.InhibitorWho != "" {
		cfg.InhibitorWho = parsed.InhibitorWho
	}
	if parsed.InhibitorWhy != "" {
		cfg.InhibitorWhy = parsed.InhibitorWhy
	}
	if parsed.RTCDevice != "" {
		cfg.RTCDevice = parsed.RTCDevice
	}
	if parsed.AdjtimePath != "" {
		cfg.AdjtimePath = parsed.AdjtimePath
	}

	return cfg, nil
}
