// Package wakealarm implements the wake-alarm planner: the algorithm that
// decides the earliest instant the machine needs to wake up for, across all
// configured timer units, and programs the RTC accordingly without
// clobbering an earlier pending alarm.
package wakealarm

import (
	"context"
	"errors"
	"time"

	"github.com/containerd/log"

	"github.com/bnavetta/night-kitchen/internal/clock"
	"github.com/bnavetta/night-kitchen/internal/nkerrors"
	"github.com/bnavetta/night-kitchen/internal/rtc"
)

// TimerSource is the subset of the systemd-manager D-Bus facade the planner
// needs: the next-elapse properties of a given .timer unit, in microseconds
// since the epoch on each clock. A value of zero means "no event on that
// clock", per the systemd Timer D-Bus interface.
type TimerSource interface {
	NextElapseUSecRealtime(ctx context.Context, unit string) (uint64, error)
	NextElapseUSecMonotonic(ctx context.Context, unit string) (uint64, error)
}

// Elapsation is a single timer unit's contribution to the plan: its next
// firing on each clock, both already expressed in the realtime domain
// (Monotonic holds the converted monotonic reading). Nil means that clock
// reported no event.
type Elapsation struct {
	Unit      string
	Realtime  *time.Time
	Monotonic *time.Time
}

// Planner gathers elapsations from the configured timer units, picks the
// earliest, and programs the RTC wake alarm for it.
type Planner struct {
	Units       []string
	Timers      TimerSource
	RTC         *rtc.Driver
	AdjtimePath string
}

// Plan runs the full algorithm described in spec.md §4.7: gather, select,
// read the clock mode, and program the RTC under the non-clobber rule.
// Failure to program the RTC is reported but never prevents the caller
// (the PreSleep or PreShutdown callback) from proceeding with the transition —
// the caller is expected to log a returned error and continue regardless.
func (p *Planner) Plan(ctx context.Context) (wrote bool, target time.Time, err error) {
	elapsations := make([]Elapsation, 0, len(p.Units))
	for _, unit := range p.Units {
		e, err := p.gather(ctx, unit)
		if err != nil {
			log.G(ctx).WithError(err).WithField("unit", unit).Warn("could not query next elapsation, skipping")
			continue
		}
		if e.Realtime == nil && e.Monotonic == nil {
			log.G(ctx).WithField("unit", unit).Warn("timer reported no elapsation on either clock")
			continue
		}
		elapsations = append(elapsations, e)
	}

	target, ok := SelectTarget(elapsations)
	if !ok {
		log.G(ctx).Info("no timer contributed an elapsation, skipping RTC programming")
		return false, time.Time{}, nil
	}

	mode, err := rtc.ReadClockMode(p.AdjtimePath)
	if err != nil {
		if !errors.Is(err, nkerrors.ErrMalformed) {
			return false, target, err
		}
		log.G(ctx).WithError(err).Warn("malformed adjtime, assuming the RTC is in UTC")
		mode = rtc.UTC
	}

	wrote, err = p.RTC.Program(mode, target)
	return wrote, target, err
}

func (p *Planner) gather(ctx context.Context, unit string) (Elapsation, error) {
	e := Elapsation{Unit: unit}

	realtimeUsec, err := p.Timers.NextElapseUSecRealtime(ctx, unit)
	if err != nil {
		return e, err
	}
	if realtimeUsec != 0 {
		t := clock.FromMicrosecondsSinceEpoch(realtimeUsec)
		e.Realtime = &t
	}

	monotonicUsec, err := p.Timers.NextElapseUSecMonotonic(ctx, unit)
	if err != nil {
		return e, err
	}
	if monotonicUsec != 0 {
		monotonic := clock.FromMicrosecondsSinceEpoch(monotonicUsec)
		realtime, err := clock.MonotonicToRealtime(monotonic)
		if err != nil {
			return e, err
		}
		e.Monotonic = &realtime
	}

	return e, nil
}

// SelectTarget picks the earliest instant across all elapsations: the
// per-unit minimum of its contributing clocks, then the minimum across
// units. It returns false if no elapsation contributed anything.
//
// Monotonicity: for input sets I1 subset-of I2, SelectTarget(I2) <=
// SelectTarget(I1), since adding more candidates can only lower (or leave
// unchanged) the overall minimum.
func SelectTarget(elapsations []Elapsation) (time.Time, bool) {
	var best *time.Time
	for _, e := range elapsations {
		unitBest := earlier(e.Realtime, e.Monotonic)
		if unitBest == nil {
			continue
		}
		if best == nil || unitBest.Before(*best) {
			best = unitBest
		}
	}
	if best == nil {
		return time.Time{}, false
	}
	return *best, true
}

func earlier(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Before(*b):
		return a
	default:
		return b
	}
}
