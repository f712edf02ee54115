package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFromMicrosecondsSinceEpoch(t *testing.T) {
	// 2033-05-18 03:33:20Z, used in the spec's end-to-end scenario.
	got := FromMicrosecondsSinceEpoch(2_000_000_000_000_000)
	want := time.Date(2033, time.May, 18, 3, 33, 20, 0, time.UTC)
	assert.True(t, got.Equal(want), "got %s, want %s", got, want)
}

func TestFromMicrosecondsSinceEpoch_Zero(t *testing.T) {
	got := FromMicrosecondsSinceEpoch(0)
	assert.True(t, got.Equal(time.Unix(0, 0).UTC()))
}

func TestMonotonicToRealtime_TracksWallClockOffset(t *testing.T) {
	monotonicNow, err := gettime(unix.CLOCK_MONOTONIC)
	require.NoError(t, err)
	now, err := MonotonicToRealtime(monotonicNow)
	require.NoError(t, err)
	// The converted instant should be within a generous bound of wall-clock
	// now: we can't assert exact equality since the two clock reads aren't
	// atomic, but converting the current monotonic reading should land close
	// to the real "now".
	assert.WithinDuration(t, time.Now(), now, 5*time.Second)
}
