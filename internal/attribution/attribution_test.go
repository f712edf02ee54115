package attribution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecide_TruthTable(t *testing.T) {
	start := time.Date(2026, time.July, 31, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		uptime     time.Duration
		haveResume bool
		resumeTime time.Time
		want       Action
	}{
		{
			name:   "short uptime, no resume file -> shutdown",
			uptime: 200 * time.Second,
			want:   PowerOff,
		},
		{
			name:       "long uptime, resume 30s old -> suspend",
			uptime:     400 * time.Second,
			haveResume: true,
			resumeTime: start.Add(-30 * time.Second),
			want:       Suspend,
		},
		{
			name:       "long uptime, resume 120s old -> noop",
			uptime:     400 * time.Second,
			haveResume: true,
			resumeTime: start.Add(-120 * time.Second),
			want:       NoAction,
		},
		{
			name:       "long uptime, resume newer than start -> suspend",
			uptime:     400 * time.Second,
			haveResume: true,
			resumeTime: start.Add(5 * time.Second),
			want:       Suspend,
		},
		{
			name:       "short uptime dominates even with fresh resume",
			uptime:     200 * time.Second,
			haveResume: true,
			resumeTime: start.Add(-30 * time.Second),
			want:       PowerOff,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.uptime, tc.haveResume, tc.resumeTime, start)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecide_NoResumeNoShortUptime_IsNoop(t *testing.T) {
	start := time.Date(2026, time.July, 31, 12, 0, 0, 0, time.UTC)
	got := Decide(400*time.Second, false, time.Time{}, start)
	assert.Equal(t, NoAction, got)
}
