package rtc

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRoundTrip(t *testing.T) {
	cases := []time.Time{
		time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2033, time.May, 18, 3, 33, 20, 0, time.UTC),
		time.Date(2099, time.December, 31, 23, 59, 59, 0, time.UTC),
	}
	for _, want := range cases {
		got := TimeFromNaive(want).ToTime()
		assert.True(t, got.Equal(want), "round trip %s: got %s", want, got)
	}
}

func TestLeapSecondEncoding(t *testing.T) {
	instant := time.Date(2024, time.June, 30, 23, 59, 59, 999_500_000, time.UTC)
	rt := TimeFromNaive(instant)
	require.Equal(t, 60, rt.Second)

	decoded := rt.ToTime()
	assert.GreaterOrEqual(t, decoded.Nanosecond(), int(999*time.Millisecond))
}

func TestTimeFromNaive_OrdinarySecondNeverEncodesLeap(t *testing.T) {
	instant := time.Date(2024, time.June, 30, 23, 59, 59, 0, time.UTC)
	rt := TimeFromNaive(instant)
	assert.Equal(t, 59, rt.Second)
}

func TestReadClockMode_DefaultsToUTCWhenAbsent(t *testing.T) {
	mode, err := ReadClockMode("/nonexistent/adjtime-for-test")
	require.NoError(t, err)
	assert.Equal(t, UTC, mode)
}

func TestReadClockMode_ParsesThirdLine(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/adjtime"
	require.NoError(t, writeFile(path, "0.0 0 0\n0\nLOCAL\n"))

	mode, err := ReadClockMode(path)
	require.NoError(t, err)
	assert.Equal(t, Local, mode)
}

func TestReadClockMode_MalformedContent(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/adjtime"
	require.NoError(t, writeFile(path, "0.0 0 0\n0\nBOGUS\n"))

	_, err := ReadClockMode(path)
	require.Error(t, err)
}

func TestReadClockMode_TooFewLines(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/adjtime"
	require.NoError(t, writeFile(path, "0.0 0 0\n"))

	_, err := ReadClockMode(path)
	require.Error(t, err)
}

func TestClockModeConversions(t *testing.T) {
	utcInstant := time.Date(2030, time.January, 1, 12, 0, 0, 0, time.UTC)

	hw := UTC.ToHardware(utcInstant)
	assert.True(t, hw.Equal(utcInstant))
	back := UTC.ToUTC(hw)
	assert.True(t, back.Equal(utcInstant))
}

func TestDecideAlarm_NonClobberRule(t *testing.T) {
	prev := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2029, time.January, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2031, time.January, 1, 0, 0, 0, 0, time.UTC)

	current := WakeAlarm{Enabled: true, Time: TimeFromNaive(prev)}

	_, wroteLater := decideAlarm(current, UTC, later)
	assert.False(t, wroteLater, "should not clobber an earlier alarm with a later target")

	newAlarm, wroteEarlier := decideAlarm(current, UTC, earlier)
	assert.True(t, wroteEarlier, "should overwrite when the target is earlier")
	assert.True(t, newAlarm.Enabled)
	assert.True(t, newAlarm.Time.ToTime().Equal(earlier))
}

func TestDecideAlarm_NoPreexistingAlarm(t *testing.T) {
	target := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	newAlarm, wrote := decideAlarm(WakeAlarm{}, UTC, target)
	assert.True(t, wrote)
	assert.True(t, newAlarm.Enabled)
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
