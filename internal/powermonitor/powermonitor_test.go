package powermonitor

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCloser counts how many times it's been closed, so tests can assert
// the "closed exactly once" property from the spec's inhibitor-timeout
// scenario.
type fakeCloser struct {
	closed int
}

func (c *fakeCloser) Close() error {
	c.closed++
	return nil
}

type fakeInhibitor struct {
	takes  int
	issued []*fakeCloser
	err    error
}

func (f *fakeInhibitor) Take(_ context.Context) (io.Closer, error) {
	f.takes++
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeCloser{}
	f.issued = append(f.issued, c)
	return c, nil
}

func newTestMonitor() (*Monitor, *fakeInhibitor, *[]PowerEvent) {
	inhibitor := &fakeInhibitor{}
	events := &[]PowerEvent{}
	m := &Monitor{
		Inhibitor: inhibitor,
		Callback: func(_ context.Context, e PowerEvent) error {
			*events = append(*events, e)
			return nil
		},
	}
	return m, inhibitor, events
}

func TestMonitor_StartTakesLock(t *testing.T) {
	m, inhibitor, _ := newTestMonitor()
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, IdleHeld, m.State())
	assert.Equal(t, 1, inhibitor.takes)
}

func TestMonitor_StartIsIdempotent(t *testing.T) {
	m, inhibitor, _ := newTestMonitor()
	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, 1, inhibitor.takes, "a second Start() while already held must not re-acquire")
}

func TestMonitor_SleepCycle_InhibitorConservation(t *testing.T) {
	ctx := context.Background()
	m, inhibitor, events := newTestMonitor()
	require.NoError(t, m.Start(ctx))

	firstLock := inhibitor.issued[0]

	require.NoError(t, m.HandlePrepareForSleep(ctx, true))
	assert.Equal(t, Sleeping, m.State())
	assert.Equal(t, 1, firstLock.closed, "fd must be closed before PrepareForSleep(false) arrives")
	assert.Nil(t, m.lock)

	require.NoError(t, m.HandlePrepareForSleep(ctx, false))
	assert.Equal(t, IdleHeld, m.State())
	assert.Equal(t, 2, inhibitor.takes, "a fresh lock must be acquired on wake")
	assert.NotNil(t, m.lock)

	assert.Equal(t, []PowerEvent{PreSleep, PostSleep}, *events)
}

func TestMonitor_ShutdownCycle_TransitionsToTerminal(t *testing.T) {
	ctx := context.Background()
	m, inhibitor, events := newTestMonitor()
	require.NoError(t, m.Start(ctx))
	firstLock := inhibitor.issued[0]

	require.NoError(t, m.HandlePrepareForShutdown(ctx, true))
	assert.Equal(t, ShuttingDownTerminal, m.State())
	assert.Equal(t, 1, firstLock.closed)
	assert.Equal(t, []PowerEvent{PreShutdown}, *events)

	// A late PrepareForShutdown(false) (host didn't actually go down) is
	// logged as an anomaly but must not change state or double-close.
	require.NoError(t, m.HandlePrepareForShutdown(ctx, false))
	assert.Equal(t, ShuttingDownTerminal, m.State())
	assert.Equal(t, 1, firstLock.closed)
}

func TestMonitor_ReentrantPrepareForSleep_NoDoubleClose(t *testing.T) {
	ctx := context.Background()
	m, inhibitor, _ := newTestMonitor()
	require.NoError(t, m.Start(ctx))
	firstLock := inhibitor.issued[0]

	require.NoError(t, m.HandlePrepareForSleep(ctx, true))
	// A second PrepareForSleep(true) while already Sleeping is out of the
	// expected state and must be ignored, not re-delivered.
	require.NoError(t, m.HandlePrepareForSleep(ctx, true))
	assert.Equal(t, 1, firstLock.closed)
	assert.Equal(t, Sleeping, m.State())
}

func TestMonitor_TakeFailurePropagates(t *testing.T) {
	ctx := context.Background()
	inhibitor := &fakeInhibitor{err: errors.New("bus unreachable")}
	m := &Monitor{Inhibitor: inhibitor}
	err := m.Start(ctx)
	assert.Error(t, err)
	assert.Equal(t, IdleNoLock, m.State())
}

func TestMonitor_Close_ReleasesHeldLock(t *testing.T) {
	ctx := context.Background()
	m, inhibitor, _ := newTestMonitor()
	require.NoError(t, m.Start(ctx))
	firstLock := inhibitor.issued[0]

	require.NoError(t, m.Close())
	assert.Equal(t, 1, firstLock.closed)
	assert.Nil(t, m.lock)
}
