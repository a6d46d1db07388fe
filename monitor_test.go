package libcable

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReopener struct {
	calls atomic.Int32
	err   error
}

func (r *fakeReopener) Reopen() error {
	r.calls.Add(1)
	return r.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) emit(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func newTestMonitor(t *testing.T, conn reopener, opts Options) (*connectionMonitor, *eventLog, *fakeClock) {
	opts.Logger = detachedLogger()
	opts = opts.withDefaults()

	log := &eventLog{}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m := newConnectionMonitor(opts.Logger, conn, log.emit, opts)
	m.now = clock.Now
	t.Cleanup(m.stop)

	return m, log, clock
}

func TestConnectionMonitor_ReopensStaleConnection(t *testing.T) {
	conn := &fakeReopener{}
	m, log, clock := newTestMonitor(t, conn, Options{
		ReconnectionDelay:    time.Millisecond,
		ReconnectionDelayMax: 5 * time.Millisecond,
		StaleThreshold:       time.Second,
	})

	m.start()
	m.recordConnect()
	assert.Never(t, func() bool { return conn.calls.Load() > 0 }, 30*time.Millisecond, tick)

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return conn.calls.Load() > 0 }, waitFor, tick)

	events := log.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, Event{Type: EventReconnecting, Attempt: 1}, events[0])
}

func TestConnectionMonitor_PingsKeepConnectionFresh(t *testing.T) {
	conn := &fakeReopener{}
	m, _, clock := newTestMonitor(t, conn, Options{
		ReconnectionDelay:    time.Millisecond,
		ReconnectionDelayMax: 2 * time.Millisecond,
		StaleThreshold:       time.Second,
	})

	m.start()
	m.recordConnect()
	for i := 0; i < 10; i++ {
		clock.Advance(500 * time.Millisecond)
		m.recordPing()
		time.Sleep(3 * time.Millisecond)
	}

	assert.Zero(t, conn.calls.Load())
}

func TestConnectionMonitor_SkipsWhenDisconnectedRecently(t *testing.T) {
	conn := &fakeReopener{}
	m, _, clock := newTestMonitor(t, conn, Options{
		ReconnectionMaxAttempts: 1000,
		ReconnectionDelay:       time.Millisecond,
		ReconnectionDelayMax:    2 * time.Millisecond,
		StaleThreshold:          time.Second,
	})

	m.start()

	// stale and disconnected a moment ago, in one step
	m.mu.Lock()
	clock.Advance(2 * time.Second)
	m.disconnectedAt = clock.Now()
	m.mu.Unlock()

	assert.Never(t, func() bool { return conn.calls.Load() > 0 }, 30*time.Millisecond, tick)

	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return conn.calls.Load() > 0 }, waitFor, tick)
}

func TestConnectionMonitor_GivesUpAfterMaxAttempts(t *testing.T) {
	conn := &fakeReopener{err: errors.New("queue closed")}
	m, log, clock := newTestMonitor(t, conn, Options{
		ReconnectionMaxAttempts: 3,
		ReconnectionDelay:       time.Millisecond,
		ReconnectionDelayMax:    2 * time.Millisecond,
		StaleThreshold:          time.Second,
	})

	m.start()
	clock.Advance(2 * time.Second)

	require.Eventually(t, func() bool { return !m.isRunning() }, waitFor, tick)

	assert.Equal(t, int32(3), conn.calls.Load())
	assert.Equal(t, []Event{
		{Type: EventReconnecting, Attempt: 1},
		{Type: EventReconnecting, Attempt: 2},
		{Type: EventReconnecting, Attempt: 3},
		{Type: EventReconnectGaveUp, Attempt: 3},
	}, log.Events())
}

func TestConnectionMonitor_ConnectResetsAttempts(t *testing.T) {
	conn := &fakeReopener{}
	m, _, clock := newTestMonitor(t, conn, Options{
		ReconnectionDelay:    time.Millisecond,
		ReconnectionDelayMax: 2 * time.Millisecond,
		StaleThreshold:       time.Second,
	})

	m.start()
	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return conn.calls.Load() > 0 }, waitFor, tick)

	m.recordConnect()

	m.mu.Lock()
	attempts := m.attempts
	m.mu.Unlock()
	assert.Zero(t, attempts)
}

func TestConnectionMonitor_StartStop(t *testing.T) {
	m, _, _ := newTestMonitor(t, &fakeReopener{}, Options{})

	assert.False(t, m.isRunning())
	m.start()
	m.start()
	assert.True(t, m.isRunning())
	m.stop()
	m.stop()
	assert.False(t, m.isRunning())
}
