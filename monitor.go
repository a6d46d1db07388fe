package libcable

import (
	"sync"
	"time"
)

type reopener interface {
	Reopen() error
}

// connectionMonitor keeps a consumer connected. The server pings every few seconds; when nothing has been heard
// for staleThreshold (because the socket failed, closed or silently died) the monitor reopens the connection,
// polling with exponential backoff until it connects again or runs out of attempts.
type connectionMonitor struct {
	logger         Logger
	conn           reopener
	emit           func(Event)
	backoff        BackoffCalculator
	staleThreshold time.Duration
	maxAttempts    int
	now            func() time.Time

	mu             sync.Mutex
	running        bool
	stopC          chan struct{}
	attempts       int
	startedAt      time.Time
	pingedAt       time.Time
	disconnectedAt time.Time
}

func newConnectionMonitor(logger Logger, conn reopener, emit func(Event), opts Options) *connectionMonitor {
	return &connectionMonitor{
		logger:         logger.WithField("type", "connection_monitor"),
		conn:           conn,
		emit:           emit,
		backoff:        NewExponentialBackoff(opts.ReconnectionDelay, opts.ReconnectionDelayMax),
		staleThreshold: opts.StaleThreshold,
		maxAttempts:    opts.ReconnectionMaxAttempts,
		now:            time.Now,
	}
}

// start begins polling. It has no effect while already running.
func (m *connectionMonitor) start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.running = true
	m.attempts = 0
	m.startedAt = m.now()
	m.pingedAt = time.Time{}
	m.disconnectedAt = time.Time{}
	m.stopC = make(chan struct{})

	go m.run(m.stopC)
	m.logger.Debugf("started, stale threshold %s", m.staleThreshold)
}

func (m *connectionMonitor) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
}

func (m *connectionMonitor) stopLocked() {
	if !m.running {
		return
	}
	m.running = false
	close(m.stopC)
	m.logger.Debugln("stopped")
}

func (m *connectionMonitor) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

func (m *connectionMonitor) recordConnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts = 0
	m.pingedAt = m.now()
	m.disconnectedAt = time.Time{}
}

func (m *connectionMonitor) recordPing() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pingedAt = m.now()
}

func (m *connectionMonitor) recordDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnectedAt = m.now()
}

func (m *connectionMonitor) run(stopC chan struct{}) {
	for {
		timer := time.NewTimer(m.pollInterval())

		select {
		case <-stopC:
			timer.Stop()
			return
		case <-timer.C:
			if !m.poll(stopC) {
				return
			}
		}
	}
}

func (m *connectionMonitor) pollInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.backoff(m.attempts)
}

// poll reopens the connection if it is stale. It returns false once the monitor should stop.
func (m *connectionMonitor) poll(stopC chan struct{}) bool {
	m.mu.Lock()

	select {
	case <-stopC:
		m.mu.Unlock()
		return false
	default:
	}

	if !m.staleLocked() {
		m.mu.Unlock()
		return true
	}

	if m.attempts >= m.maxAttempts {
		m.logger.Warnf("connection still stale after %d attempts, giving up", m.attempts)
		attempts := m.attempts
		m.stopLocked()
		m.mu.Unlock()
		m.emit(Event{Type: EventReconnectGaveUp, Attempt: attempts})
		return false
	}

	m.attempts++
	attempt := m.attempts

	if m.disconnectedRecentlyLocked() {
		m.logger.Infof("connection stale, skipping attempt %d: disconnected recently", attempt)
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	m.logger.Infof("connection stale, reopening (attempt %d)", attempt)
	m.emit(Event{Type: EventReconnecting, Attempt: attempt})
	if err := m.conn.Reopen(); err != nil {
		m.logger.Errorf("cannot reopen connection: %s", err)
	}
	return true
}

func (m *connectionMonitor) staleLocked() bool {
	last := m.pingedAt
	if last.IsZero() {
		last = m.startedAt
	}
	return m.now().Sub(last) > m.staleThreshold
}

func (m *connectionMonitor) disconnectedRecentlyLocked() bool {
	return !m.disconnectedAt.IsZero() && m.now().Sub(m.disconnectedAt) < m.staleThreshold
}
