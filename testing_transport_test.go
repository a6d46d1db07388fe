package libcable

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

type fakeDial struct {
	ctx      context.Context
	params   OpenConnectionParams
	listener TransportListener
}

// fakeTransport records every Open call; tests drive the listener by hand.
type fakeTransport struct {
	mu    sync.Mutex
	dials []*fakeDial
}

func (t *fakeTransport) Open(ctx context.Context, params OpenConnectionParams, listener TransportListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials = append(t.dials, &fakeDial{ctx: ctx, params: params, listener: listener})
}

func (t *fakeTransport) dialCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dials)
}

func (t *fakeTransport) dial(tb testing.TB, i int) *fakeDial {
	tb.Helper()
	require.Eventually(tb, func() bool { return t.dialCount() > i }, waitFor, tick)

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials[i]
}

func (t *fakeTransport) last(tb testing.TB) *fakeDial {
	tb.Helper()
	require.Eventually(tb, func() bool { return t.dialCount() > 0 }, waitFor, tick)

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dials[len(t.dials)-1]
}

type closeCall struct {
	code   int
	reason string
}

type fakeSocket struct {
	mu      sync.Mutex
	sent    []string
	closes  []closeCall
	sendErr error
}

func (s *fakeSocket) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSocket) Close(code int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes = append(s.closes, closeCall{code: code, reason: reason})
	return nil
}

func (s *fakeSocket) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *fakeSocket) Closes() []closeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]closeCall(nil), s.closes...)
}

// mockSender stands in for the consumer behind a Subscriptions registry.
type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(cmd Command) bool {
	args := m.Called(cmd)
	return args.Bool(0)
}

func testLogger(t *testing.T) Logger {
	return NewZapLogger(zaptest.NewLogger(t))
}

// detachedLogger is for components whose goroutines may outlive the test, zaptest loggers panic when used late.
func detachedLogger() Logger {
	return NewWriterLogger(io.Discard, LevelDebug)
}

// flush waits until every operation queued before the call has run.
func flush(t *testing.T, q *serializedQueue) {
	t.Helper()

	done := make(chan struct{})
	require.NoError(t, q.push(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("operation queue did not drain")
	}
}

// recorder collects callback invocations from the queue goroutine.
type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) addErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "failure")
	r.errs = append(r.errs, err)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) Errs() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// notify never blocks the operation queue on a full test channel.
func notify[T any](c chan T, v T) {
	select {
	case c <- v:
	default:
	}
}
