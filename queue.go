package libcable

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultQueueCapacity    = 10
	defaultQueuePushTimeout = time.Second
)

type (
	operation func()

	deferredOperation struct {
		after uint64
		op    operation
	}

	// serializedQueue runs operations one at a time, in push order, on a single worker goroutine. Every piece of
	// connection and subscription state is mutated from inside these operations only.
	//
	// Overflow: a push to a full queue waits up to pushTimeout for room. When the wait expires the operation is
	// dropped, push returns ErrQueueFull and the worker reports the drop through onFailure after the operation it is
	// currently running. A panicking operation is recovered and reported the same way.
	//
	// pushLossless never drops: when the wait expires the operation is parked and runs as soon as every operation
	// accepted before it has run.
	serializedQueue struct {
		ops         chan operation
		pushTimeout time.Duration
		logger      Logger

		onFailure func(error)
		dropped   atomic.Int64

		accepted   atomic.Uint64
		executed   uint64
		deferredMu sync.Mutex
		deferred   []deferredOperation
		wake       chan struct{}

		startOnce sync.Once
		closeOnce sync.Once
		closeC    chan struct{}
		done      chan struct{}
	}
)

func newSerializedQueue(logger Logger, capacity int, pushTimeout time.Duration) *serializedQueue {
	if capacity < 0 {
		capacity = defaultQueueCapacity
	}
	if pushTimeout < 0 {
		pushTimeout = 0
	}
	return &serializedQueue{
		ops:         make(chan operation, capacity),
		pushTimeout: pushTimeout,
		logger:      logger.WithField("type", "serialized_queue"),
		onFailure:   func(error) {},
		wake:        make(chan struct{}, 1),
		closeC:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// start spawns the worker. Subsequent calls have no effect.
func (q *serializedQueue) start() {
	q.startOnce.Do(func() {
		go q.run()
	})
}

// push appends op to the queue. It never blocks for longer than the push timeout.
func (q *serializedQueue) push(op operation) error {
	err := q.enqueue(op)
	if errors.Is(err, ErrQueueFull) {
		return q.drop()
	}
	return err
}

// pushLossless appends op like push, but parks it instead of dropping it when the queue stays full. It only fails
// once the queue is closed.
func (q *serializedQueue) pushLossless(op operation) error {
	err := q.enqueue(op)
	if !errors.Is(err, ErrQueueFull) {
		return err
	}

	q.deferredMu.Lock()
	q.deferred = append(q.deferred, deferredOperation{after: q.accepted.Load(), op: op})
	q.deferredMu.Unlock()

	q.logger.Warnf("queue full after waiting %s, operation deferred", q.pushTimeout)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

func (q *serializedQueue) enqueue(op operation) error {
	select {
	case <-q.closeC:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ops <- op:
		q.accepted.Add(1)
		return nil
	default:
	}

	if q.pushTimeout == 0 {
		return ErrQueueFull
	}

	timer := time.NewTimer(q.pushTimeout)
	defer timer.Stop()

	select {
	case q.ops <- op:
		q.accepted.Add(1)
		return nil
	case <-q.closeC:
		return ErrQueueClosed
	case <-timer.C:
		return ErrQueueFull
	}
}

func (q *serializedQueue) drop() error {
	q.dropped.Add(1)
	q.logger.Warnf("queue full after waiting %s, operation dropped", q.pushTimeout)
	return ErrQueueFull
}

// close stops the worker once the operations already queued have run. It blocks until the worker exits.
func (q *serializedQueue) close() {
	q.closeOnce.Do(func() {
		close(q.closeC)
	})
	q.start()
	<-q.done
}

func (q *serializedQueue) run() {
	defer close(q.done)

	for {
		if op, ok := q.nextDeferred(); ok {
			q.exec(op)
			continue
		}

		select {
		case op := <-q.ops:
			q.executed++
			q.exec(op)
		case <-q.wake:
		case <-q.closeC:
			q.drain()
			return
		}
	}
}

func (q *serializedQueue) drain() {
	for {
		if op, ok := q.nextDeferred(); ok {
			q.exec(op)
			continue
		}

		select {
		case op := <-q.ops:
			q.executed++
			q.exec(op)
		default:
			// whatever is still parked waited on operations that were never accepted
			for _, d := range q.takeDeferred() {
				q.exec(d.op)
			}
			return
		}
	}
}

// nextDeferred pops the oldest parked operation once everything accepted before it has run.
func (q *serializedQueue) nextDeferred() (operation, bool) {
	q.deferredMu.Lock()
	defer q.deferredMu.Unlock()

	if len(q.deferred) == 0 || q.deferred[0].after > q.executed {
		return nil, false
	}
	op := q.deferred[0].op
	q.deferred = q.deferred[1:]
	return op, true
}

func (q *serializedQueue) takeDeferred() []deferredOperation {
	q.deferredMu.Lock()
	defer q.deferredMu.Unlock()

	deferred := q.deferred
	q.deferred = nil
	return deferred
}

func (q *serializedQueue) exec(op operation) {
	q.safeRun(op)

	if n := q.dropped.Swap(0); n > 0 {
		q.safeRun(func() {
			q.onFailure(errors.Wrapf(ErrQueueFull, "%d operation(s) dropped", n))
		})
	}
}

func (q *serializedQueue) safeRun(op operation) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Wrap(ErrOperationPanic, fmt.Sprint(r))
			q.logger.Errorf("recovered from panic in queued operation: %v", r)
			q.reportPanic(err)
		}
	}()

	op()
}

// reportPanic hands a recovered panic to onFailure without letting a panicking failure hook take the worker down.
func (q *serializedQueue) reportPanic(err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Errorf("failure hook panicked: %v", r)
		}
	}()
	q.onFailure(err)
}
