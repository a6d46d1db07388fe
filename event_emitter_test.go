package libcable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventEmitter_SingleListener(t *testing.T) {
	emitter := NewEventEmitter[EventType, Event]()

	var got []Event
	emitter.On(EventConnected, func(e Event) { got = append(got, e) })

	emitter.Emit(EventConnected, Event{Type: EventConnected})

	assert.Equal(t, []Event{{Type: EventConnected}}, got)
}

func TestEventEmitter_ListenersRunInRegistrationOrder(t *testing.T) {
	emitter := NewEventEmitter[string, int]()

	var got []int
	emitter.On("event", func(v int) { got = append(got, v) })
	emitter.On("event", func(v int) { got = append(got, v*2) })

	emitter.Emit("event", 10)

	assert.Equal(t, []int{10, 20}, got)
}

func TestEventEmitter_NoListeners(t *testing.T) {
	emitter := NewEventEmitter[string, int]()

	assert.NotPanics(t, func() { emitter.Emit("nonexistent", 100) })
}

func TestEventEmitter_MultipleEvents(t *testing.T) {
	emitter := NewEventEmitter[string, int]()

	var first, second int
	emitter.On("first", func(v int) { first = v })
	emitter.On("second", func(v int) { second = v })

	emitter.Emit("first", 5)
	emitter.Emit("second", 15)

	assert.Equal(t, 5, first)
	assert.Equal(t, 15, second)
}

func TestEventEmitter_Off(t *testing.T) {
	emitter := NewEventEmitter[string, int]()

	var got []string
	offA := emitter.On("event", func(int) { got = append(got, "a") })
	emitter.On("event", func(int) { got = append(got, "b") })

	offA()
	offA()
	emitter.Emit("event", 1)

	assert.Equal(t, []string{"b"}, got)
}

func TestEventEmitter_ListenerMayRegisterListeners(t *testing.T) {
	emitter := NewEventEmitter[string, int]()

	calls := 0
	var off func()
	off = emitter.On("event", func(int) {
		calls++
		off()
		emitter.On("event", func(int) { calls += 10 })
	})

	emitter.Emit("event", 1)
	emitter.Emit("event", 1)

	assert.Equal(t, 11, calls)
}

func TestEventEmitter_Close(t *testing.T) {
	emitter := NewEventEmitter[string, int]()

	calls := 0
	emitter.On("event", func(int) { calls++ })
	emitter.Close()
	emitter.Emit("event", 1)

	assert.Zero(t, calls)
}

func TestEventEmitter_Concurrent(t *testing.T) {
	emitter := NewEventEmitter[string, int]()

	var (
		mu      sync.Mutex
		results []int
		wg      sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			emitter.On("event", func(v int) {
				mu.Lock()
				results = append(results, v+i)
				mu.Unlock()
			})
		}(i)
	}
	wg.Wait()

	for j := 0; j < 10; j++ {
		wg.Add(1)
		go func(j int) {
			defer wg.Done()
			emitter.Emit("event", j)
		}(j)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, results, 100)
}
