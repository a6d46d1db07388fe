package libcable

import "sync/atomic"

// ConnectionState is the lifecycle state of a Connection.
type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Is reports whether s is any of states.
func (s ConnectionState) Is(states ...ConnectionState) bool {
	for _, other := range states {
		if s == other {
			return true
		}
	}
	return false
}

// atomicState is written only from the operation queue but may be read from any goroutine.
type atomicState struct {
	v atomic.Int32
}

func (a *atomicState) load() ConnectionState { return ConnectionState(a.v.Load()) }

func (a *atomicState) store(s ConnectionState) { a.v.Store(int32(s)) }
