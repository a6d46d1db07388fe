package libcable

import "fmt"

type EventType uint8

const (
	// EventConnected fires once the connection is open and subscriptions have been replayed.
	EventConnected EventType = iota + 1
	// EventDisconnected fires when the connection closes.
	EventDisconnected
	// EventFailed fires when the connection fails. Event.Err holds the cause.
	EventFailed
	// EventReconnecting fires before the monitor reopens a stale connection. Event.Attempt counts from 1.
	EventReconnecting
	// EventReconnectGaveUp fires when the monitor reached the attempt cap and stopped.
	EventReconnectGaveUp
	// EventServerDisconnect fires when the server announces it is closing the connection.
	EventServerDisconnect
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventFailed:
		return "failed"
	case EventReconnecting:
		return "reconnecting"
	case EventReconnectGaveUp:
		return "reconnect_gave_up"
	case EventServerDisconnect:
		return "server_disconnect"
	default:
		return fmt.Sprintf("event(%d)", uint8(t))
	}
}

// Event describes a consumer lifecycle change.
type Event struct {
	Type    EventType
	Err     error
	Attempt int
	Reason  string
}

type EventHandler func(Event)
