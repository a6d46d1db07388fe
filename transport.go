package libcable

import (
	"context"
)

// CloseNormalClosure is the status code sent when the client closes a connection on purpose.
const CloseNormalClosure = 1000

type (
	// Transport dials websocket connections. Open must not block: it dials on its own goroutine and reports the
	// outcome, and every later event of that socket, through listener. Cancelling ctx aborts a dial in progress and
	// tears down an established socket.
	Transport interface {
		Open(ctx context.Context, params OpenConnectionParams, listener TransportListener)
	}

	// Socket is a live websocket handle handed out by a Transport.
	Socket interface {
		// Send writes a text frame.
		Send(text string) error
		// Close starts the closing handshake. Completion is reported through TransportListener.OnClosed.
		Close(code int, reason string) error
	}

	// TransportListener receives socket events on the transport's goroutine.
	TransportListener interface {
		OnOpen(s Socket)
		OnMessage(s Socket, text string)
		OnClosed(s Socket, code int, reason string)
		OnFailure(s Socket, err error)
	}
)
