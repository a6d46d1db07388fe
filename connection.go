package libcable

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const manualCloseReason = "connection closed manually"

type (
	// ConnectionHandlers are invoked on the connection's operation queue, never on a transport goroutine.
	ConnectionHandlers struct {
		OnOpen    func()
		OnMessage func(text string)
		OnClose   func()
		OnFailure func(err error)
	}

	// Connection drives one websocket at a time through CONNECTING, OPEN, CLOSING and CLOSED. Every call and every
	// transport event is funnelled through a serialized operation queue, so the fields below the queue are only
	// touched by its worker.
	Connection struct {
		logger    Logger
		transport Transport
		params    OpenConnectionParamsRepo
		handlers  ConnectionHandlers
		queue     *serializedQueue

		state atomicState

		socket        Socket
		attempt       string
		cancelAttempt context.CancelFunc
		reopening     bool
	}

	// attemptListener tags transport events with the attempt that produced them so late events of a superseded
	// socket can be told apart.
	attemptListener struct {
		conn    *Connection
		attempt string
	}
)

// NewConnection creates a connection to u in the CONNECTING state. Nothing is dialed until Open.
func NewConnection(u url.URL, opts Options, handlers ConnectionHandlers) *Connection {
	opts = opts.withDefaults()

	transport := opts.Transport
	if transport == nil {
		transport = newDefaultTransport(opts.Logger, opts)
	}

	c := &Connection{
		logger:    opts.Logger.WithField("type", "connection"),
		transport: transport,
		params:    NewOpenConnectionParamsRepo(opts.Logger, u, opts.Query, opts.Headers, opts.ParamsGetter),
		handlers:  handlers.withDefaults(),
		queue:     newSerializedQueue(opts.Logger, opts.QueueCapacity, opts.QueuePushTimeout),
	}
	c.state.store(StateConnecting)
	c.queue.onFailure = c.fireFailure
	c.queue.start()

	return c
}

func (h ConnectionHandlers) withDefaults() ConnectionHandlers {
	if h.OnOpen == nil {
		h.OnOpen = func() {}
	}
	if h.OnMessage == nil {
		h.OnMessage = func(string) {}
	}
	if h.OnClose == nil {
		h.OnClose = func() {}
	}
	if h.OnFailure == nil {
		h.OnFailure = func(error) {}
	}
	return h
}

// State returns the current state. It may be stale by the time the caller acts on it.
func (c *Connection) State() ConnectionState {
	return c.state.load()
}

// Open starts a new connection. Opening an open connection is reported through OnFailure with an
// *ErrProtocolState. The returned error only reports that the request could not be queued.
func (c *Connection) Open() error {
	return c.queue.push(c.open)
}

// Close starts a graceful close with status 1000.
func (c *Connection) Close() error {
	return c.queue.push(c.close)
}

// Reopen opens a closed connection, or closes the current one and opens again once the close completes.
func (c *Connection) Reopen() error {
	return c.queue.push(func() {
		if c.state.load() == StateClosed {
			c.open()
			return
		}
		c.reopening = true
		c.close()
	})
}

// Send queues text for delivery. It returns false without queueing anything when the connection is not open. True
// means the frame was accepted for serialized delivery, not that it reached the wire.
func (c *Connection) Send(text string) bool {
	if c.state.load() != StateOpen {
		return false
	}

	if err := c.queue.push(func() { c.write(text) }); err != nil {
		c.logger.Errorf("cannot queue frame: %s", err)
		return false
	}
	return true
}

// Shutdown stops the operation queue and tears down any socket without a closing handshake. Handlers are not
// invoked and the connection cannot be used afterwards. It must not be called from a handler.
func (c *Connection) Shutdown() {
	c.queue.close()

	// the worker has exited, nothing else touches the connection state now
	c.releaseAttempt()
	c.reopening = false
	c.setState(StateClosed)
}

func (c *Connection) open() {
	switch c.state.load() {
	case StateOpen:
		c.fireFailure(&ErrProtocolState{Op: "open", State: StateOpen, err: ErrAlreadyOpen})
		return
	case StateClosing:
		c.logger.Infoln("close in progress, opening once it completes")
		c.reopening = true
		return
	}

	c.dial()
}

func (c *Connection) dial() {
	c.releaseAttempt()
	c.setState(StateConnecting)

	ctx, cancel := context.WithCancel(context.Background())

	params, err := c.params.Get(ctx)
	if err != nil {
		cancel()
		c.setState(StateClosed)
		c.fireFailure(errors.Wrap(err, "cannot resolve handshake params"))
		return
	}

	c.attempt = uuid.NewString()
	c.cancelAttempt = cancel

	c.logger.Infof("opening %s (attempt %s)", params.URL.Redacted(), c.attempt)
	c.transport.Open(ctx, params, &attemptListener{conn: c, attempt: c.attempt})
}

func (c *Connection) close() {
	if state := c.state.load(); state.Is(StateClosing, StateClosed) {
		c.logger.Debugf("close ignored, connection is %s", state)
		return
	}

	switch c.state.load() {
	case StateOpen:
		if err := c.socket.Close(CloseNormalClosure, manualCloseReason); err != nil {
			c.fireFailure(wrapTransportIO("close", err))
			return
		}
		c.setState(StateClosing)
	case StateConnecting:
		if c.attempt == "" {
			// never dialed
			c.setState(StateClosed)
			c.reopenIfRequested()
			return
		}
		c.setState(StateClosing)
		c.cancelAttempt()
	}
}

func (c *Connection) write(text string) {
	if c.state.load() != StateOpen || c.socket == nil {
		c.logger.Debugf("dropping frame, connection is %s", c.state.load())
		return
	}

	if err := c.socket.Send(text); err != nil {
		c.fireFailure(wrapTransportIO("send", err))
	}
}

func (c *Connection) handleOpen(attempt string, s Socket) {
	if attempt != c.attempt {
		c.logger.Debugf("closing socket of superseded attempt %s", attempt)
		_ = s.Close(CloseNormalClosure, "superseded")
		return
	}

	c.socket = s

	if c.state.load() == StateClosing {
		// close was requested while dialing; the cancelled attempt context tears the socket down
		return
	}

	c.setState(StateOpen)
	c.handlers.OnOpen()
}

func (c *Connection) handleMessage(attempt string, text string) {
	if attempt != c.attempt || c.socket == nil {
		c.logger.Debugf("ignoring frame of superseded attempt %s", attempt)
		return
	}

	c.handlers.OnMessage(text)
}

func (c *Connection) handleClosed(attempt string, code int, reason string) {
	if attempt != c.attempt {
		c.logger.Debugf("ignoring close of superseded attempt %s", attempt)
		return
	}

	c.logger.Infof("connection closed with status %d %q", code, reason)
	c.finishClose()
}

func (c *Connection) handleFailure(attempt string, err error) {
	if attempt != c.attempt {
		c.logger.Debugf("ignoring failure of superseded attempt %s: %s", attempt, err)
		return
	}

	if c.state.load() == StateClosing && errors.Is(err, context.Canceled) {
		c.logger.Infoln("connection attempt aborted by close")
		c.finishClose()
		return
	}

	c.releaseAttempt()
	c.reopening = false
	c.setState(StateClosed)
	c.fireFailure(err)
}

func (c *Connection) finishClose() {
	c.releaseAttempt()
	c.setState(StateClosed)
	c.handlers.OnClose()
	c.reopenIfRequested()
}

func (c *Connection) reopenIfRequested() {
	if !c.reopening {
		return
	}
	c.reopening = false
	c.open()
}

func (c *Connection) releaseAttempt() {
	if c.cancelAttempt != nil {
		c.cancelAttempt()
	}
	c.cancelAttempt = nil
	c.attempt = ""
	c.socket = nil
}

func (c *Connection) setState(s ConnectionState) {
	if prev := c.state.load(); prev != s {
		c.logger.Debugf("state %s -> %s", prev, s)
	}
	c.state.store(s)
}

func (c *Connection) fireFailure(err error) {
	c.logger.Errorf("connection failure: %s", err)
	c.handlers.OnFailure(err)
}

// pushLifecycle queues an open, close or failure event. These are never dropped on overflow, a lost transition
// would leave the connection stuck in its current state.
func (l *attemptListener) pushLifecycle(event string, op operation) error {
	err := l.conn.queue.pushLossless(op)
	if err != nil {
		l.conn.logger.Errorf("cannot queue %s event of attempt %s: %s", event, l.attempt, err)
	}
	return err
}

func (l *attemptListener) OnOpen(s Socket) {
	if err := l.pushLifecycle("open", func() { l.conn.handleOpen(l.attempt, s) }); err != nil {
		_ = s.Close(CloseNormalClosure, "client unavailable")
	}
}

func (l *attemptListener) OnMessage(_ Socket, text string) {
	if err := l.conn.queue.push(func() { l.conn.handleMessage(l.attempt, text) }); err != nil {
		l.conn.logger.Errorf("cannot queue message event of attempt %s: %s", l.attempt, err)
	}
}

func (l *attemptListener) OnClosed(_ Socket, code int, reason string) {
	_ = l.pushLifecycle("close", func() { l.conn.handleClosed(l.attempt, code, reason) })
}

func (l *attemptListener) OnFailure(_ Socket, err error) {
	_ = l.pushLifecycle("failure", func() { l.conn.handleFailure(l.attempt, err) })
}
