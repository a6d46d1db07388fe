package libcable

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Consumer is the entry point of the library: it owns one Connection and the Subscriptions multiplexed over it.
//
//	consumer, err := libcable.NewConsumer("wss://example.com/cable", libcable.Options{Reconnection: true})
//	sub := consumer.Subscriptions().Create(libcable.NewChannel("ChatChannel", map[string]any{"room": "1"}))
//	sub.OnReceived(func(data any) { ... })
//	err = consumer.Connect()
type Consumer struct {
	logger        Logger
	codec         Codec
	connection    *Connection
	subscriptions *Subscriptions
	monitor       *connectionMonitor
	emitter       *EventEmitterCallback[EventType, Event]
	reconnection  bool
}

// NewConsumer validates rawURL and builds a consumer for it. ws, wss, http and https urls are accepted, the latter
// two being mapped to their websocket counterparts.
func NewConsumer(rawURL string, opts Options) (*Consumer, error) {
	u, err := parseCableURL(rawURL)
	if err != nil {
		return nil, err
	}

	opts = opts.withDefaults()

	c := &Consumer{
		logger:       opts.Logger.WithField("type", "consumer"),
		codec:        opts.Codec,
		emitter:      NewEventEmitter[EventType, Event](),
		reconnection: opts.Reconnection,
	}
	c.subscriptions = newSubscriptions(opts.Logger, c, opts.Codec)
	c.connection = NewConnection(*u, opts, ConnectionHandlers{
		OnOpen:    c.handleOpen,
		OnMessage: c.handleMessage,
		OnClose:   c.handleClose,
		OnFailure: c.handleFailure,
	})
	c.monitor = newConnectionMonitor(opts.Logger, c.connection, c.emitQueued, opts)

	return c, nil
}

func parseCableURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidURL, err.Error())
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, errors.Wrapf(ErrInvalidURL, "unsupported scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return nil, errors.Wrap(ErrInvalidURL, "missing host")
	}

	return u, nil
}

// Subscriptions returns the subscription registry.
func (c *Consumer) Subscriptions() *Subscriptions {
	return c.subscriptions
}

// State returns the connection state.
func (c *Consumer) State() ConnectionState {
	return c.connection.State()
}

// Connect opens the connection and, when reconnection is enabled, starts the connection monitor.
func (c *Consumer) Connect() error {
	if c.reconnection {
		c.monitor.start()
	}
	return c.connection.Open()
}

// Disconnect stops the connection monitor and closes the connection gracefully.
func (c *Consumer) Disconnect() error {
	c.monitor.stop()
	return c.connection.Close()
}

// Send encodes cmd and queues it. It returns false when the connection is not open or cmd cannot be encoded.
func (c *Consumer) Send(cmd Command) bool {
	text, err := cmd.Encode(c.codec)
	if err != nil {
		c.logger.Errorf("cannot send: %s", err)
		return false
	}
	return c.connection.Send(text)
}

// On registers handler for events of type t. The handler runs on the operation queue. The returned function
// removes it.
func (c *Consumer) On(t EventType, handler EventHandler) (off func()) {
	return c.emitter.On(t, callback[Event](handler))
}

// Shutdown stops the monitor, the operation queue and any socket, without a closing handshake. It must not be
// called from a callback.
func (c *Consumer) Shutdown() {
	c.monitor.stop()
	c.connection.Shutdown()
	c.emitter.Close()
}

// write sends cmd straight to the socket; only valid on the operation queue.
func (c *Consumer) write(cmd Command) {
	text, err := cmd.Encode(c.codec)
	if err != nil {
		c.logger.Errorf("cannot send: %s", err)
		return
	}
	c.connection.write(text)
}

func (c *Consumer) emit(e Event) {
	c.emitter.Emit(e.Type, e)
}

// emitQueued emits e from the operation queue; used by goroutines other than the queue worker.
func (c *Consumer) emitQueued(e Event) {
	if err := c.connection.queue.push(func() { c.emit(e) }); err != nil {
		c.logger.Warnf("cannot queue %s event: %s", e.Type, err)
	}
}

func (c *Consumer) handleOpen() {
	c.monitor.recordConnect()
	c.subscriptions.reload(c.write)
	c.emit(Event{Type: EventConnected})
}

func (c *Consumer) handleClose() {
	c.monitor.recordDisconnect()
	c.subscriptions.notifyDisconnected()
	c.emit(Event{Type: EventDisconnected})
}

func (c *Consumer) handleFailure(err error) {
	c.monitor.recordDisconnect()
	c.subscriptions.notifyFailed(err)
	c.emit(Event{Type: EventFailed, Err: err})
}

func (c *Consumer) handleMessage(text string) {
	frame, err := DecodeFrame(c.codec, text)
	if err != nil {
		c.logger.Debugf("ignoring undecodable frame %q: %s", text, err)
		return
	}

	if !frame.known() {
		c.logger.Debugf("ignoring unrecognized frame %s", frame)
		return
	}

	switch frame.Type {
	case FrameWelcome, FramePing:
		c.monitor.recordPing()
	case FrameDisconnect:
		c.handleServerDisconnect(frame)
	case FrameConfirmSubscription:
		c.subscriptions.notifyConnected(frame.Identifier)
	case FrameRejectSubscription:
		c.subscriptions.reject(frame.Identifier)
	case FrameData:
		var data any
		if err := c.codec.Unmarshal(frame.Message, &data); err != nil {
			c.logger.Debugf("ignoring undecodable payload for %s: %s", frame.Identifier, err)
			return
		}
		c.subscriptions.notifyReceived(frame.Identifier, data)
	}
}

func (c *Consumer) handleServerDisconnect(frame Frame) {
	reconnect := frame.Reconnect == nil || *frame.Reconnect
	c.logger.Infof("server is disconnecting (reason %q, reconnect %t)", frame.Reason, reconnect)
	if !reconnect {
		c.monitor.stop()
	}
	c.emit(Event{Type: EventServerDisconnect, Reason: frame.Reason})
}
