package libcable

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultHandshakeTimeout        = 30 * time.Second
	defaultReconnectionMaxAttempts = 30
	defaultReconnectionDelay       = 3 * time.Second
	defaultReconnectionDelayMax    = 30 * time.Second
	defaultStaleThreshold          = 6 * time.Second
)

// Options configures a Consumer and its Connection. The zero value is usable; zero fields take their defaults.
type Options struct {
	// TLSConfig is used for wss connections.
	TLSConfig *tls.Config
	// CookieJar supplies cookies for the handshake, e.g. a Rails session cookie.
	CookieJar http.CookieJar
	// Query parameters added to the url on handshake.
	Query url.Values
	// Headers sent on handshake. Rails checks Origin by default.
	Headers http.Header
	// ParamsGetter may rewrite url and headers right before each open.
	ParamsGetter OpenConnectionParamsGetter
	// HandshakeTimeout bounds dial plus upgrade. Default 30s.
	HandshakeTimeout time.Duration

	// Reconnection makes the consumer reopen the connection when it fails, closes unexpectedly or goes stale.
	Reconnection bool
	// ReconnectionMaxAttempts is the number of reopen attempts before giving up. Default 30.
	ReconnectionMaxAttempts int
	// ReconnectionDelay is the first backoff delay. Default 3s.
	ReconnectionDelay time.Duration
	// ReconnectionDelayMax caps the backoff delay. Default 30s.
	ReconnectionDelayMax time.Duration
	// StaleThreshold is how long the server may stay silent (it pings every 3s) before the connection is
	// considered stale. Default 6s.
	StaleThreshold time.Duration

	// QueueCapacity bounds outstanding queued operations. Default 10.
	QueueCapacity int
	// QueuePushTimeout is how long a push to a full queue waits before the operation is dropped. Default 1s.
	QueuePushTimeout time.Duration

	// Transport dials sockets. Defaults to the fasthttp/websocket transport.
	Transport Transport
	// Codec encodes commands and decodes frames. Defaults to JSONCodec.
	Codec Codec
	// Logger defaults to a no-op logger.
	Logger Logger
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.ReconnectionMaxAttempts <= 0 {
		o.ReconnectionMaxAttempts = defaultReconnectionMaxAttempts
	}
	if o.ReconnectionDelay <= 0 {
		o.ReconnectionDelay = defaultReconnectionDelay
	}
	if o.ReconnectionDelayMax <= 0 {
		o.ReconnectionDelayMax = defaultReconnectionDelayMax
	}
	if o.ReconnectionDelayMax < o.ReconnectionDelay {
		o.ReconnectionDelayMax = o.ReconnectionDelay
	}
	if o.StaleThreshold <= 0 {
		o.StaleThreshold = defaultStaleThreshold
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = defaultQueueCapacity
	}
	if o.QueuePushTimeout <= 0 {
		o.QueuePushTimeout = defaultQueuePushTimeout
	}
	if o.Codec == nil {
		o.Codec = JSONCodec{}
	}
	if o.Logger == nil {
		o.Logger = NewNopLogger()
	}
	return o
}
