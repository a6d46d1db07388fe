package libcable

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/pkg/errors"
)

type (
	// CoderTransport is a Transport built on coder/websocket. It honours the same options as the default transport
	// and is handy where fasthttp's dialer is not wanted.
	CoderTransport struct {
		logger           Logger
		httpClient       *http.Client
		handshakeTimeout time.Duration
		writeTimeout     time.Duration
		readLimit        int64
	}

	coderSocket struct {
		ctx          context.Context
		conn         *websocket.Conn
		logger       Logger
		writeTimeout time.Duration
	}
)

// NewCoderTransport creates a transport dialing through httpClient. A nil client means http.DefaultClient. The
// client must not set a Timeout, coder/websocket rejects it for long lived connections.
func NewCoderTransport(logger Logger, httpClient *http.Client, handshakeTimeout time.Duration) *CoderTransport {
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	return &CoderTransport{
		logger:           logger.WithField("net", "coder_transport"),
		httpClient:       httpClient,
		handshakeTimeout: handshakeTimeout,
		writeTimeout:     defaultWriteTimeout,
		readLimit:        1 << 20,
	}
}

// NewCoderTransportFromOptions wires TLS and cookie settings of opts into the http client used for the handshake.
func NewCoderTransportFromOptions(logger Logger, opts Options) *CoderTransport {
	opts = opts.withDefaults()

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.TLSConfig != nil {
		transport.TLSClientConfig = opts.TLSConfig.Clone()
	}

	client := &http.Client{
		Transport: transport,
		Jar:       opts.CookieJar,
	}
	return NewCoderTransport(logger, client, opts.HandshakeTimeout)
}

func (t *CoderTransport) Open(ctx context.Context, params OpenConnectionParams, listener TransportListener) {
	go t.dial(ctx, params, listener)
}

func (t *CoderTransport) dial(ctx context.Context, p OpenConnectionParams, listener TransportListener) {
	dialCtx, cancel := context.WithTimeout(ctx, t.handshakeTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, p.URL.String(), &websocket.DialOptions{
		HTTPClient: t.httpClient,
		HTTPHeader: p.Header,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		if conn != nil {
			_ = conn.CloseNow()
		}
		listener.OnFailure(nil, ctxErr)
		return
	}
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		cause := ErrCannotConnect
		if status == http.StatusTooManyRequests {
			cause = ErrRateLimit
		}
		t.logger.Errorf("connection err to %s: %s", p.URL.Redacted(), err)
		listener.OnFailure(nil, wrapHandshake(errors.Wrap(cause, err.Error()), p.URL, status))
		return
	}

	conn.SetReadLimit(t.readLimit)
	t.logger.Debugf("success opening connection to %s", p.URL.Redacted())

	s := &coderSocket{ctx: ctx, conn: conn, logger: t.logger, writeTimeout: t.writeTimeout}
	listener.OnOpen(s)
	s.read(listener)
}

func (s *coderSocket) Send(text string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.writeTimeout)
	defer cancel()

	s.logger.Debugf("=> [DATA] %s", text)
	return s.conn.Write(ctx, websocket.MessageText, []byte(text))
}

// Close runs the closing handshake in the background; coder/websocket blocks until the peer answers and the
// outcome reaches the listener through the read loop anyway.
func (s *coderSocket) Close(code int, reason string) error {
	s.logger.Debugf("=> [CLOSE] %d %s", code, reason)
	go func() {
		_ = s.conn.Close(websocket.StatusCode(code), reason)
	}()
	return nil
}

func (s *coderSocket) read(listener TransportListener) {
	defer func() { _ = s.conn.CloseNow() }()

	for {
		messageType, bts, err := s.conn.Read(s.ctx)
		if err != nil {
			var closeErr websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				s.logger.Debugf("<= [CLOSE] %d %s", closeErr.Code, closeErr.Reason)
				listener.OnClosed(s, int(closeErr.Code), closeErr.Reason)
			case s.ctx.Err() != nil:
				listener.OnFailure(s, s.ctx.Err())
			default:
				s.logger.Errorf("error occurred on websocket read: %s", err)
				listener.OnFailure(s, errors.Wrap(ErrConnectionClosed, "error occurred on websocket read: "+err.Error()))
			}
			return
		}

		if messageType != websocket.MessageText {
			s.logger.Debugf("<= [BIN] %d bytes ignored", len(bts))
			continue
		}

		s.logger.Debugf("<= [DATA] %s", bts)
		listener.OnMessage(s, string(bts))
	}
}
