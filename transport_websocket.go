package libcable

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
)

const defaultWriteTimeout = 5 * time.Second

type (
	// ErrAdapter maps the outcome of a dial to the error reported to the connection. It is called on success too,
	// with a nil error, and must return nil to accept the socket.
	ErrAdapter func(*websocket.Conn, *http.Response, error) error

	// ErrorAdapters overrides the default handshake error classification.
	ErrorAdapters struct {
		OnDial ErrAdapter
	}

	// WebsocketTransport is the default Transport, built on fasthttp/websocket.
	WebsocketTransport struct {
		errAdapters  ErrorAdapters
		logger       Logger
		dialer       *websocket.Dialer
		writeTimeout time.Duration
	}

	// wsSocket is a single established connection. Reads happen on the goroutine that dialed it; writes are
	// serialized with writeMu.
	wsSocket struct {
		ctx          context.Context
		conn         *websocket.Conn
		logger       Logger
		writeTimeout time.Duration
		writeMu      sync.Mutex
		closeOnce    sync.Once
		closeC       chan struct{}
	}
)

func NewWebsocketTransport(
	logger Logger,
	dialer *websocket.Dialer,
	errorAdapters ErrorAdapters,
) *WebsocketTransport {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &WebsocketTransport{
		errAdapters:  errorAdapters,
		dialer:       dialer,
		writeTimeout: defaultWriteTimeout,
		logger:       logger.WithField("net", "ws_transport"),
	}
}

// newDefaultTransport builds the dialer from the consumer options.
func newDefaultTransport(logger Logger, opts Options) *WebsocketTransport {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
		TLSClientConfig:  opts.TLSConfig,
		Jar:              opts.CookieJar,
	}
	return NewWebsocketTransport(logger, dialer, ErrorAdapters{})
}

// Open dials in the background. See Transport.
func (t *WebsocketTransport) Open(ctx context.Context, params OpenConnectionParams, listener TransportListener) {
	go t.dial(ctx, params, listener)
}

func (t *WebsocketTransport) dial(ctx context.Context, p OpenConnectionParams, listener TransportListener) {
	conn, resp, err := t.dialer.DialContext(ctx, p.URL.String(), p.Header)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if conn != nil {
			_ = conn.Close()
		}
		listener.OnFailure(nil, ctxErr)
		return
	}

	if err = t.handleDialError(p.URL, conn, resp, err); err != nil {
		t.logger.Errorf("connection err to %s: %s", p.URL.Redacted(), err)
		if conn != nil {
			_ = conn.Close()
		}
		listener.OnFailure(nil, err)
		return
	}

	t.logger.Debugf("success opening connection to %s", p.URL.Redacted())

	s := &wsSocket{
		ctx:          ctx,
		conn:         conn,
		logger:       t.logger,
		writeTimeout: t.writeTimeout,
		closeC:       make(chan struct{}),
	}

	listener.OnOpen(s)

	go s.watch()
	s.read(listener)
}

func (t *WebsocketTransport) handleDialError(u url.URL, conn *websocket.Conn, resp *http.Response, err error) error {
	if t.errAdapters.OnDial != nil {
		return t.errAdapters.OnDial(conn, resp, err)
	}

	if err == nil {
		return nil
	}

	// 1. Check HTTP errors first
	var (
		msg    string
		status int
	)

	if resp != nil {
		status = resp.StatusCode
		if resp.Body != nil {
			bts, rerr := io.ReadAll(io.LimitReader(resp.Body, 4096))
			if rerr == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return wrapHandshake(errors.Wrap(ErrRateLimit, msg), u, status)
		}
	}

	// 2. Network errors
	return wrapHandshake(errors.Wrap(ErrCannotConnect, err.Error()), u, status)
}

func (s *wsSocket) Send(text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	s.logger.Debugf("=> [DATA] %s", text)
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (s *wsSocket) Close(code int, reason string) error {
	s.logger.Debugf("=> [CLOSE] %d %s", code, reason)
	return s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(s.writeTimeout),
	)
}

func (s *wsSocket) read(listener TransportListener) {
	defer s.safeClose()

	for {
		messageType, bts, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				s.logger.Debugf("<= [CLOSE] %d %s", closeErr.Code, closeErr.Text)
				listener.OnClosed(s, closeErr.Code, closeErr.Text)
			case s.ctx.Err() != nil:
				listener.OnFailure(s, s.ctx.Err())
			default:
				s.logger.Errorf("error occurred on websocket read: %s", err)
				listener.OnFailure(s, errors.Wrap(ErrConnectionClosed, "error occurred on websocket read: "+err.Error()))
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			s.logger.Debugf("<= [DATA] %s", bts)
			listener.OnMessage(s, string(bts))
		default:
			s.logger.Debugf("<= [BIN] %d bytes ignored", len(bts))
		}
	}
}

// watch tears the socket down when the attempt context is cancelled.
func (s *wsSocket) watch() {
	select {
	case <-s.ctx.Done():
		s.safeClose()
	case <-s.closeC:
	}
}

func (s *wsSocket) safeClose() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		close(s.closeC)
	})
}
