// Package certstream reads certificate events from a CertStream-compatible
// websocket server.
package certstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andres10976/certwatch/internal/model"
	"github.com/andres10976/certwatch/internal/service/feed"
)

const (
	handshakeTimeout = 45 * time.Second
	closeGrace       = time.Second
)

// Dialer connects to a CertStream endpoint.
type Dialer struct {
	url    string
	header http.Header
	logger *slog.Logger
}

func NewDialer(rawURL string, logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{
		url:    rawURL,
		header: http.Header{"User-Agent": []string{"certstream-monitor"}},
		logger: logger.With("component", "certstream"),
	}
}

// Dial opens the websocket. A missing URL or a non-websocket scheme is
// reported as feed.ErrTransportUnavailable.
func (d *Dialer) Dial(ctx context.Context) (feed.Stream, error) {
	if d.url == "" {
		return nil, fmt.Errorf("%w: no feed url configured", feed.ErrTransportUnavailable)
	}
	u, err := url.Parse(d.url)
	if err != nil {
		return nil, fmt.Errorf("%w: parse feed url: %v", feed.ErrTransportUnavailable, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported feed url scheme %q", feed.ErrTransportUnavailable, u.Scheme)
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.DialContext(ctx, d.url, d.header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	d.logger.Info("websocket connected", "host", u.Host)

	s := &stream{
		conn:   conn,
		frames: make(chan frame),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()
	return s, nil
}

type frame struct {
	data []byte
	err  error
}

// stream hands frames from the websocket reader to Next one at a time. The
// reader blocks until the previous frame has been taken.
type stream struct {
	conn   *websocket.Conn
	frames chan frame
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error

	termErr error
}

func (s *stream) readLoop() {
	defer s.wg.Done()
	for {
		_, data, err := s.conn.ReadMessage()
		select {
		case s.frames <- frame{data: data, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *stream) Next(ctx context.Context) (model.CertificateEvent, error) {
	if s.termErr != nil {
		return model.CertificateEvent{}, s.termErr
	}

	select {
	case <-ctx.Done():
		return model.CertificateEvent{}, ctx.Err()
	case f := <-s.frames:
		if f.err != nil {
			// Only a normal closure ends the stream cleanly. Going away (1001)
			// means the upstream is restarting and counts as a failure.
			if websocket.IsCloseError(f.err, websocket.CloseNormalClosure) {
				s.termErr = io.EOF
			} else {
				s.termErr = fmt.Errorf("read frame: %w", f.err)
			}
			return model.CertificateEvent{}, s.termErr
		}
		ev, err := Decode(f.data)
		if err != nil {
			return model.CertificateEvent{}, fmt.Errorf("%w: %v", feed.ErrMalformedEvent, err)
		}
		return ev, nil
	}
}

// Close sends a close frame, tears down the connection and waits for the
// reader to exit.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		s.closeErr = s.conn.Close()
		s.wg.Wait()
	})
	return s.closeErr
}
