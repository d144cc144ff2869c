package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/coil/internal/channel"
	"github.com/OCAP2/coil/pkg/streaming"

	ws "github.com/gorilla/websocket"
)

const (
	outboxSize   = 10_000
	ackBoxSize   = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	ackTimeout   = 10 * time.Second
)

var errStopped = errors.New("websocket connection closed")

// connection owns one websocket at a time. A single supervisor goroutine
// writes to it, redials when it breaks and replays the session header on
// every new socket.
type connection struct {
	logger  *slog.Logger
	url     string
	backoff time.Duration

	outbox  channel.Channel[[]byte]
	acks    channel.Channel[streaming.AckMessage]
	dropped atomic.Uint64

	mu     sync.Mutex
	header []byte

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		logger:  logger,
		backoff: time.Second,
		outbox:  channel.New[[]byte](outboxSize),
		acks:    channel.New[streaming.AckMessage](ackBoxSize),
		stop:    make(chan struct{}),
	}
}

// withSecret appends the shared secret as a query parameter.
func withSecret(rawURL, secret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// open dials once and hands the socket to the supervisor. Only the first
// dial is reported to the caller; later failures are retried.
func (c *connection) open(rawURL, secret string) error {
	u, err := withSecret(rawURL, secret)
	if err != nil {
		return err
	}
	c.url = u

	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.wg.Add(1)
	go c.supervise(conn)
	return nil
}

func (c *connection) dial() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *connection) supervise(conn *ws.Conn) {
	defer c.wg.Done()
	for conn != nil {
		err := c.serve(conn)
		if errors.Is(err, errStopped) {
			return
		}
		c.logger.Warn("WebSocket connection lost", "error", err)
		conn = c.redial()
	}
}

// redial retries with exponential backoff. It returns nil when stopped or
// when every attempt failed.
func (c *connection) redial() *ws.Conn {
	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.stop:
			return nil
		case <-time.After(backoff):
		}

		conn, err := c.dial()
		if err == nil {
			c.logger.Info("WebSocket reconnected", "attempt", attempt)
			return conn
		}
		c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
		backoff = min(backoff*2, maxBackoff)
	}
	c.logger.Error("WebSocket reconnect failed after max attempts, streaming stopped", "maxAttempts", maxReconnect)
	return nil
}

// serve pumps the outbox into conn until the socket fails or the connection
// is closed. The socket is always closed on return.
func (c *connection) serve(conn *ws.Conn) error {
	readErr := make(chan error, 1)
	go func() { readErr <- c.read(conn) }()
	defer func() {
		_ = conn.Close()
		<-readErr
	}()

	c.mu.Lock()
	header := c.header
	c.mu.Unlock()
	if header != nil {
		if err := c.write(conn, ws.TextMessage, header); err != nil {
			return fmt.Errorf("session replay: %w", err)
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-c.stop:
			_ = c.write(conn, ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
			return errStopped
		case err := <-readErr:
			readErr <- err
			return err
		case <-ping.C:
			if err := c.write(conn, ws.PingMessage, nil); err != nil {
				return err
			}
		case data, ok := <-c.outbox.Receive():
			if !ok {
				return errStopped
			}
			if err := c.write(conn, ws.TextMessage, data); err != nil {
				return err
			}
		}
	}
}

func (c *connection) write(conn *ws.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

// read routes acks until the socket fails.
func (c *connection) read(conn *ws.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}
		if !c.acks.TrySend(ack) {
			c.logger.Debug("Ack buffer full, dropping", "for", ack.For)
		}
	}
}

func (c *connection) setHeader(data []byte) {
	c.mu.Lock()
	c.header = data
	c.mu.Unlock()
}

// send queues data for the supervisor. It never blocks; when the outbox is
// full the message is dropped and counted.
func (c *connection) send(data []byte) {
	if !c.outbox.TrySend(data) {
		if c.dropped.Add(1) == 1 {
			c.logger.Warn("WebSocket outbox full, dropping messages")
		}
	}
}

// sendAndWait queues data and blocks until the server acks ackFor or the
// timeout expires.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack, ok := <-c.acks.Receive():
			if !ok {
				return fmt.Errorf("waiting for ack of %q: %w", ackFor, errStopped)
			}
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.stop:
			return fmt.Errorf("waiting for ack of %q: %w", ackFor, errStopped)
		}
	}
}

// close stops the supervisor, which sends a close frame on the live socket.
func (c *connection) close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
		c.outbox.Close()
		c.acks.Close()
	})
	return nil
}
