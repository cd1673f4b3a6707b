// Package transport maintains the single websocket connection to the
// authoritative server. It owns the read/write pumps and keepalive; the
// sync coordinator owns what the frames mean.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/openvtt/tabletop/internal/protocol"
)

// Config holds websocket connection settings.
type Config struct {
	URL             string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	SendBufferSize  int
	HandshakeWindow time.Duration
}

// DefaultConfig returns default websocket configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512 * 1024, // table_data frames carry full sprite lists
		SendBufferSize:  256,
		HandshakeWindow: 10 * time.Second,
	}
}

// Client is a websocket client delivering protocol envelopes in both
// directions. It implements the coordinator's MessageSender.
type Client struct {
	conn   *websocket.Conn
	config Config

	send chan []byte
	done chan struct{}

	mu        sync.Mutex
	onMessage func(protocol.Envelope)
	closeOnce sync.Once
}

// Dial connects to the server.
func Dial(config Config) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: config.HandshakeWindow}
	conn, _, err := dialer.Dial(config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", config.URL, err)
	}

	log.Info().Str("url", config.URL).Msg("connected to sync server")
	return &Client{
		conn:   conn,
		config: config,
		send:   make(chan []byte, config.SendBufferSize),
		done:   make(chan struct{}),
	}, nil
}

// OnMessage registers the inbound envelope handler. Must be set before
// Start; inbound frames arriving without a handler are dropped.
func (c *Client) OnMessage(fn func(protocol.Envelope)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// Start launches the read and write pumps. It returns immediately; the
// pumps stop when ctx is cancelled, the peer closes, or Close is called.
func (c *Client) Start(ctx context.Context) {
	go c.writePump(ctx)
	go c.readPump()
}

// Send marshals and enqueues one outbound envelope. It fails when the
// connection is closed or the outbound buffer is full; the caller treats
// this as a transport error and keeps its optimistic state.
func (c *Client) Send(env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
		log.Info().Msg("sync connection closed")
	})
	return err
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Msg("failed to write frame")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// Reported, never fatal: one bad frame must not drop the
			// connection.
			log.Warn().Err(err).Msg("skipping unparsable inbound frame")
			continue
		}

		c.mu.Lock()
		handler := c.onMessage
		c.mu.Unlock()
		if handler != nil {
			handler(env)
		}
	}
}
