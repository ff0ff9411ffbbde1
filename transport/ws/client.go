package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/milk9111/boxfall/protocol"
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("ws: client closed")

// Client is a controller connection to a boxfall server.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger

	frames chan protocol.Frame
	errs   chan protocol.Error

	writeMu sync.Mutex
	once    sync.Once
	closed  chan struct{}
}

// Dial connects to a server websocket endpoint such as ws://host:8080/ws.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	c := &Client{
		conn:   conn,
		log:    logger.With("component", "ws-client"),
		frames: make(chan protocol.Frame, 16),
		errs:   make(chan protocol.Error, 4),
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// SendBodyCount asks the server to resize the simulation.
func (c *Client) SendBodyCount(n int) error {
	b, err := protocol.EncodeBodyCount(n)
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("ws: send body count: %w", err)
	}
	return nil
}

// Frames delivers decoded frames. It is closed when the connection ends.
// Frames arriving while the channel is full are dropped.
func (c *Client) Frames() <-chan protocol.Frame {
	return c.frames
}

// Errors delivers rejections sent back by the server.
func (c *Client) Errors() <-chan protocol.Error {
	return c.errs
}

// Close ends the connection.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// message is either a frame or an error reply.
type message struct {
	protocol.Frame
	Error string `json:"error"`
}

func (c *Client) readLoop() {
	defer close(c.errs)
	defer close(c.frames)
	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Debug("read failed", "err", err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(b, &msg); err != nil {
			c.log.Warn("bad message from server", "err", err)
			continue
		}
		if msg.Error != "" {
			select {
			case c.errs <- protocol.Error{Error: msg.Error}:
			default:
			}
			continue
		}
		select {
		case c.frames <- msg.Frame:
		default:
		}
	}
}
