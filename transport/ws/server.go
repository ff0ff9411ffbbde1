package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/milk9111/boxfall/protocol"
)

const (
	writeWait = 5 * time.Second
	readWait  = 60 * time.Second
	// pingPeriod must stay below readWait so pongs keep watch-only clients
	// alive.
	pingPeriod = readWait * 9 / 10
	// maxMessage bounds inbound messages; a body count is a few bytes.
	maxMessage = 1024
)

// Configurer resizes the simulation. *sim.Worker implements it.
type Configurer interface {
	Configure(ctx context.Context, n int) error
}

// Server upgrades HTTP requests to websocket connections attached to a hub.
type Server struct {
	hub      *Hub
	sim      Configurer
	log      *slog.Logger
	upgrader websocket.Upgrader

	readWait   time.Duration
	pingPeriod time.Duration
}

// NewServer creates a server forwarding body counts to sim.
func NewServer(hub *Hub, sim Configurer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub: hub,
		sim: sim,
		log: logger.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		readWait:   readWait,
		pingPeriod: pingPeriod,
	}
}

// Handler serves one websocket connection per request.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxMessage)
		_ = conn.SetReadDeadline(time.Now().Add(s.readWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.readWait))
		})

		c := s.hub.register()
		defer s.hub.unregister(c)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			writeErr <- writeLoop(ctx, conn, c.out, s.pingPeriod)
		}()

		s.readLoop(ctx, conn, c)

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read failed", "client", c.id, "err", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.readWait))
		if kind != websocket.TextMessage {
			continue
		}

		n, err := protocol.DecodeBodyCount(msg)
		if err == nil {
			err = s.sim.Configure(ctx, n)
		}
		if err != nil {
			s.log.Warn("body count rejected", "client", c.id, "msg", string(msg), "err", err)
			s.reply(c, err)
			if errors.Is(err, context.Canceled) {
				return
			}
			continue
		}
		s.log.Info("body count", "client", c.id, "bodies", n)
	}
}

func (s *Server) reply(c *client, err error) {
	b, mErr := json.Marshal(protocol.Error{Error: err.Error()})
	if mErr != nil {
		return
	}
	if !c.offer(b) {
		s.hub.dropped.Add(1)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan []byte, ping time.Duration) error {
	ticker := time.NewTicker(ping)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case b := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return err
			}
		}
	}
}
