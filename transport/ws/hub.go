package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/milk9111/boxfall/protocol"
	"github.com/milk9111/boxfall/sim"
)

// DefaultQueue is the per-connection outbound buffer, in messages.
const DefaultQueue = 8

type client struct {
	id  uint64
	out chan []byte
}

// offer queues b without blocking and reports whether it fit.
func (c *client) offer(b []byte) bool {
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

// Hub fans frames out to every connected client. A client that falls behind
// loses frames; the tick never waits for it.
type Hub struct {
	queue int
	log   *slog.Logger

	mu      sync.RWMutex
	clients map[uint64]*client
	nextID  atomic.Uint64

	sent    atomic.Uint64
	dropped atomic.Uint64
}

var _ sim.Sink = (*Hub)(nil)

// NewHub creates a hub whose clients buffer up to queue messages.
func NewHub(queue int, logger *slog.Logger) *Hub {
	if queue < 1 {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		queue:   queue,
		log:     logger.With("component", "hub"),
		clients: make(map[uint64]*client),
	}
}

func (h *Hub) register() *client {
	c := &client{id: h.nextID.Add(1), out: make(chan []byte, h.queue)}
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client connected", "client", c.id, "clients", n)
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client disconnected", "client", c.id, "clients", n)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Sent and Dropped count per-client deliveries.
func (h *Hub) Sent() uint64    { return h.sent.Load() }
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Send encodes f once and queues it for every client. It returns
// sim.ErrSinkFull when at least one client had no room.
func (h *Hub) Send(f protocol.Frame) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return nil
	}

	b, err := f.Encode()
	if err != nil {
		return fmt.Errorf("ws: encode frame: %w", err)
	}

	var dropped int
	for _, c := range h.clients {
		if c.offer(b) {
			h.sent.Add(1)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		h.dropped.Add(uint64(dropped))
		return fmt.Errorf("%w: %d of %d clients", sim.ErrSinkFull, dropped, len(h.clients))
	}
	return nil
}
