// Package hub fans transmitted frames out to live monitor clients.
package hub

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kstaniek/go-tcan-bench/internal/can"
	"github.com/kstaniek/go-tcan-bench/internal/logging"
	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

// Policy decides what happens to a client whose buffer is full.
type Policy int

const (
	PolicyDrop Policy = iota // drop the frame for that client
	PolicyKick               // disconnect the client
)

func (p Policy) String() string {
	if p == PolicyKick {
		return "kick"
	}
	return "drop"
}

// ParsePolicy accepts "drop" or "kick".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "drop":
		return PolicyDrop, nil
	case "kick":
		return PolicyKick, nil
	default:
		return PolicyDrop, fmt.Errorf("invalid backpressure policy %q (want drop|kick)", s)
	}
}

const DefaultBufSize = 256

// Client is one subscriber. Out carries frames; Closed is closed when the
// hub kicks the client or it is removed.
type Client struct {
	Out       chan can.Frame
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the client is closed (idempotent).
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Closed) })
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	bufSize int
	policy  Policy
}

type Option func(*Hub)

func WithPolicy(p Policy) Option { return func(h *Hub) { h.policy = p } }

func WithBufSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

func New(opts ...Option) *Hub {
	h := &Hub{clients: make(map[*Client]struct{}), bufSize: DefaultBufSize}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscribe registers a new client with the hub's buffer size.
func (h *Hub) Subscribe() *Client {
	c := &Client{Out: make(chan can.Frame, h.bufSize), Closed: make(chan struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetMonitorClients(n)
	if n == 1 {
		logging.L().Info("monitor_first_connected")
	}
	return c
}

// Remove unregisters c and closes it; safe to call multiple times.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.Close()
	metrics.SetMonitorClients(n)
	if existed && n == 0 {
		logging.L().Info("monitor_last_disconnected")
	}
}

// Publish hands fr to every client without blocking. It is installed as the
// bus tap, so it runs while the bus is held and must stay cheap.
func (h *Hub) Publish(fr can.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.Out <- fr:
		default:
			if h.policy == PolicyKick {
				metrics.IncMonitorKick()
				c.Close() // writer exits; the server removes it
			} else {
				metrics.IncMonitorDrop()
			}
		}
	}
}

// Count returns the number of active clients.
func (h *Hub) Count() int { h.mu.RLock(); n := len(h.clients); h.mu.RUnlock(); return n }
