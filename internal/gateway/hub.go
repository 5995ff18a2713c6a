// Package gateway broadcasts sync-complete notifications to WebSocket
// clients, each scoped to the symbols it has subscribed to.
package gateway

import (
	"context"
	"log"
	"sync"
	"time"

	"candlesystem/internal/metrics"
	"candlesystem/internal/model"
)

// Hub tracks connected clients and their per-symbol subscriptions, and
// fans sync-complete events out to whichever clients asked for that
// symbol.
type Hub struct {
	metrics *metrics.Gateway

	mu      sync.RWMutex
	clients map[*Client]bool
	bySym   map[string]map[*Client]bool
}

// NewHub returns an empty Hub. m may be nil in tests.
func NewHub(m *metrics.Gateway) *Hub {
	return &Hub{
		metrics: m,
		clients: make(map[*Client]bool),
		bySym:   make(map[string]map[*Client]bool),
	}
}

// Run consumes sync-complete events from sub and fans each one out to
// the clients subscribed to its symbol. Blocks until ctx is cancelled
// or the subscription closes.
func (h *Hub) Run(ctx context.Context, sub model.Subscriber) error {
	ch, err := sub.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			h.broadcastSyncComplete(ev)
		}
	}
}

func (h *Hub) broadcastSyncComplete(ev model.SyncCompleteEvent) {
	out := syncCompleteFromEvent(ev, time.Now().UnixMilli())

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.bySym[ev.Symbol]))
	for c := range h.bySym[ev.Symbol] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(out)
		if h.metrics != nil {
			h.metrics.MessagesSent.WithLabelValues("sync_complete").Inc()
		}
	}
}

// register adds a newly-connected client with no subscriptions yet.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
}

// unregister drops a client from every index it appears in.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	for symbol, set := range h.bySym {
		if set[c] {
			delete(set, c)
			if len(set) == 0 {
				delete(h.bySym, symbol)
			}
		}
	}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
}

// subscribe adds symbols to a client's subscription set.
func (h *Hub) subscribe(c *Client, symbols []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, symbol := range symbols {
		set, ok := h.bySym[symbol]
		if !ok {
			set = make(map[*Client]bool)
			h.bySym[symbol] = set
		}
		set[c] = true
	}
}

// unsubscribe removes symbols from a client's subscription set.
func (h *Hub) unsubscribe(c *Client, symbols []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, symbol := range symbols {
		if set, ok := h.bySym[symbol]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.bySym, symbol)
			}
		}
	}
}

// Stats reports the hub's current connection and subscriber counts.
func (h *Hub) Stats() statsMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	counts := make(map[string]int, len(h.bySym))
	for symbol, set := range h.bySym {
		counts[symbol] = len(set)
	}
	return statsMessage{
		Type: "stats",
		Data: statsData{
			TotalConnections: len(h.clients),
			Subscriptions:    counts,
		},
		Timestamp: time.Now().UnixMilli(),
	}
}

func (h *Hub) logUnknownAction(action string) {
	log.Printf("[gateway] unknown client action %q", action)
}
