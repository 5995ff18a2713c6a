package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"candlesystem/internal/eventbus"
	"candlesystem/internal/model"
)

type wireTypeProbe struct {
	Type string `json:"type"`
}

func wireType(t *testing.T, data []byte) string {
	t.Helper()
	var probe wireTypeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return probe.Type
}

func newTestClient(hub *Hub) *Client {
	c := &Client{hub: hub, send: make(chan []byte, sendBuffer)}
	hub.register(c)
	return c
}

func TestHubSubscribeRoutesEventsOnlyToMatchingClients(t *testing.T) {
	hub := NewHub(nil)
	btc := newTestClient(hub)
	eth := newTestClient(hub)

	hub.subscribe(btc, []string{"BTCUSDT"})
	hub.subscribe(eth, []string{"ETHUSDT"})

	hub.broadcastSyncComplete(model.SyncCompleteEvent{Symbol: "BTCUSDT", NewRecords: 1})

	select {
	case data := <-btc.send:
		if got := wireType(t, data); got != "sync_complete" {
			t.Errorf("type = %q, want sync_complete", got)
		}
	default:
		t.Fatal("btc client should have received the event")
	}

	select {
	case <-eth.send:
		t.Fatal("eth client should not have received a BTCUSDT event")
	default:
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	c := newTestClient(hub)
	hub.subscribe(c, []string{"BTCUSDT"})
	hub.unsubscribe(c, []string{"BTCUSDT"})

	hub.broadcastSyncComplete(model.SyncCompleteEvent{Symbol: "BTCUSDT"})

	select {
	case <-c.send:
		t.Fatal("unsubscribed client should not receive events")
	default:
	}
}

func TestHubUnregisterRemovesFromAllSymbols(t *testing.T) {
	hub := NewHub(nil)
	c := newTestClient(hub)
	hub.subscribe(c, []string{"BTCUSDT", "ETHUSDT"})
	hub.unregister(c)

	stats := hub.Stats()
	if stats.Data.TotalConnections != 0 {
		t.Errorf("TotalConnections = %d, want 0", stats.Data.TotalConnections)
	}
	if len(stats.Data.Subscriptions) != 0 {
		t.Errorf("Subscriptions = %v, want empty", stats.Data.Subscriptions)
	}
}

func TestClientEnqueueDropsOldestWhenQueueFull(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{hub: hub, send: make(chan []byte, 2)}

	c.enqueue(pongMessage{Type: "a"})
	c.enqueue(pongMessage{Type: "b"})
	c.enqueue(pongMessage{Type: "c"})

	var types []string
	for i := 0; i < 2; i++ {
		select {
		case data := <-c.send:
			types = append(types, wireType(t, data))
		default:
			t.Fatal("expected two queued messages")
		}
	}
	if types[0] != "b" || types[1] != "c" {
		t.Errorf("queue after overflow = %v, want [b c]", types)
	}
}

func TestHubRunForwardsUntilContextCancelled(t *testing.T) {
	bus := eventbus.NewLocalBus()
	hub := NewHub(nil)
	c := newTestClient(hub)
	hub.subscribe(c, []string{"BTCUSDT"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx, bus) }()

	if err := bus.PublishSyncComplete(ctx, model.SyncCompleteEvent{Symbol: "BTCUSDT", NewRecords: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case data := <-c.send:
		if got := wireType(t, data); got != "sync_complete" {
			t.Errorf("type = %q, want sync_complete", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}
