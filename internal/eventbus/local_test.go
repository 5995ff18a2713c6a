package eventbus

import (
	"context"
	"testing"
	"time"

	"candlesystem/internal/model"
)

func TestLocalBus_DeliversToSubscriber(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := model.SyncCompleteEvent{Symbol: "BTCUSDT", NewRecords: 3}
	if err := bus.PublishSyncComplete(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Symbol != "BTCUSDT" || got.NewRecords != 3 {
			t.Errorf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestLocalBus_DropsWhenSubscriberBufferFull(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 100; i++ {
		_ = bus.PublishSyncComplete(ctx, model.SyncCompleteEvent{Symbol: "ETHUSDT"})
	}

	// Buffer capacity is 64; publishing should never block the caller.
	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			if drained == 0 {
				t.Fatal("expected at least one delivered event")
			}
			return
		}
	}
}

func TestLocalBus_UnsubscribesOnContextCancel(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
