package events

import (
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(Event{RunID: "r1", Step: "fetch-outcome", Outcome: "ok"})

	select {
	case ev := <-ch:
		if ev.RunID != "r1" || ev.Step != "fetch-outcome" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe()
	cancel()

	// The channel is closed; publishing must not panic.
	b.Publish(Event{RunID: "r1"})

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker()
	_, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Overflow the subscriber buffer; Publish must never block.
		for i := 0; i < 200; i++ {
			b.Publish(Event{RunID: "r1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}
