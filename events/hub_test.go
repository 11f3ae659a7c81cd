package events

import (
	"testing"
	"time"
)

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe()
	ch2, cancel2 := hub.Subscribe()
	defer cancel1()
	defer cancel2()

	hub.Publish(TournamentCreated, map[string]string{"tournament_id": "t1"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != TournamentCreated {
				t.Fatalf("subscriber %d got type %q, want %q", i, ev.Type, TournamentCreated)
			}
			if ev.At.IsZero() {
				t.Fatalf("subscriber %d event has no timestamp", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	if hub.SubscriberCount() != 1 {
		t.Fatalf("subscriber count = %d, want 1", hub.SubscriberCount())
	}

	cancel()
	if hub.SubscriberCount() != 0 {
		t.Fatalf("subscriber count = %d after cancel, want 0", hub.SubscriberCount())
	}
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after cancel")
	}
	// Cancelling twice is a no-op.
	cancel()

	hub.Publish(MatchResult, nil)
}

func TestSlowSubscriberNeverBlocksPublish(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Well past the buffer size; Publish must drop, not block.
		for i := 0; i < 100; i++ {
			hub.Publish(PaymentReceived, map[string]int{"n": i})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	hub := NewHub()
	hub.Publish(TournamentStarted, nil)

	ch, cancel := hub.Subscribe()
	defer cancel()

	select {
	case ev := <-ch:
		t.Fatalf("late subscriber received %q, want nothing", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}
