package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// openSubscriptions reads the realtime subscription gauge from the default registry.
func openSubscriptions(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "wellness_realtime_subscriptions" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("wellness_realtime_subscriptions not registered")
	return 0
}

func receive(t *testing.T, sub *Subscription) (Change, bool) {
	t.Helper()
	select {
	case c, ok := <-sub.C:
		return c, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}, false
	}
}

func TestHub_DeliversToMatchingUser(t *testing.T) {
	hub := NewHub()
	alice, bob := uuid.New(), uuid.New()

	aliceSub := hub.Subscribe(context.Background(), alice)
	defer aliceSub.Close()
	bobSub := hub.Subscribe(context.Background(), bob)
	defer bobSub.Close()

	hub.Publish(Change{Table: "sleep_entries", Type: EventInsert, UserID: alice})

	c, ok := receive(t, aliceSub)
	if !ok {
		t.Fatal("subscription closed unexpectedly")
	}
	if c.Table != "sleep_entries" || c.Type != EventInsert {
		t.Errorf("got %+v", c)
	}
	if c.At.IsZero() {
		t.Error("Publish() did not stamp the change time")
	}

	select {
	case c := <-bobSub.C:
		t.Errorf("bob received %+v", c)
	default:
	}
}

func TestHub_TableFilter(t *testing.T) {
	hub := NewHub()
	user := uuid.New()

	sub := hub.Subscribe(context.Background(), user, "water_entries")
	defer sub.Close()

	hub.Publish(Change{Table: "sleep_entries", UserID: user})
	hub.Publish(Change{Table: "water_entries", UserID: user})

	c, _ := receive(t, sub)
	if c.Table != "water_entries" {
		t.Errorf("Table = %q, want water_entries", c.Table)
	}
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	sub := hub.Subscribe(context.Background(), user)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < DefaultBuffer*3; i++ {
			hub.Publish(Change{Table: "mood_entries", UserID: user})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish() blocked on a full subscriber")
	}

	if got := len(sub.C); got != DefaultBuffer {
		t.Errorf("buffered = %d, want %d", got, DefaultBuffer)
	}
}

func TestSubscription_CloseReleases(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	sub := hub.Subscribe(context.Background(), user)

	if n := hub.Subscribers(user); n != 1 {
		t.Fatalf("Subscribers() = %d, want 1", n)
	}

	sub.Close()
	sub.Close() // idempotent

	if n := hub.Subscribers(user); n != 0 {
		t.Errorf("Subscribers() after Close = %d, want 0", n)
	}
	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed")
	}

	// Publishing after release must not panic
	hub.Publish(Change{Table: "mood_entries", UserID: user})
}

func TestSubscription_ContextCancelReleases(t *testing.T) {
	hub := NewHub()
	user := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	sub := hub.Subscribe(ctx, user)
	cancel()

	if _, ok := receive(t, sub); ok {
		t.Error("expected closed channel after cancel")
	}
	if n := hub.Subscribers(user); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}
}

func TestHub_ConcurrentSubscribeKeepsGaugeAccurate(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	before := openSubscriptions(t)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe(context.Background(), user)
			sub.Close()
			sub.Close()
		}()
	}
	kept := hub.Subscribe(context.Background(), user)
	wg.Wait()

	if got := openSubscriptions(t); got != before+1 {
		t.Errorf("gauge = %v, want %v", got, before+1)
	}
	if n := hub.Subscribers(user); n != 1 {
		t.Errorf("Subscribers() = %d, want 1", n)
	}

	kept.Close()
	if got := openSubscriptions(t); got != before {
		t.Errorf("gauge after close = %v, want %v", got, before)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	change := Change{
		Table:    "weight_entries",
		Type:     EventUpdate,
		UserID:   uuid.New(),
		RecordID: uuid.New(),
		Date:     "2024-06-15",
		At:       time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC),
	}

	data, err := encodeEnvelope("instance-a", change)
	if err != nil {
		t.Fatalf("encodeEnvelope() error = %v", err)
	}
	origin, got, err := decodeEnvelope(data)
	if err != nil {
		t.Fatalf("decodeEnvelope() error = %v", err)
	}
	if origin != "instance-a" {
		t.Errorf("origin = %q, want instance-a", origin)
	}
	if got != change {
		t.Errorf("change = %+v, want %+v", got, change)
	}

	if _, _, err := decodeEnvelope([]byte(`{"origin":"x"}`)); err == nil {
		t.Error("decodeEnvelope() should reject a change without a user")
	}
}
