package bus

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/consultly/realtime/internal/models"
)

// testBus connects to the broker named by NATS_URL, skipping when none is
// available.
func testBus(t *testing.T) *NATSBus {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping broker integration test")
	}
	b, err := Connect(url, zerolog.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func testEvent(t *testing.T, content string) *models.Event {
	t.Helper()
	ev, err := models.NewEvent(models.TypeNewMessage, &models.ChatMessage{
		ID:        ulid.Make().String(),
		SessionID: "s1",
		Content:   content,
	})
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	b := testBus(t)
	topic := ChatTopic(ulid.Make().String())

	ch, cancel, err := b.Subscribe(topic)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	if err := b.Publish(context.Background(), topic, testEvent(t, "hello")); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		if ev.Type != models.TypeNewMessage {
			t.Fatalf("unexpected event type %q", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive published event")
	}
}

func TestLateSubscriberGetsNoBacklog(t *testing.T) {
	b := testBus(t)
	topic := ChatTopic(ulid.Make().String())

	if err := b.Publish(context.Background(), topic, testEvent(t, "before")); err != nil {
		t.Fatal(err)
	}
	// Let the broker finish routing before subscribing.
	time.Sleep(100 * time.Millisecond)

	ch, cancel, err := b.Subscribe(topic)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	select {
	case ev := <-ch:
		t.Fatalf("received retroactive event: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	b := testBus(t)
	topic := ChatTopic(ulid.Make().String())

	ch1, cancel1, err := b.Subscribe(topic)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel1()
	ch2, cancel2, err := b.Subscribe(topic)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel2()

	if err := b.Publish(context.Background(), topic, testEvent(t, "fanout")); err != nil {
		t.Fatal(err)
	}

	for i, ch := range []<-chan *models.Event{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d did not receive event", i+1)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := testBus(t)
	topic := ChatTopic(ulid.Make().String())

	ch, cancel, err := b.Subscribe(topic)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	if err := b.Publish(context.Background(), topic, testEvent(t, "after cancel")); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		t.Fatalf("received event after unsubscribe: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestStatusWildcardCoversAllSessions(t *testing.T) {
	b := testBus(t)

	ch, cancel, err := b.Subscribe(SessionUpdates)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	ev, err := models.NewEvent(models.TypeSessionUpdate, &models.SessionStatus{
		SessionID: ulid.Make().String(),
		Status:    "active",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Publish(context.Background(), StatusTopic(ulid.Make().String()), ev); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-ch:
		if got.Type != models.TypeSessionUpdate {
			t.Fatalf("unexpected event type %q", got.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wildcard subscriber did not receive status update")
	}
}
