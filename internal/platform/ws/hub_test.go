package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestClient(topics ...string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		Topics: topics,
		Send:   make(chan []byte, 8),
	}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHub_TopicScopedDelivery(t *testing.T) {
	hub := NewHub()
	patientA := uuid.New()
	patientB := uuid.New()

	clientA := newTestClient(PatientTopic(patientA))
	clientB := newTestClient(PatientTopic(patientB))
	hub.Register(clientA)
	hub.Register(clientB)

	hub.Broadcast(PatientTopic(patientA), Event{Type: "measurement.recorded", Topic: PatientTopic(patientA)})

	ev := receive(t, clientA)
	if ev.Type != "measurement.recorded" {
		t.Errorf("unexpected event type %s", ev.Type)
	}

	select {
	case <-clientB.Send:
		t.Error("client subscribed to another patient should not receive the event")
	default:
	}
}

func TestHub_PublishReachesGlobal(t *testing.T) {
	hub := NewHub()
	global := newTestClient(TopicGlobal)
	hub.Register(global)

	patientID := uuid.New()
	err := hub.Publish(context.Background(), Event{
		Type:  "case.created",
		Topic: PatientTopic(patientID),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := receive(t, global)
	if ev.Type != "case.created" {
		t.Errorf("unexpected event type %s", ev.Type)
	}
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()
	client := newTestClient()
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{RoleTopic("nurse")}})
	if hub.TopicCount(RoleTopic("nurse")) != 1 {
		t.Fatal("expected one nurse subscriber")
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{RoleTopic("nurse")}})
	if hub.TopicCount(RoleTopic("nurse")) != 0 {
		t.Error("expected no nurse subscribers after unsubscribe")
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	client := newTestClient(TopicGlobal)
	hub.Register(client)
	hub.Unregister(client)

	if _, ok := <-client.Send; ok {
		t.Error("expected Send channel to be closed")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	// Second unregister is a no-op
	hub.Unregister(client)
}

func TestHub_FullBufferSkipped(t *testing.T) {
	hub := NewHub()
	client := &Client{ID: "slow", Topics: []string{TopicGlobal}, Send: make(chan []byte)}
	hub.Register(client)

	// Nothing reads client.Send; Broadcast must not block.
	done := make(chan struct{})
	go func() {
		hub.Broadcast(TopicGlobal, Event{Type: "case.updated", Topic: TopicGlobal})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}
}
