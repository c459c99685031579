package events

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidfriends/friends/internal/models"
)

func TestEncodeEvent(t *testing.T) {
	at := time.Date(2024, time.February, 2, 10, 0, 0, 0, time.UTC)
	data, err := encode(models.Event{
		Type:           models.EventRequestAccepted,
		RelationshipID: "rel-1",
		From:           "a",
		To:             "b",
		OccurredAt:     at,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]string{
		"type":           "request.accepted",
		"relationshipId": "rel-1",
		"occurredAt":     "2024-02-02T10:00:00Z",
	}
	for key, value := range want {
		if decoded[key] != value {
			t.Fatalf("expected %s=%q, got %v", key, value, decoded[key])
		}
	}
}

func TestEncodeEventStampsMissingTime(t *testing.T) {
	data, err := encode(models.Event{Type: models.EventRequestSent})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded models.Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.OccurredAt.IsZero() {
		t.Fatal("expected occurredAt to be stamped")
	}
}

func TestRedisPublisherUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	publisher := NewRedisPublisher(client, "")
	if publisher.queue != DefaultQueueName {
		t.Fatalf("expected default queue %q, got %q", DefaultQueueName, publisher.queue)
	}

	err := publisher.Publish(context.Background(), models.Event{Type: models.EventRequestSent})
	if err == nil || !strings.Contains(err.Error(), DefaultQueueName) {
		t.Fatalf("expected error naming the queue, got %v", err)
	}
}

func TestNopPublisher(t *testing.T) {
	if err := (NopPublisher{}).Publish(context.Background(), models.Event{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
