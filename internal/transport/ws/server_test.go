package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/liurenhao/stagegate/internal/domain"
	"github.com/liurenhao/stagegate/internal/hub"
)

func TestStreamForwardsProjectEvents(t *testing.T) {
	h := hub.New()
	e := echo.New()
	NewServer(h).RegisterRoutes(e)

	ts := httptest.NewServer(e)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/projects/proj-1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	// Wait for the subscription to land before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for h.SubscriberCount("proj-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Publish(domain.Event{
		EventID:     "evt_1",
		Project:     "proj-1",
		ExecutionID: "exe_1",
		Ts:          time.Now().UnixMilli(),
		Type:        domain.EventTypeExecutionDelta,
		Payload:     json.RawMessage(`{"text":"hello"}`),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read event: %v", err)
	}

	var event domain.Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("failed to parse event: %v", err)
	}
	if event.Type != domain.EventTypeExecutionDelta || event.ExecutionID != "exe_1" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestStreamCleansUpOnDisconnect(t *testing.T) {
	h := hub.New()
	e := echo.New()
	NewServer(h).RegisterRoutes(e)

	ts := httptest.NewServer(e)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/projects/proj-1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.SubscriberCount("proj-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for h.SubscriberCount("proj-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription should be removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
