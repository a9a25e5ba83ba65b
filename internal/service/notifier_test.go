package service

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialNotifier подключает тестового подписчика к хабу.
func dialNotifier(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Ошибка подключения WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitSubscribers ждёт регистрации подписчиков в хабе.
func waitSubscribers(t *testing.T, n *Notifier, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n.Subscribers() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Подписчиков %d, ожидалось %d", n.Subscribers(), want)
}

func TestNotifier_PublishDelivers(t *testing.T) {
	n := NewNotifier(testLogger())
	srv := httptest.NewServer(n)
	defer srv.Close()
	defer n.Close()

	conn := dialNotifier(t, srv)
	waitSubscribers(t, n, 1)

	n.Publish(UploadEvent{
		Type:          EventChunk,
		UploadID:      "u-1",
		Filename:      "movie.mp4",
		BytesReceived: 500,
		TotalSize:     1000,
		Progress:      50,
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Ошибка чтения сообщения: %v", err)
	}

	var event UploadEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("Ошибка парсинга события: %v", err)
	}
	if event.Type != EventChunk {
		t.Errorf("type = %q, ожидалось %q", event.Type, EventChunk)
	}
	if event.UploadID != "u-1" {
		t.Errorf("upload_id = %q, ожидалось u-1", event.UploadID)
	}
	if event.Progress != 50 {
		t.Errorf("progress = %.1f, ожидалось 50", event.Progress)
	}
}

func TestNotifier_MultipleSubscribers(t *testing.T) {
	n := NewNotifier(testLogger())
	srv := httptest.NewServer(n)
	defer srv.Close()
	defer n.Close()

	first := dialNotifier(t, srv)
	second := dialNotifier(t, srv)
	waitSubscribers(t, n, 2)

	n.Publish(UploadEvent{Type: EventCompleted, UploadID: "u-2"})

	for i, conn := range []*websocket.Conn{first, second} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Подписчик %d: ошибка чтения: %v", i, err)
		}
		var event UploadEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("Подписчик %d: ошибка парсинга: %v", i, err)
		}
		if event.UploadID != "u-2" {
			t.Errorf("Подписчик %d: upload_id = %q, ожидалось u-2", i, event.UploadID)
		}
	}
}

func TestNotifier_SubscriberDisconnect(t *testing.T) {
	n := NewNotifier(testLogger())
	srv := httptest.NewServer(n)
	defer srv.Close()
	defer n.Close()

	conn := dialNotifier(t, srv)
	waitSubscribers(t, n, 1)

	conn.Close()

	// readPump обнаруживает разрыв и убирает подписчика
	waitSubscribers(t, n, 0)

	// Публикация без подписчиков не должна паниковать
	n.Publish(UploadEvent{Type: EventCancelled, UploadID: "u-3"})
}
