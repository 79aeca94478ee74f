package hub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func startHub(t *testing.T, name string) *Hub {
	t.Helper()
	h := New(name)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)

	deadline := time.Now().Add(time.Second)
	for !h.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return h
}

func serve(t *testing.T, h *Hub, addr string) {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use("/ws", UpgradeOnly)
	app.Get("/ws/feed", h.Handler())

	go app.Listen(addr)
	t.Cleanup(func() { app.Shutdown() })
	time.Sleep(100 * time.Millisecond)
}

func waitClients(h *Hub, want int) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestNewHub(t *testing.T) {
	h := New("verdicts")
	if h.ClientCount() != 0 {
		t.Error("ClientCount should be 0 initially")
	}
	if h.IsRunning() {
		t.Error("hub should not run before Run")
	}
	if h.Name() != "verdicts" {
		t.Errorf("Name = %q", h.Name())
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	h := startHub(t, "empty")
	h.BroadcastBinary([]byte{1, 2, 3})
	if err := h.BroadcastJSON(map[string]string{"a": "b"}); err != nil {
		t.Errorf("BroadcastJSON error: %v", err)
	}
}

func TestBroadcastJSONError(t *testing.T) {
	h := New("bad")
	if err := h.BroadcastJSON(make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := New("stalled") // not running, nothing drains the channel
	for i := 0; i < 300; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}
	if got := h.Dropped(); got != 300-256 {
		t.Errorf("Dropped = %d, want %d", got, 300-256)
	}
}

func TestWebSocketFanOut(t *testing.T) {
	h := startHub(t, "verdicts")
	serve(t, h, ":18090")

	a, _, err := websocket.DefaultDialer.Dial("ws://localhost:18090/ws/feed", nil)
	if err != nil {
		t.Fatalf("dial a: %v", err)
	}
	defer a.Close()
	b, _, err := websocket.DefaultDialer.Dial("ws://localhost:18090/ws/feed", nil)
	if err != nil {
		t.Fatalf("dial b: %v", err)
	}
	defer b.Close()

	if !waitClients(h, 2) {
		t.Fatalf("ClientCount = %d, want 2", h.ClientCount())
	}

	h.BroadcastJSON(map[string]string{"object": "Helmet (91.00%)"})
	h.BroadcastBinary([]byte{0xff, 0xd8})

	for name, ws := range map[string]*websocket.Conn{"a": a, "b": b} {
		ws.SetReadDeadline(time.Now().Add(time.Second))

		typ, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("%s read json: %v", name, err)
		}
		if typ != websocket.TextMessage {
			t.Errorf("%s type = %d, want text", name, typ)
		}
		var got map[string]string
		json.Unmarshal(data, &got)
		if got["object"] != "Helmet (91.00%)" {
			t.Errorf("%s payload = %s", name, data)
		}

		typ, data, err = ws.ReadMessage()
		if err != nil {
			t.Fatalf("%s read binary: %v", name, err)
		}
		if typ != websocket.BinaryMessage || len(data) != 2 {
			t.Errorf("%s binary = %d %v", name, typ, data)
		}
	}

	a.Close()
	if !waitClients(h, 1) {
		t.Errorf("ClientCount = %d, want 1 after disconnect", h.ClientCount())
	}
}

func TestNonUpgradeRejected(t *testing.T) {
	h := New("x")
	app := fiber.New()
	app.Use("/ws", UpgradeOnly)
	app.Get("/ws/feed", h.Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/ws/feed", nil))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}

func TestNewClientAfterStop(t *testing.T) {
	h := New("stopped")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)

	if _, err := NewClient(h, nil); err != ErrHubStopped {
		t.Errorf("err = %v, want ErrHubStopped", err)
	}
}
