package player

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"muselib/model"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newSocketServer serves websocket connections straight into the hub, the
// way the HTTP handler does: register, block on reads, unregister.
func newSocketServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.Register(conn)
		defer h.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		got := len(h.clients)
		h.mu.Unlock()
		if got == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d registered clients", n)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return event
}

func TestHubSendsSnapshotOnRegister(t *testing.T) {
	h := NewHub(nil)
	h.SetNowPlaying(&model.Track{ID: 7, Title: "So What"})

	srv := newSocketServer(t, h)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	event := readEvent(t, conn)
	if event.Type != "now_playing" {
		t.Fatalf("event type = %q, want now_playing", event.Type)
	}
	if event.Track == nil || event.Track.ID != 7 {
		t.Fatalf("event track = %+v, want id 7", event.Track)
	}
}

func TestHubBroadcastsSetAndClear(t *testing.T) {
	h := NewHub(nil)
	srv := newSocketServer(t, h)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitForClients(t, h, 1)

	h.SetNowPlaying(&model.Track{ID: 3, Title: "Naima"})
	event := readEvent(t, conn)
	if event.Type != "now_playing" || event.Track == nil || event.Track.ID != 3 {
		t.Fatalf("event = %+v, want now_playing for track 3", event)
	}

	h.Clear()
	event = readEvent(t, conn)
	if event.Type != "cleared" {
		t.Fatalf("event type = %q, want cleared", event.Type)
	}
	if h.Current() != nil {
		t.Fatal("Current() must be nil after Clear")
	}
}

// Registrations racing against a stream of publishes must never write the
// same connection from two goroutines; all writes go through the client's
// pump.
func TestHubConcurrentRegisterAndPublish(t *testing.T) {
	h := NewHub(nil)
	srv := newSocketServer(t, h)
	defer srv.Close()

	stop := make(chan struct{})
	var publishers sync.WaitGroup
	for i := 0; i < 4; i++ {
		publishers.Add(1)
		go func() {
			defer publishers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.SetNowPlaying(&model.Track{ID: 1, Title: "Footprints"})
				}
			}
		}()
	}

	var conns []*websocket.Conn
	for i := 0; i < 4; i++ {
		conn := dial(t, srv)
		conns = append(conns, conn)
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
	waitForClients(t, h, 4)
	time.Sleep(100 * time.Millisecond)

	close(stop)
	publishers.Wait()
	for _, conn := range conns {
		conn.Close()
	}
}
