package game_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/finquest/invest-engine/internal/game"
)

func TestWSHub_BroadcastReachesClients(t *testing.T) {
	hub := game.NewWSHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	time.Sleep(20 * time.Millisecond) // let registration land

	hub.Broadcast(game.WSMessage{Type: "month_advanced", UserID: "alice", Regime: "bull", Month: 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg game.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != "month_advanced" || msg.UserID != "alice" || msg.Month != 3 {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestWSHub_BroadcastSweepsDeadClients(t *testing.T) {
	hub := game.NewWSHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	alive, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial alive: %v", err)
	}
	t.Cleanup(func() { alive.Close() })

	dead, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial dead: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	dead.Close()

	// Repeated broadcasts run the removal sweep concurrently with the
	// per-connection reader and ping goroutines; the surviving client keeps
	// receiving throughout.
	received := 0
	for i := 0; i < 5; i++ {
		hub.Broadcast(game.WSMessage{Type: "trade_executed", UserID: "alice", Month: i + 1})
		alive.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := alive.ReadMessage(); err != nil {
			t.Fatalf("read %d: %v", i+1, err)
		}
		received++
	}
	if received != 5 {
		t.Errorf("alive client received %d broadcasts, want 5", received)
	}
}
