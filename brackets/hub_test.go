package brackets

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func waitRoomSize(t *testing.T, h *Hub, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.RoomSize(room) != want {
		if time.Now().After(deadline) {
			t.Fatalf("room %s size = %d, want %d", room, h.RoomSize(room), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubPublishReachesRoom(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go h.Run()
	defer h.Stop()

	watcher := &Client{Hub: h, Send: make(chan []byte, 4), Room: TournamentRoom(7)}
	other := &Client{Hub: h, Send: make(chan []byte, 4), Room: TournamentRoom(8)}
	h.Register <- watcher
	h.Register <- other
	waitRoomSize(t, h, watcher.Room, 1)

	h.Publish(7, EventMatchReported, map[string]int{"match_id": 3})

	select {
	case raw := <-watcher.Send:
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]int `json:"payload"`
			RoomID  string         `json:"room_id"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("bad message %q: %v", raw, err)
		}
		if msg.Type != EventMatchReported || msg.Payload["match_id"] != 3 || msg.RoomID != "tournament_7" {
			t.Errorf("unexpected message %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher got nothing")
	}
	if len(other.Send) != 0 {
		t.Errorf("other room received %d messages", len(other.Send))
	}

	h.Unregister <- watcher
	waitRoomSize(t, h, watcher.Room, 0)
	if _, ok := <-watcher.Send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHubPublishDropsWhenBufferFull(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go h.Run()
	defer h.Stop()

	c := &Client{Hub: h, Send: make(chan []byte, 1), Room: TournamentRoom(1)}
	h.Register <- c
	waitRoomSize(t, h, c.Room, 1)

	h.Publish(1, EventMatchesCreated, nil)
	h.Publish(1, EventTournamentDone, nil)
	if got := len(c.Send); got != 1 {
		t.Fatalf("buffered = %d, want 1", got)
	}
}

func TestNilHubPublish(t *testing.T) {
	var h *Hub
	h.Publish(1, EventTournamentDone, nil)
}
