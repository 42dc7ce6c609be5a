package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"acakata/internal/app"
	"acakata/internal/domain"
	"acakata/internal/infra/memory"
	"acakata/internal/locale"
	"acakata/internal/puzzle"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Room) {
	t.Helper()
	log := zaptest.NewLogger(t)
	corpus := memory.NewCorpusRepository(memory.NewStaticCorpusLoader([]domain.PuzzleEntry{
		{Word: "halo", Hint: "sapaan"},
	}), time.Minute)
	source := puzzle.NewSource(corpus, puzzle.DefaultScoring(), log)
	scores := app.NewScorekeeper(memory.NewLeaderboardStore(), 1, log)
	room := app.NewRoom(context.Background(), app.DefaultRoomConfig(), source, scores, locale.New("en"), log)

	server := httptest.NewServer(NewRouter(room, NewWSHandler(room, log), "http://acakata.test", log))
	t.Cleanup(server.Close)
	t.Cleanup(room.Close)
	return server, room
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	var msg envelope
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

// readUntil skips messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(envelope) bool) envelope {
	t.Helper()
	for i := 0; i < 20; i++ {
		if msg := readNext(t, conn); match(msg) {
			return msg
		}
	}
	t.Fatalf("expected message never arrived")
	return envelope{}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func TestWebSocketAnswerFlow(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server, "?name=Ann")

	msg := readNext(t, conn)
	if msg.Type != "session" {
		t.Fatalf("expected session first, got %s", msg.Type)
	}
	session := decode[sessionPayload](t, msg.Payload)
	if session.Name != "Ann" || session.IsDefaultName || session.ID == "" {
		t.Fatalf("unexpected session %+v", session)
	}

	msg = readNext(t, conn)
	if msg.Type != "snapshot" {
		t.Fatalf("expected snapshot, got %s", msg.Type)
	}
	if strings.Contains(string(msg.Payload), "HALO\"") {
		t.Fatalf("snapshot leaked the answer: %s", msg.Payload)
	}
	snap := decode[domain.RoomSnapshot](t, msg.Payload)
	if snap.Question.Hint != "sapaan" || len(snap.Question.Scrambled) != 4 || snap.Remaining != 15 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	readUntil(t, conn, func(m envelope) bool {
		if m.Type != "delta" {
			return false
		}
		delta := decode[deltaPayload](t, m.Payload)
		return delta.Online != nil && len(*delta.Online) == 1 && (*delta.Online)[0] == "Ann"
	})

	if err := conn.WriteJSON(map[string]any{"type": "message", "payload": map[string]any{"text": " halo "}}); err != nil {
		t.Fatalf("write message: %v", err)
	}

	msg = readUntil(t, conn, func(m envelope) bool {
		return m.Type == "delta" && decode[deltaPayload](t, m.Payload).Messages != nil
	})
	messages := *decode[deltaPayload](t, msg.Payload).Messages
	if len(messages) != 1 || messages[0].Text != "Answered correctly (+10)" {
		t.Fatalf("expected correct-answer notice, got %+v", messages)
	}

	msg = readUntil(t, conn, func(m envelope) bool {
		return m.Type == "delta" && decode[deltaPayload](t, m.Payload).Leaderboard != nil
	})
	board := *decode[deltaPayload](t, msg.Payload).Leaderboard
	if len(board) != 1 || board[0] != (domain.RankedEntry{Player: "Ann", Score: 10, Online: true}) {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
}

func TestWebSocketDefaultNameAndRename(t *testing.T) {
	server, room := newTestServer(t)
	conn := dial(t, server, "")

	session := decode[sessionPayload](t, readNext(t, conn).Payload)
	if session.Name != "anonim" || !session.IsDefaultName {
		t.Fatalf("expected default name session, got %+v", session)
	}

	if err := conn.WriteJSON(map[string]any{"type": "rename", "payload": map[string]any{"name": "Bob"}}); err != nil {
		t.Fatalf("write rename: %v", err)
	}
	msg := readUntil(t, conn, func(m envelope) bool { return m.Type == "session" })
	renamed := decode[sessionPayload](t, msg.Payload)
	if renamed.Name != "Bob" || renamed.IsDefaultName || renamed.ID != session.ID {
		t.Fatalf("unexpected renamed session %+v", renamed)
	}
	if online := room.Snapshot().Online; len(online) != 1 || online[0] != "Bob" {
		t.Fatalf("expected Bob online, got %v", online)
	}

	if err := conn.WriteJSON(map[string]any{"type": "rename", "payload": map[string]any{"name": "   "}}); err != nil {
		t.Fatalf("write rename: %v", err)
	}
	msg = readUntil(t, conn, func(m envelope) bool { return m.Type == "error" })
	if got := decode[errorPayload](t, msg.Payload).Message; got != "name must not be empty" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestWebSocketRejectsUnknownMessages(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server, "?name=Ann")

	if err := conn.WriteJSON(map[string]any{"type": "answer"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readUntil(t, conn, func(m envelope) bool { return m.Type == "error" })
	if got := decode[errorPayload](t, msg.Payload).Message; got != "unsupported message type" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestWebSocketRejectsLongNames(t *testing.T) {
	server, _ := newTestServer(t)
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?name=" + strings.Repeat("x", 40)

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func TestDisconnectLeavesOnlineSet(t *testing.T) {
	server, room := newTestServer(t)
	first := dial(t, server, "?name=Ann")
	second := dial(t, server, "?name=Ann")
	readNext(t, first)
	readNext(t, second)

	waitFor(t, func() bool { return len(room.Snapshot().Online) == 1 })

	_ = first.Close()
	time.Sleep(50 * time.Millisecond)
	if online := room.Snapshot().Online; len(online) != 1 {
		t.Fatalf("expected Ann still online through second session, got %v", online)
	}

	_ = second.Close()
	waitFor(t, func() bool { return len(room.Snapshot().Online) == 0 })
}

func TestRoomCloseDisconnectsClients(t *testing.T) {
	server, room := newTestServer(t)
	conn := dial(t, server, "?name=Ann")
	readNext(t, conn)

	room.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg envelope
		err := conn.ReadJSON(&msg)
		if err == nil {
			continue
		}
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Fatalf("expected going-away close, got %v", err)
		}
		return
	}
}

func TestDeltaCarriesOnlyChangedParts(t *testing.T) {
	update := domain.Update{
		Changes:  domain.ChangeTimer,
		Snapshot: domain.RoomSnapshot{Timer: 3, Remaining: 12, Messages: []domain.ChatMessage{}},
	}
	out := toOutbound(update)
	if out.Type != "delta" {
		t.Fatalf("expected delta, got %s", out.Type)
	}
	raw, err := json.Marshal(out.Payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"timer":3,"remaining":12}` {
		t.Fatalf("unexpected delta %s", raw)
	}

	if out := toOutbound(domain.Update{Changes: domain.ChangeAll}); out.Type != "snapshot" {
		t.Fatalf("expected snapshot for full update, got %s", out.Type)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
