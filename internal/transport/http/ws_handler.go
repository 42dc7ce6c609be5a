package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"acakata/internal/app"
	"acakata/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 4096
)

type WSHandler struct {
	room     *app.Room
	log      *zap.Logger
	upgrader websocket.Upgrader

	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewWSHandler(room *app.Room, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		room: room,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type messagePayload struct {
	Text string `json:"text"`
}

type renamePayload struct {
	Name string `json:"name"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type sessionPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	IsDefaultName bool   `json:"isDefaultName"`
}

// deltaPayload carries only the sub-collections named by an update.
type deltaPayload struct {
	Question    *domain.Question      `json:"question,omitempty"`
	Timer       *int                  `json:"timer,omitempty"`
	Remaining   *int                  `json:"remaining,omitempty"`
	Leaderboard *[]domain.RankedEntry `json:"leaderboard,omitempty"`
	Online      *[]string             `json:"online,omitempty"`
	Messages    *[]domain.ChatMessage `json:"messages,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(msg string) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: msg}}
}

// toOutbound renders an update as a full snapshot or a delta.
func toOutbound(update domain.Update) outboundMessage {
	if update.Changes == domain.ChangeAll {
		return outboundMessage{Type: "snapshot", Payload: update.Snapshot}
	}
	snap := update.Snapshot
	var delta deltaPayload
	if update.Changes.Has(domain.ChangeQuestion) {
		delta.Question = &snap.Question
	}
	if update.Changes.Has(domain.ChangeTimer) {
		delta.Timer = &snap.Timer
		delta.Remaining = &snap.Remaining
	}
	if update.Changes.Has(domain.ChangeLeaderboard) {
		delta.Leaderboard = &snap.Leaderboard
	}
	if update.Changes.Has(domain.ChangeOnline) {
		delta.Online = &snap.Online
	}
	if update.Changes.Has(domain.ChangeMessages) {
		delta.Messages = &snap.Messages
	}
	return outboundMessage{Type: "delta", Payload: delta}
}

// ServeWS upgrades HTTP requests to websockets and attaches them to the room as one session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	name := h.room.DefaultName()
	isDefault := true
	if raw := r.URL.Query().Get("name"); raw != "" {
		valid, err := h.room.ValidateName(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name, isDefault = valid, false
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := h.log.With(zap.String("session", sessionID))
	log.Info("session connected", zap.String("name", name))

	updates, cancel := h.room.Subscribe()
	defer cancel()
	h.room.SetOnline(sessionID, name)
	defer h.room.SetOffline(sessionID)

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	enqueue := func(msg outboundMessage) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	// The writer goroutine is the only one calling WriteJSON.
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(h.pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-send:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					log.Debug("ws write error", zap.Error(err))
					_ = conn.Close()
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					log.Debug("ws ping error", zap.Error(err))
					_ = conn.Close()
					return
				}
			}
		}
	}()

	enqueue(outboundMessage{Type: "session", Payload: sessionPayload{ID: sessionID, Name: name, IsDefaultName: isDefault}})

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					// Room closed: tell the client and unblock the reader.
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(writeWait))
					_ = conn.Close()
					return
				}
				select {
				case send <- toOutbound(update):
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("ws read error", zap.Error(err))
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))

		switch inbound.Type {
		case "message":
			var payload messagePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				enqueue(errorMessage("invalid message payload"))
				continue
			}
			if result := h.room.SubmitMessage(name, payload.Text); result.Correct {
				log.Info("correct answer", zap.String("name", name), zap.Int("points", result.Points))
			}
		case "rename":
			var payload renamePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				enqueue(errorMessage("invalid rename payload"))
				continue
			}
			renamed, err := h.room.Rename(sessionID, payload.Name)
			if err != nil {
				enqueue(errorMessage(renameError(err)))
				continue
			}
			log.Info("session renamed", zap.String("from", name), zap.String("to", renamed))
			name = renamed
			enqueue(outboundMessage{Type: "session", Payload: sessionPayload{ID: sessionID, Name: name}})
		default:
			enqueue(errorMessage("unsupported message type"))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
	log.Info("session disconnected", zap.String("name", name))
}

func renameError(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyName):
		return "name must not be empty"
	case errors.Is(err, domain.ErrNameTooLong):
		return "name is too long"
	default:
		return err.Error()
	}
}
