package http

import (
	"encoding/json"
	"net/http"

	"acakata/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrSize = 320

// NewRouter mounts the websocket endpoint and the read-only HTTP API.
func NewRouter(room *app.Room, ws *WSHandler, publicURL string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, log, room.Snapshot())
		})
		r.Get("/leaderboard", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, log, room.Snapshot().Leaderboard)
		})
	})

	r.Get("/qr", func(w http.ResponseWriter, _ *http.Request) {
		png, err := qrcode.Encode(publicURL, qrcode.Medium, qrSize)
		if err != nil {
			log.Warn("qr generation failed", zap.String("url", publicURL), zap.Error(err))
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})
	return r
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("write response failed", zap.Error(err))
	}
}
