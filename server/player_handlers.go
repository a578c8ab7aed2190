package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"muselib/logger"
	"muselib/repository"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NowPlayingSocketHandler upgrades the connection and streams now-playing
// events until the client disconnects.
func (h *APIHandler) NowPlayingSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Websocket upgrade failed", logger.ErrorField(err))
		return
	}

	// Unregister closes the send queue; the hub's write pump then closes
	// the connection.
	h.notifier.Register(conn)
	defer h.notifier.Unregister(conn)

	// Drain client messages; the socket is push-only, the read loop just
	// detects disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// SetNowPlayingHandler marks a track as now playing and notifies
// listeners.
func (h *APIHandler) SetNowPlayingHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackID int64 `json:"trackId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	track, err := h.trackRepo.GetByID(r.Context(), req.TrackID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("Failed to load track", logger.Int64("trackId", req.TrackID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load track")
		return
	}

	h.notifier.SetNowPlaying(track)
	writeJSON(w, http.StatusOK, map[string]interface{}{"track": track})
}

// ClearNowPlayingHandler resets the now-playing state.
func (h *APIHandler) ClearNowPlayingHandler(w http.ResponseWriter, r *http.Request) {
	h.notifier.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// GetNowPlayingHandler returns the current track, if any.
func (h *APIHandler) GetNowPlayingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"track": h.notifier.Current()})
}
