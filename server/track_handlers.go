package server

import (
	"errors"
	"net/http"
	"strconv"

	"muselib/logger"
	"muselib/repository"

	"github.com/gorilla/mux"
)

// GetTracksHandler returns one page of the catalog, newest first.
// ?page=N is 1-based; the response carries hasMore so clients can drive
// infinite scroll without a separate count query.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "Invalid page number")
			return
		}
		page = parsed
	}

	tracks, err := h.trackRepo.ListPage(r.Context(), (page-1)*h.cfg.PageSize, h.cfg.PageSize)
	if err != nil {
		logger.Error("Failed to list tracks", logger.Int("page", page), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve tracks")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracks":  tracks,
		"page":    page,
		"hasMore": len(tracks) == h.cfg.PageSize,
	})
}

// SearchTracksHandler performs the substring search over title, album
// and artist. An empty query returns an empty list, not the catalog.
func (h *APIHandler) SearchTracksHandler(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("q")

	tracks, err := h.trackRepo.Search(r.Context(), pattern)
	if err != nil {
		logger.Error("Search failed", logger.String("q", pattern), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": tracks})
}

// GetArtistsHandler returns the distinct artist names in the library.
func (h *APIHandler) GetArtistsHandler(w http.ResponseWriter, r *http.Request) {
	artists, err := h.trackRepo.ListArtists(r.Context())
	if err != nil {
		logger.Error("Failed to list artists", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve artists")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"artists": artists})
}

// GetArtistTracksHandler returns every track by one artist.
func (h *APIHandler) GetArtistTracksHandler(w http.ResponseWriter, r *http.Request) {
	artist := mux.Vars(r)["name"]

	tracks, err := h.trackRepo.ListByField(r.Context(), "artist", artist)
	if err != nil {
		logger.Error("Failed to list artist tracks",
			logger.String("artist", artist),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve tracks")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": tracks})
}

// GetFavoritesHandler returns every pinned track.
func (h *APIHandler) GetFavoritesHandler(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.trackRepo.ListByField(r.Context(), "pin", 1)
	if err != nil {
		logger.Error("Failed to list favorites", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to retrieve favorites")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": tracks})
}

// ToggleFavoriteHandler flips the pin flag of a track.
func (h *APIHandler) ToggleFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	track, err := h.trackRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("Failed to load track", logger.Int64("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load track")
		return
	}

	var flipped int8
	if track.Pin == 0 {
		flipped = 1
	}

	if err := h.trackRepo.UpdateFields(r.Context(), id, map[string]interface{}{"pin": flipped}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track vanished before update")
			return
		}
		logger.Error("Failed to toggle favorite", logger.Int64("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to update favorite")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "pin": flipped})
}

// DeleteTrackHandler removes a track and both of its blobs. Blob removal
// is idempotent, so a re-issued delete of a half-removed track converges.
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	track, err := h.trackRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not found")
			return
		}
		logger.Error("Failed to load track", logger.Int64("trackId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load track")
		return
	}

	if track.CoverURL != "" {
		if err := h.blobs.Remove(r.Context(), track.CoverURL); err != nil {
			logger.Error("Failed to remove cover blob",
				logger.Int64("trackId", id),
				logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to remove cover art")
			return
		}
	}

	if track.MusicURL != "" {
		if err := h.blobs.Remove(r.Context(), track.MusicURL); err != nil {
			logger.Error("Failed to remove audio blob",
				logger.Int64("trackId", id),
				logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to remove audio")
			return
		}
	}

	if err := h.trackRepo.Delete(r.Context(), id); err != nil {
		logger.Error("Failed to delete track record",
			logger.Int64("trackId", id),
			logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete track")
		return
	}

	logger.Info("Track deleted",
		logger.Int64("trackId", id),
		logger.String("title", track.Title))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Track deleted"})
}
