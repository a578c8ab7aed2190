package server

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"muselib/core/catalog"
	"muselib/core/favorites"
	"muselib/logger"
	"muselib/repository"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// browseSession pairs an incremental loader with its favorite
// coordinator for one scrolling client.
type browseSession struct {
	loader      *catalog.Loader
	coordinator *favorites.Coordinator
	lastUsed    time.Time
}

// sessionStore keeps the live browse sessions. Sessions idle longer than
// sessionTTL are closed and evicted by a background sweep.
type sessionStore struct {
	pageSize int

	mu       sync.Mutex
	sessions map[string]*browseSession
}

const sessionTTL = 30 * time.Minute

func newSessionStore(pageSize int) *sessionStore {
	s := &sessionStore{
		pageSize: pageSize,
		sessions: make(map[string]*browseSession),
	}
	go s.sweep()
	return s
}

func (s *sessionStore) create(repo repository.TrackRepository) (string, *browseSession) {
	loader := catalog.NewLoader(repo, s.pageSize)
	session := &browseSession{
		loader:      loader,
		coordinator: favorites.NewCoordinator(repo, loader),
		lastUsed:    time.Now(),
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()
	return id, session
}

func (s *sessionStore) get(id string) (*browseSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if ok {
		session.lastUsed = time.Now()
	}
	return session, ok
}

func (s *sessionStore) remove(id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		session.loader.Close()
	}
}

func (s *sessionStore) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-sessionTTL)
		s.mu.Lock()
		for id, session := range s.sessions {
			if session.lastUsed.Before(cutoff) {
				session.loader.Close()
				delete(s.sessions, id)
			}
		}
		s.mu.Unlock()
	}
}

// catalogState is the session snapshot returned by all catalog endpoints.
func catalogState(id string, session *browseSession) map[string]interface{} {
	return map[string]interface{}{
		"sessionId": id,
		"tracks":    session.loader.Items(),
		"hasMore":   session.loader.HasMore(),
	}
}

// OpenCatalogHandler starts a browse session and loads the first page.
func (h *APIHandler) OpenCatalogHandler(w http.ResponseWriter, r *http.Request) {
	id, session := h.sessions.create(h.trackRepo)

	if err := session.loader.LoadNext(r.Context()); err != nil {
		h.sessions.remove(id)
		logger.Error("Failed to load initial catalog page", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load catalog")
		return
	}

	writeJSON(w, http.StatusCreated, catalogState(id, session))
}

// GetCatalogHandler returns the session's current merged list.
func (h *APIHandler) GetCatalogHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sid"]
	session, ok := h.sessions.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown session")
		return
	}

	writeJSON(w, http.StatusOK, catalogState(id, session))
}

// LoadMoreHandler fetches and merges the next page. Safe to call from a
// level-triggered scroll check: a call while a fetch is in flight or
// after the end of data changes nothing.
func (h *APIHandler) LoadMoreHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sid"]
	session, ok := h.sessions.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown session")
		return
	}

	if err := session.loader.LoadNext(r.Context()); err != nil {
		logger.Error("Failed to load catalog page", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to load next page")
		return
	}

	writeJSON(w, http.StatusOK, catalogState(id, session))
}

// SearchCatalogHandler replaces the session's list with a search result
// set. The replacement is not paginated further; clearing the query
// resets the session back to paged browsing.
func (h *APIHandler) SearchCatalogHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sid"]
	session, ok := h.sessions.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown session")
		return
	}

	pattern := r.URL.Query().Get("q")
	if pattern == "" {
		session.loader.Reset()
		if err := session.loader.LoadNext(r.Context()); err != nil {
			logger.Error("Failed to reload catalog after search reset", logger.ErrorField(err))
			writeError(w, http.StatusInternalServerError, "Failed to reload catalog")
			return
		}
		writeJSON(w, http.StatusOK, catalogState(id, session))
		return
	}

	tracks, err := h.trackRepo.Search(r.Context(), pattern)
	if err != nil {
		logger.Error("Catalog search failed", logger.String("q", pattern), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	session.loader.Replace(tracks)
	writeJSON(w, http.StatusOK, catalogState(id, session))
}

// SessionToggleFavoriteHandler toggles a favorite through the session's
// coordinator: the session list is updated optimistically and rolled
// back if the backend write fails.
func (h *APIHandler) SessionToggleFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	session, ok := h.sessions.get(vars["sid"])
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown session")
		return
	}

	trackID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid track ID")
		return
	}

	pin, err := session.coordinator.Toggle(r.Context(), trackID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Track not in session")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update favorite")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"id": trackID, "pin": pin})
}

// CloseCatalogHandler tears the session down. A page fetch still in
// flight at this point is discarded on arrival.
func (h *APIHandler) CloseCatalogHandler(w http.ResponseWriter, r *http.Request) {
	h.sessions.remove(mux.Vars(r)["sid"])
	w.WriteHeader(http.StatusNoContent)
}
