package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"muselib/config"
	"muselib/core/auth"
	"muselib/core/metadata"
	"muselib/core/player"
	"muselib/core/upload"
	"muselib/logger"
	"muselib/repository"
	"muselib/storage"
)

// APIHandler handles all API requests.
type APIHandler struct {
	trackRepo repository.TrackRepository
	blobs     storage.BlobStore
	pipeline  *upload.Pipeline
	notifier  *player.Hub
	cfg       *config.Config

	batches  *batchStore
	sessions *sessionStore
}

// NewAPIHandler creates the API handler and its session stores.
func NewAPIHandler(
	trackRepo repository.TrackRepository,
	blobs storage.BlobStore,
	extractor metadata.Extractor,
	notifier *player.Hub,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		trackRepo: trackRepo,
		blobs:     blobs,
		pipeline:  upload.NewPipeline(trackRepo, blobs, extractor),
		notifier:  notifier,
		cfg:       cfg,
		batches:   newBatchStore(),
		sessions:  newSessionStore(cfg.PageSize),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// LoginRequest is the admin login request body.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginHandler checks the admin password and issues a JWT.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}

	if h.cfg.AdminPasswordHash == "" {
		logger.Error("Admin login attempted but ADMIN_PASSWORD_HASH is not configured")
		writeError(w, http.StatusServiceUnavailable, "Admin access not configured")
		return
	}

	if !auth.CheckPasswordHash(req.Password, h.cfg.AdminPasswordHash) {
		logger.Warn("Admin login rejected", logger.String("remoteAddr", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, err := auth.GenerateToken(h.cfg.JWTSecret)
	if err != nil {
		logger.Error("Failed to generate token", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// AuthMiddleware guards mutating endpoints behind a valid admin token.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		if _, err := auth.ParseToken(parts[1], h.cfg.JWTSecret); err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r)
	}
}
