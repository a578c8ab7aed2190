package server

import (
	"io"
	"net/http"
	"sync"
	"time"

	"muselib/core/upload"
	"muselib/logger"
	"muselib/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	maxUploadSize = 500 << 20 // whole multipart batch
	maxFileSize   = 100 << 20 // single audio file
	batchTTL      = 30 * time.Minute
)

// stagedBatch is an upload batch awaiting user confirmation.
type stagedBatch struct {
	entries   []model.PendingUpload
	createdAt time.Time
}

// batchStore holds staged batches in memory. A batch that is never
// committed is discarded, either explicitly or by the TTL sweep.
type batchStore struct {
	mu      sync.Mutex
	batches map[string]*stagedBatch
}

func newBatchStore() *batchStore {
	s := &batchStore{batches: make(map[string]*stagedBatch)}
	go s.sweep()
	return s
}

func (s *batchStore) put(entries []model.PendingUpload) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.batches[id] = &stagedBatch{entries: entries, createdAt: time.Now()}
	s.mu.Unlock()
	return id
}

func (s *batchStore) take(id string) ([]model.PendingUpload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return nil, false
	}
	delete(s.batches, id)
	return batch.entries, true
}

func (s *batchStore) discard(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[id]; !ok {
		return false
	}
	delete(s.batches, id)
	return true
}

func (s *batchStore) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-batchTTL)
		s.mu.Lock()
		for id, batch := range s.batches {
			if batch.createdAt.Before(cutoff) {
				delete(s.batches, id)
			}
		}
		s.mu.Unlock()
	}
}

// StageUploadHandler accepts a multipart batch of audio files, runs the
// staging phase (metadata extraction, duplicate check, cover art upload)
// and parks the result for review. The response previews what a commit
// would insert.
func (h *APIHandler) StageUploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "Upload batch too large")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		logger.Error("Failed to parse upload form", logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "Failed to parse upload form")
		return
	}

	form := r.MultipartForm
	if form == nil || len(form.File["files"]) == 0 {
		writeError(w, http.StatusBadRequest, "No files in upload")
		return
	}

	inputs := make([]upload.Input, 0, len(form.File["files"]))
	for _, header := range form.File["files"] {
		if header.Size > maxFileSize {
			logger.Warn("Skipping oversized file",
				logger.String("file", header.Filename),
				logger.Int64("size", header.Size))
			continue
		}

		file, err := header.Open()
		if err != nil {
			logger.Error("Failed to open uploaded file",
				logger.String("file", header.Filename),
				logger.ErrorField(err))
			writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}

		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			logger.Error("Failed to read uploaded file",
				logger.String("file", header.Filename),
				logger.ErrorField(err))
			writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}

		inputs = append(inputs, upload.Input{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	staged, err := h.pipeline.Stage(r.Context(), inputs)
	if err != nil {
		// Duplicate-check failure: the backend is unhealthy, nothing
		// staged here should be committed.
		logger.Error("Staging aborted", logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "Staging aborted: backend unavailable")
		return
	}

	if len(staged) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"staged": []model.PendingUpload{},
		})
		return
	}

	batchID := h.batches.put(staged)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"batchId": batchID,
		"staged":  staged,
	})
}

// CommitUploadHandler commits a previously staged batch. The batch is
// consumed either way; a batch interrupted by a fatal audio-upload
// failure must be re-staged, not blindly retried with half its blobs
// already written.
func (h *APIHandler) CommitUploadHandler(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["id"]

	entries, ok := h.batches.take(batchID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown or expired batch")
		return
	}

	committed, err := h.pipeline.Commit(r.Context(), entries)
	if err != nil {
		logger.Error("Commit aborted",
			logger.String("batchId", batchID),
			logger.Int("committed", committed),
			logger.ErrorField(err))
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"committed": committed,
			"error":     "Commit aborted: audio upload failed",
		})
		return
	}

	logger.Info("Upload batch committed",
		logger.String("batchId", batchID),
		logger.Int("committed", committed))
	writeJSON(w, http.StatusOK, map[string]interface{}{"committed": committed})
}

// DiscardUploadHandler drops a staged batch without committing it.
func (h *APIHandler) DiscardUploadHandler(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["id"]
	if !h.batches.discard(batchID) {
		writeError(w, http.StatusNotFound, "Unknown or expired batch")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
