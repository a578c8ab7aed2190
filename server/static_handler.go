package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"muselib/logger"
)

// StaticBlobHandler proxies bucket objects through the API for
// deployments where the object store endpoint is not reachable by
// clients directly. Only the two blob namespaces are served.
func (h *APIHandler) StaticBlobHandler(w http.ResponseWriter, r *http.Request) {
	objectPath := strings.TrimPrefix(r.URL.Path, "/static/")
	if !strings.HasPrefix(objectPath, "music/") && !strings.HasPrefix(objectPath, "album-art/") {
		http.NotFound(w, r)
		return
	}

	blob, err := h.blobs.Get(r.Context(), objectPath)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer blob.Close()

	contentType := blob.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		// Older objects stored without a content type.
		switch {
		case strings.HasPrefix(objectPath, "album-art/"):
			contentType = "image/jpeg"
		default:
			contentType = "audio/mpeg"
		}
	}

	w.Header().Set("Content-Type", contentType)
	if blob.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, blob); err != nil {
		logger.Error("Error serving blob", logger.String("path", objectPath), logger.ErrorField(err))
	}
}
