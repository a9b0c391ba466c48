package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/flightassist/skyguard/pkg/logger"
)

// StaticFileHandler serves the pilot-facing single-page frontend out of
// server.static_files_dir. A request that doesn't match a file on disk
// falls back to index.html so client-side routes resolve; http.Dir already
// rejects ".." traversal, so no path-containment check is needed here.
type StaticFileHandler struct {
	staticDir  string
	fileServer http.Handler
	logger     *logger.Logger
}

// NewStaticFileHandler creates a new static file handler.
func NewStaticFileHandler(staticDir string, log *logger.Logger) *StaticFileHandler {
	return &StaticFileHandler{
		staticDir:  staticDir,
		fileServer: http.FileServer(http.Dir(staticDir)),
		logger:     log.Named("static-handler"),
	}
}

// ServeHTTP serves the requested file, or index.html if the path doesn't
// resolve to one.
func (h *StaticFileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	requested := filepath.Join(h.staticDir, filepath.Clean(r.URL.Path))
	if info, err := os.Stat(requested); err != nil || info.IsDir() {
		h.logger.Debug("serving index.html fallback", logger.String("requested_path", r.URL.Path))
		http.ServeFile(w, r, filepath.Join(h.staticDir, "index.html"))
		return
	}

	h.fileServer.ServeHTTP(w, r)
}
