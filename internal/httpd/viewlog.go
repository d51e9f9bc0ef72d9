package httpd

import (
	"fmt"
	"io"
	"net/http"
	"os"
)

// viewLogTailBytes caps how much of the log file /_viewlog returns, the
// same "last N bytes" shape the control-surface log viewer uses upstream.
const viewLogTailBytes = 64 * 1024

// handleViewLog serves the tail of the daemon's own log file, spec.md
// §4.I's `/_viewlog` route.
func (s *Server) handleViewLog(w http.ResponseWriter, r *http.Request) {
	if s.LogPath == "" {
		http.Error(w, "no log file configured", http.StatusNotFound)
		return
	}
	f, err := os.Open(s.LogPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("open log: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat log: %v", err), http.StatusInternalServerError)
		return
	}
	var offset int64
	if info.Size() > viewLogTailBytes {
		offset = info.Size() - viewLogTailBytes
	}
	if _, err := f.Seek(offset, 0); err != nil {
		http.Error(w, fmt.Sprintf("seek log: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.Copy(w, f); err != nil {
		http.Error(w, fmt.Sprintf("read log: %v", err), http.StatusInternalServerError)
	}
}
