package httpd

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestViewLogServesTheConfiguredFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitd.log")
	if err := os.WriteFile(path, []byte("line one\nline two\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := newTestServer(t, Auth{})
	s.LogPath = path

	req := httptest.NewRequest(http.MethodGet, "/_viewlog", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "line two") {
		t.Fatalf("body = %q, want it to contain the log contents", w.Body.String())
	}
}

func TestViewLogWithoutALogPathIsNotFound(t *testing.T) {
	s := newTestServer(t, Auth{})
	req := httptest.NewRequest(http.MethodGet, "/_viewlog", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestViewLogTailsOnlyTheLastBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.log")
	body := strings.Repeat("x", viewLogTailBytes+100) + "TAIL-MARKER"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := newTestServer(t, Auth{})
	s.LogPath = path

	req := httptest.NewRequest(http.MethodGet, "/_viewlog", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "TAIL-MARKER") {
		t.Fatalf("expected the tail marker in the truncated response")
	}
	if len(w.Body.String()) > viewLogTailBytes+50 {
		t.Fatalf("body too long (%d bytes), expected it capped near viewLogTailBytes", len(w.Body.String()))
	}
}
