package dispatch

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/statusxml"
)

func TestCollectorClientPostSendsXMLBody(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g, err := model.NewGraph([]*model.Service{{Name: "svc", Type: model.TypeFile}})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	c := &CollectorClient{
		Snapshot: func() *statusxml.Document {
			return statusxml.Build(g, "id1", "1", "host", 0, 0, 30)
		},
	}

	err = c.Post(g.All()[0], model.Collector{URL: srv.URL}, model.Event{})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotContentType != "text/xml" {
		t.Fatalf("Content-Type = %q", gotContentType)
	}
	if len(gotBody) == 0 {
		t.Fatalf("expected a non-empty XML body")
	}
}

func TestCollectorClientPostErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &CollectorClient{Snapshot: func() *statusxml.Document { return &statusxml.Document{} }}
	err := c.Post(&model.Service{Name: "svc"}, model.Collector{URL: srv.URL}, model.Event{})
	if err == nil {
		t.Fatalf("expected an error for a 500 response")
	}
}
