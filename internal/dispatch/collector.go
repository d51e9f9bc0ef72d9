package dispatch

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/statusxml"
)

// CollectorClient posts one service's current status to an upstream
// aggregator (M/Monit-style), satisfying event.UpstreamCollector. Each
// Post carries the full current Document rather than a single event,
// matching the wire shape the teacher's parser (internal/parser/xml.go)
// expects to receive.
type CollectorClient struct {
	// Snapshot builds the document to send; cmd/monitd wires this to
	// statusxml.Build against the live Graph so every POST reflects the
	// service's latest Info, not just the triggering event.
	Snapshot func() *statusxml.Document
}

// Post satisfies event.UpstreamCollector.
func (c *CollectorClient) Post(svc *model.Service, collector model.Collector, ev model.Event) error {
	doc := c.Snapshot()
	body, err := statusxml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("dispatch: collector post: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, collector.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dispatch: collector post: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")
	if collector.Username != "" {
		req.SetBasicAuth(collector.Username, collector.Password)
	}

	timeout := time.Duration(collector.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: collector.TLSSkipVerify},
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: collector post %s: %w", collector.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch: collector %s returned status %d", collector.URL, resp.StatusCode)
	}
	return nil
}
