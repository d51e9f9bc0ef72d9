// Package httpd implements the control surface, spec.md §4.I: ACL-gated,
// Basic Auth-protected HTTP(S) server exposing status queries and action
// requests, grounded on the teacher's cmd/cmonit/main.go server wiring
// (http.NewServeMux, the basicAuth wrapper, ListenAndServe/ListenAndServeTLS)
// generalized from a one-shot CLI tool into the always-on control surface
// the agent itself exposes.
package httpd

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/scheduler"
	"github.com/ocochard/monit/internal/statusxml"
)

// PasswordFormat mirrors the teacher's -web-password-format flag values.
type PasswordFormat string

const (
	PasswordPlain  PasswordFormat = "plain"
	PasswordBcrypt PasswordFormat = "bcrypt"
)

// Auth is the control surface's single HTTP Basic Auth credential pair.
// An empty Username disables authentication (the teacher's "auth
// optional" default, logged loudly rather than silently accepted).
type Auth struct {
	Username string
	Password string
	Format   PasswordFormat
}

func (a Auth) check(user, pass string) bool {
	if a.Username == "" {
		return true
	}
	if user != a.Username {
		return false
	}
	if a.Format == PasswordBcrypt {
		return bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(pass)) == nil
	}
	return pass == a.Password
}

// Server is the control surface, spec.md §4.I.
type Server struct {
	Graph      *model.Graph
	Scheduler  *scheduler.Scheduler
	Auth       Auth
	ACL        []*net.IPNet // empty => accept all peers
	TLSCert    string
	TLSKey     string
	ServerID   string
	Version    string
	Hostname   string
	ControlFile string
	Started    time.Time
	LogPath    string
}

// New builds a Server wired to g and sched; the scheduler's Wake and
// RequestActionDrain are invoked from the /_runtime and /_doaction
// handlers respectively, spec.md §4.I "signals the validation loop".
func New(g *model.Graph, sched *scheduler.Scheduler, auth Auth) *Server {
	return &Server{
		Graph:     g,
		Scheduler: sched,
		Auth:      auth,
		Started:   time.Now(),
	}
}

// graph returns the Graph currently in effect. When a Scheduler is wired
// it defers to Scheduler.CurrentGraph so a SIGHUP config reload (spec.md
// §5) is visible to the control surface as soon as it takes effect,
// rather than serving stale service data out of the Graph snapshot taken
// at New.
func (s *Server) graph() *model.Graph {
	if s.Scheduler != nil {
		return s.Scheduler.CurrentGraph()
	}
	return s.Graph
}

// Handler builds the ServeMux for this Server, wrapped in ACL and auth
// middleware, the generalization of the teacher's webMux/basicAuth
// wiring in cmd/cmonit/main.go.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/_status", s.handleStatus)
	mux.HandleFunc("/_status2", s.handleStatus2)
	mux.HandleFunc("/_runtime", s.handleRuntime)
	mux.HandleFunc("/_ping", s.handlePing)
	mux.HandleFunc("/_getid", s.handleGetID)
	mux.HandleFunc("/_about", s.handleAbout)
	mux.HandleFunc("/_viewlog", s.handleViewLog)
	mux.HandleFunc("/_doaction", s.handleDoAction)
	mux.HandleFunc("/service/", s.handleService)

	var h http.Handler = mux
	h = s.basicAuth(h)
	h = s.aclFilter(h)
	return h
}

// ListenAndServe starts the control surface on addr, choosing TLS when
// both TLSCert and TLSKey are set (spec.md §4.I "HTTP/HTTPS").
func (s *Server) ListenAndServe(addr string) error {
	handler := s.Handler()
	if s.Auth.Username == "" {
		log.Printf("[WARNING] httpd: no username configured, authentication disabled")
	}
	if s.TLSCert != "" && s.TLSKey != "" {
		log.Printf("[INFO] httpd: listening on %s (TLS)", addr)
		return http.ListenAndServeTLS(addr, s.TLSCert, s.TLSKey, handler)
	}
	log.Printf("[WARNING] httpd: TLS disabled, listening on %s (plain HTTP)", addr)
	return http.ListenAndServe(addr, handler)
}

// aclFilter rejects peers outside the configured network ranges, spec.md
// §4.I "non-matching peers are logged and closed". An empty ACL accepts
// every peer (the UNIX-peer-always-allowed clause has no analogue here:
// this server only ever listens on TCP).
func (s *Server) aclFilter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.ACL) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		for _, network := range s.ACL {
			if ip != nil && network.Contains(ip) {
				next.ServeHTTP(w, r)
				return
			}
		}
		log.Printf("[WARNING] httpd: rejected peer %s: not in ACL", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
	})
}

// basicAuth mirrors the teacher's basicAuth wrapper, generalized to the
// plain/bcrypt credential pair of Auth.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Auth.Username == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !s.Auth.check(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="monit"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "pong")
}

func (s *Server) handleGetID(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, s.ServerID)
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "monit %s\n", s.Version)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><h1>monit %s on %s</h1><ul>\n", s.Version, s.Hostname)
	for _, svc := range s.graph().All() {
		fmt.Fprintf(w, "<li><a href=\"/service/%s\">%s</a> (%s)</li>\n", svc.Name, svc.Name, svc.Type)
	}
	fmt.Fprint(w, "</ul></body></html>")
}

func (s *Server) buildDocument() *statusxml.Document {
	uptime := int64(time.Since(s.Started).Seconds())
	poll := 0
	if s.Scheduler != nil {
		poll = int(s.Scheduler.PollInterval.Seconds())
	}
	return statusxml.Build(s.graph(), s.ServerID, s.Version, s.Hostname, s.Started.Unix(), uptime, poll)
}

// handleStatus serves spec.md §4.I's `/_status?format=xml|text&level=full|summary`.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc := s.buildDocument()
	if r.URL.Query().Get("format") == "xml" {
		s.writeXML(w, doc)
		return
	}
	level := r.URL.Query().Get("level")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, svc := range doc.Services {
		if level == "summary" {
			fmt.Fprintf(w, "%-30s %s\n", svc.Name, statusWord(svc.Status))
			continue
		}
		fmt.Fprintf(w, "%s\n  status: %s\n  monitored: %v\n", svc.Name, statusWord(svc.Status), svc.Monitor != 0)
	}
}

// handleStatus2 serves spec.md §4.I's `/_status2` with the same document
// as `/_status`: services are flat <service> elements under <monit>
// (statusxml.Document's Services field tag); there is no <services>
// wrapper and no <servicegroups> block.
func (s *Server) handleStatus2(w http.ResponseWriter, r *http.Request) {
	s.writeXML(w, s.buildDocument())
}

func (s *Server) writeXML(w http.ResponseWriter, doc *statusxml.Document) {
	body, err := statusxml.Marshal(doc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Write(body)
}

func statusWord(code int) string {
	if code == 0 {
		return "OK"
	}
	return "Failed"
}

// handleRuntime reports daemon-wide state on GET, and preempts the
// validation loop's sleep on POST, spec.md §5 "wake-up signal from 4.I".
func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		if s.Scheduler != nil {
			s.Scheduler.Wake()
		}
		fmt.Fprint(w, "ok")
		return
	}
	fmt.Fprintf(w, "uptime: %s\npoll: %s\n", time.Since(s.Started), s.Scheduler.PollInterval)
}

// handleDoAction handles `POST /_doaction` with form
// `service=<name>&action=<verb>&token=<opaque>`, spec.md §4.I.
func (s *Server) handleDoAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	s.enqueueAction(w, r.Form.Get("service"), r.Form.Get("action"))
}

// handleService serves `/service/<name>` detail pages (GET) and accepts
// per-service POST actions, spec.md §4.I's "/<service-name>" route.
func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/service/")
	if name == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		s.enqueueAction(w, name, r.Form.Get("action"))
		return
	}

	svc, ok := s.graph().Lookup(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><h1>%s</h1><p>type: %s</p><p>monitor: %d</p></body></html>",
		svc.Name, svc.Type, svc.Monitor)
}

func (s *Server) enqueueAction(w http.ResponseWriter, serviceName, actionName string) {
	svc, ok := s.graph().Lookup(serviceName)
	if !ok {
		http.Error(w, "unknown service", http.StatusNotFound)
		return
	}
	action, err := model.ParseAction(actionName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := svc.SetPending(action); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if s.Scheduler != nil {
		s.Scheduler.RequestActionDrain()
	}
	fmt.Fprint(w, "ok")
}
