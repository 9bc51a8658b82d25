// Package remotetest provides an in-memory change-management service for
// tests. It serves the same routes the remote client calls, records every
// request, and lets a test force any route to fail.
package remotetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/classiflow/internal/classification"
	"github.com/koustreak/classiflow/internal/metadata"
	"github.com/koustreak/classiflow/internal/remote"
)

// Route keys used by Fail and Omit.
const (
	RouteGetMetadata     = "GET /api/databasemeta"
	RoutePatchMetadata   = "PATCH /api/databasemeta"
	RouteClassifications = "GET /api/classifications"
	RouteDatabases       = "GET /api/databases"
	RouteChecks          = "POST /api/checks"
	RouteSheets          = "POST /api/sheets"
	RoutePlans           = "POST /api/plans"
	RouteIssues          = "POST /api/issues"
	RouteRollouts        = "POST /api/rollouts"
	RouteGetIssue        = "GET /api/issues"
)

// Request is one recorded request.
type Request struct {
	Route string
	Path  string
	Body  []byte
}

// Server is a fake change-management service.
type Server struct {
	*httptest.Server

	mu              sync.Mutex
	metadata        metadata.DatabaseMetadata
	classifications []classification.Config
	databases       map[string][]remote.Database
	advices         []json.RawMessage
	issues          map[string]remote.Issue
	fail            map[string]int
	omit            map[string]bool
	requests        []Request
	seq             int
}

// New starts a Server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		databases: map[string][]remote.Database{},
		issues:    map[string]remote.Issue{},
		fail:      map[string]int{},
		omit:      map[string]bool{},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// --- Setup ---

// SetMetadata replaces the stored database metadata.
func (s *Server) SetMetadata(md metadata.DatabaseMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = md
}

// SetMetadataJSON replaces the stored database metadata from raw JSON.
func (s *Server) SetMetadataJSON(t testing.TB, raw string) {
	t.Helper()
	var md metadata.DatabaseMetadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		t.Fatalf("remotetest: bad metadata: %v", err)
	}
	s.SetMetadata(md)
}

// Metadata returns the stored database metadata.
func (s *Server) Metadata() metadata.DatabaseMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

// SetClassifications replaces the classification configs.
func (s *Server) SetClassifications(cfgs ...classification.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifications = cfgs
}

// SetDatabases sets the databases listed for a project short id.
func (s *Server) SetDatabases(projectID string, dbs ...remote.Database) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.databases[projectID] = dbs
}

// SetAdvices sets the advices returned by every check.
func (s *Server) SetAdvices(advices ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advices = nil
	for _, a := range advices {
		s.advices = append(s.advices, json.RawMessage(a))
	}
}

// SetIssueStatus changes the status of a created issue.
func (s *Server) SetIssueStatus(uid, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue := s.issues[uid]
	issue.Status = status
	s.issues[uid] = issue
}

// Fail makes route answer with status until cleared with status 0.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.fail, route)
		return
	}
	s.fail[route] = status
}

// Omit makes a creation route answer 200 with an empty object.
func (s *Server) Omit(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omit[route] = true
}

// --- Inspection ---

// Requests returns the recorded requests in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsFor returns the recorded requests for one route.
func (s *Server) RequestsFor(route string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Route == route {
			out = append(out, r)
		}
	}
	return out
}

// --- Routes ---

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/databasemeta", s.guard(RouteGetMetadata, s.getMetadata))
	r.Patch("/api/databasemeta", s.guard(RoutePatchMetadata, s.patchMetadata))
	r.Get("/api/classifications", s.guard(RouteClassifications, s.getClassifications))
	r.Get("/api/databases/{projectID}", s.guard(RouteDatabases, s.listDatabases))
	r.Post("/api/checks/", s.guard(RouteChecks, s.check))
	r.Post("/api/sheets/{project}", s.guard(RouteSheets, s.create("sheets")))
	r.Post("/api/plans/{project}", s.guard(RoutePlans, s.create("plans")))
	r.Post("/api/issues/{project}", s.guard(RouteIssues, s.createIssue))
	r.Post("/api/rollouts/{project}", s.guard(RouteRollouts, s.create("rollouts")))
	r.Get("/api/issues/{project}/{uid}", s.guard(RouteGetIssue, s.getIssue))

	return r
}

// guard records the request and applies any forced failure or omission.
func (s *Server) guard(route string, next func(http.ResponseWriter, *http.Request, []byte)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.requests = append(s.requests, Request{Route: route, Path: r.URL.EscapedPath(), Body: body})
		status := s.fail[route]
		omit := s.omit[route]
		s.mu.Unlock()

		if status != 0 {
			http.Error(w, "forced failure", status)
			return
		}
		if omit {
			writeJSON(w, map[string]any{})
			return
		}
		next(w, r, body)
	}
}

func (s *Server) getMetadata(w http.ResponseWriter, _ *http.Request, _ []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, s.metadata)
}

func (s *Server) patchMetadata(w http.ResponseWriter, _ *http.Request, body []byte) {
	var req metadata.PatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	for _, incoming := range req.SchemaConfigs {
		replaced := false
		for i, existing := range s.metadata.SchemaConfigs {
			if existing.Name == incoming.Name {
				s.metadata.SchemaConfigs[i] = incoming
				replaced = true
			}
		}
		if !replaced {
			s.metadata.SchemaConfigs = append(s.metadata.SchemaConfigs, incoming)
		}
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{})
}

func (s *Server) getClassifications(w http.ResponseWriter, _ *http.Request, _ []byte) {
	s.mu.Lock()
	cfgs := s.classifications
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"value": map[string]any{
			"dataClassificationSettingValue": map[string]any{"configs": cfgs},
		},
	})
}

func (s *Server) listDatabases(w http.ResponseWriter, r *http.Request, _ []byte) {
	projectID := param(r, "projectID")
	s.mu.Lock()
	dbs := s.databases[projectID]
	s.mu.Unlock()
	if dbs == nil {
		dbs = []remote.Database{}
	}
	writeJSON(w, map[string]any{"databases": dbs})
}

func (s *Server) check(w http.ResponseWriter, _ *http.Request, _ []byte) {
	s.mu.Lock()
	advices := s.advices
	s.mu.Unlock()
	if advices == nil {
		advices = []json.RawMessage{}
	}
	writeJSON(w, map[string]any{"advices": advices})
}

func (s *Server) create(resource string) func(http.ResponseWriter, *http.Request, []byte) {
	return func(w http.ResponseWriter, r *http.Request, _ []byte) {
		name := fmt.Sprintf("%s/%s/%d", param(r, "project"), resource, s.next())
		writeJSON(w, map[string]any{"name": name})
	}
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request, body []byte) {
	var req remote.IssueRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	uid := fmt.Sprint(s.next())
	issue := remote.Issue{
		Name:   param(r, "project") + "/issues/" + uid,
		UID:    uid,
		Title:  req.Title,
		Status: "OPEN",
		Plan:   req.Plan,
	}

	s.mu.Lock()
	s.issues[uid] = issue
	s.mu.Unlock()

	writeJSON(w, issue)
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request, _ []byte) {
	s.mu.Lock()
	issue, ok := s.issues[param(r, "uid")]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "issue not found", http.StatusNotFound)
		return
	}
	writeJSON(w, issue)
}

func (s *Server) next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return 100 + s.seq
}

// param returns the unescaped URL parameter; chi matches on the raw path,
// so "projects%2Fsample" arrives still escaped.
func param(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}
