package server

import (
	"net/http"

	"github.com/koustreak/classiflow/internal/classification"
	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/issue"
	"github.com/koustreak/classiflow/internal/metadata"
	"github.com/koustreak/classiflow/internal/session"
)

// --- session ---

type tablesResponse struct {
	Tables   []metadata.Table `json:"tables"`
	Selected string           `json:"selected,omitempty"`
}

func (s *Server) listTables(w http.ResponseWriter, _ *http.Request) {
	tables := s.deps.Session.Tables()
	if tables == nil {
		tables = []metadata.Table{}
	}
	resp := tablesResponse{Tables: tables}
	if sel, ok := s.deps.Session.Selected(); ok {
		resp.Selected = sel.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	name := param(r, "table")
	t, ok := s.deps.Session.Table(name)
	if !ok {
		writeError(w, errs.Newf(errs.ErrKindNotFound, "table %q not found", name))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type selectRequest struct {
	Table string `json:"table"`
}

func (s *Server) selectTable(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.deps.Session.Select(r.Context(), req.Table)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type classificationView struct {
	classification.Classification
	Display    string `json:"display"`
	Assignable bool   `json:"assignable"`
}

type classificationsResponse struct {
	Levels          []classification.Level `json:"levels"`
	Classifications []classificationView   `json:"classifications"`
}

func (s *Server) listClassifications(w http.ResponseWriter, _ *http.Request) {
	cat := s.deps.Session.Catalog()
	resp := classificationsResponse{
		Levels:          cat.Levels(),
		Classifications: make([]classificationView, 0, cat.Len()),
	}
	if resp.Levels == nil {
		resp.Levels = []classification.Level{}
	}
	for _, cl := range cat.All() {
		resp.Classifications = append(resp.Classifications, classificationView{
			Classification: cl,
			Display:        cat.Display(cl),
			Assignable:     cl.Assignable(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type classifyRequest struct {
	ClassificationID string `json:"classificationId"`
}

func (s *Server) classifyTable(w http.ResponseWriter, r *http.Request) {
	s.classify(w, r, metadata.Edit{Table: param(r, "table")})
}

func (s *Server) classifyColumn(w http.ResponseWriter, r *http.Request) {
	s.classify(w, r, metadata.Edit{Table: param(r, "table"), Column: param(r, "column")})
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request, edit metadata.Edit) {
	var req classifyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	edit.ClassificationID = req.ClassificationID

	n, err := s.deps.Session.UpdateClassification(r.Context(), edit)
	if err != nil {
		if n.Message == "" {
			writeError(w, err)
			return
		}
		writeJSON(w, statusFor(errs.KindOf(err)), notificationBody(n))
		return
	}
	writeJSON(w, http.StatusOK, notificationBody(n))
}

type notificationResponse struct {
	Success      bool                  `json:"success"`
	Message      string                `json:"message"`
	Notification session.Notification `json:"notification"`
}

func notificationBody(n session.Notification) notificationResponse {
	return notificationResponse{Success: n.Success(), Message: n.Message, Notification: n}
}

func (s *Server) getNotification(w http.ResponseWriter, _ *http.Request) {
	n, ok := s.deps.Session.Notification()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Session.Load(r.Context()); err != nil {
		n, _ := s.deps.Session.Notification()
		writeJSON(w, statusFor(errs.KindOf(err)), notificationBody(n))
		return
	}
	s.listTables(w, r)
}

// --- issues ---

func (s *Server) listDatabases(w http.ResponseWriter, r *http.Request) {
	dbs, err := s.deps.Reviewer.Databases(r.Context(), projectName(param(r, "project")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": dbs})
}

type checkRequest struct {
	Project   string `json:"project"`
	Database  string `json:"database"`
	Statement string `json:"statement"`
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	advices, err := s.deps.Reviewer.Check(r.Context(), projectName(req.Project), req.Database, req.Statement)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"advices": advices})
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var req issue.Request
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.Project = projectName(req.Project)

	res := s.deps.Issues.Create(r.Context(), req)
	if !res.Success {
		writeJSON(w, statusFor(errs.KindOf(res.Err())), res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) issueStatus(w http.ResponseWriter, r *http.Request) {
	project := projectName(param(r, "project"))
	uid := param(r, "uid")
	status, err := s.deps.Status.FetchStatus(r.Context(), project, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"project": project, "uid": uid, "status": status})
}
