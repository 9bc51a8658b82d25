// Package server exposes a classification session and the issue workflow
// as a JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/classiflow/internal/issue"
	"github.com/koustreak/classiflow/internal/logger"
	"github.com/koustreak/classiflow/internal/session"
)

// Deps are the services the API fronts.
type Deps struct {
	Session  *session.Session
	Issues   *issue.Orchestrator
	Status   *issue.StatusPoller
	Reviewer *issue.Reviewer
}

// Server serves the classiflow API.
type Server struct {
	deps Deps
	log  *logger.Logger
}

// New creates a Server.
func New(deps Deps, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{deps: deps, log: log.Component("server")}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/tables", s.listTables)
	r.Get("/tables/{table}", s.getTable)
	r.Put("/selection", s.selectTable)
	r.Get("/classifications", s.listClassifications)
	r.Put("/tables/{table}/classification", s.classifyTable)
	r.Put("/tables/{table}/columns/{column}/classification", s.classifyColumn)
	r.Get("/notification", s.getNotification)
	r.Post("/reload", s.reload)

	r.Get("/projects/{project}/databases", s.listDatabases)
	r.Post("/checks", s.check)
	r.Post("/issues", s.createIssue)
	r.Get("/issues/{project}/{uid}/status", s.issueStatus)

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", logger.Fields{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs one line per request.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			fields := logger.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  chimw.GetReqID(r.Context()),
			}
			if ww.Status() >= http.StatusInternalServerError {
				log.Warn("request", fields)
				return
			}
			log.Info("request", fields)
		})
	}
}
