// Package remote is the JSON/HTTP client for the change-management service.
//
// Every method performs exactly one request; there is no retry. Failures
// come back as *errs.Error whose kind is chosen by the calling operation:
// FetchFailed for reads, PatchFailed for the metadata write and
// PipelineStepFailed for resource creation. StatusCode recovers the HTTP
// status of a non-2xx response.
//
// Usage:
//
//	c := remote.New(remote.DefaultConfig("http://localhost:3000"), log)
//	md, err := c.GetDatabaseMetadata(ctx)
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/koustreak/classiflow/internal/classification"
	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/logger"
	"github.com/koustreak/classiflow/internal/metadata"
)

// Config holds the settings needed to talk to the service.
type Config struct {
	// BaseURL is the service root, e.g. "http://localhost:3000".
	BaseURL string

	// Token is sent as a bearer token when non-empty.
	Token string

	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration
}

// DefaultConfig returns a config for baseURL with a 30s request timeout.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Client talks to the change-management service.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

// New creates a Client. A nil log discards client logs.
func New(cfg *Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log.Component("remote"),
	}
}

// --- Metadata and classifications ---

// GetDatabaseMetadata fetches the schema tree and stored schema configs.
func (c *Client) GetDatabaseMetadata(ctx context.Context) (*metadata.DatabaseMetadata, error) {
	var md metadata.DatabaseMetadata
	if err := c.do(ctx, http.MethodGet, "/api/databasemeta", nil, &md, errs.ErrKindFetchFailed); err != nil {
		return nil, err
	}
	return &md, nil
}

// PatchDatabaseMetadata persists a config patch. Only the status matters.
func (c *Client) PatchDatabaseMetadata(ctx context.Context, req metadata.PatchRequest) error {
	return c.do(ctx, http.MethodPatch, "/api/databasemeta", req, nil, errs.ErrKindPatchFailed)
}

// GetClassificationConfig fetches the first data classification config.
func (c *Client) GetClassificationConfig(ctx context.Context) (classification.Config, error) {
	var setting classificationSetting
	if err := c.do(ctx, http.MethodGet, "/api/classifications", nil, &setting, errs.ErrKindFetchFailed); err != nil {
		return classification.Config{}, err
	}
	configs := setting.Value.DataClassificationSettingValue.Configs
	if len(configs) == 0 {
		return classification.Config{}, errs.New(errs.ErrKindFetchFailed, "classification setting has no configs")
	}
	return configs[0], nil
}

// --- Databases and checks ---

// ListDatabases lists the databases of a project by its short id.
func (c *Client) ListDatabases(ctx context.Context, projectID string) ([]Database, error) {
	var out databaseList
	path := "/api/databases/" + url.PathEscape(projectID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, errs.ErrKindFetchFailed); err != nil {
		return nil, err
	}
	return out.Databases, nil
}

// Check runs a lint-only review of a statement against a database.
func (c *Client) Check(ctx context.Context, req CheckRequest) (*CheckResponse, error) {
	var out CheckResponse
	if err := c.do(ctx, http.MethodPost, "/api/checks/", req, &out, errs.ErrKindFetchFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Issue pipeline resources ---

// CreateSheet creates a content sheet in project.
func (c *Client) CreateSheet(ctx context.Context, project string, req SheetRequest) (*Sheet, error) {
	var out Sheet
	if err := c.do(ctx, http.MethodPost, projectPath("sheets", project), req, &out, errs.ErrKindPipelineStepFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePlan creates a change plan in project.
func (c *Client) CreatePlan(ctx context.Context, project string, req PlanRequest) (*Plan, error) {
	var out Plan
	if err := c.do(ctx, http.MethodPost, projectPath("plans", project), req, &out, errs.ErrKindPipelineStepFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateIssue creates an issue in project.
func (c *Client) CreateIssue(ctx context.Context, project string, req IssueRequest) (*Issue, error) {
	var out Issue
	if err := c.do(ctx, http.MethodPost, projectPath("issues", project), req, &out, errs.ErrKindPipelineStepFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRollout creates a rollout in project.
func (c *Client) CreateRollout(ctx context.Context, project string, req RolloutRequest) (*Rollout, error) {
	var out Rollout
	if err := c.do(ctx, http.MethodPost, projectPath("rollouts", project), req, &out, errs.ErrKindPipelineStepFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetIssue fetches an issue by project and uid.
func (c *Client) GetIssue(ctx context.Context, project, uid string) (*Issue, error) {
	var out Issue
	path := projectPath("issues", project) + "/" + url.PathEscape(uid)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, errs.ErrKindFetchFailed); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- internal ---

// projectPath mirrors encodeURIComponent: "projects/x" becomes "projects%2Fx".
func projectPath(resource, project string) string {
	return "/api/" + resource + "/" + url.PathEscape(project)
}

// do sends one JSON request and decodes the response into out when non-nil.
// Every failure is reported with the given kind.
func (c *Client) do(ctx context.Context, method, path string, body, out any, kind errs.ErrKind) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, op+": encode request", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, op+": build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(kind, op, err)
	}
	defer resp.Body.Close()

	c.log.Debug("remote call", logger.Fields{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return mapStatus(kind, op, resp.StatusCode, snippet)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(kind, op+": decode response", err)
	}
	return nil
}

// StatusError is the cause attached to errors produced by a non-2xx response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// StatusCode returns the HTTP status behind err, or 0 when err did not come
// from a non-2xx response.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// mapStatus wraps a non-2xx response into an error of the operation's kind.
func mapStatus(kind errs.ErrKind, op string, status int, body []byte) *errs.Error {
	return errs.Wrap(kind, op, &StatusError{Status: status, Body: strings.TrimSpace(string(body))})
}
