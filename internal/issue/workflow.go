// Package issue turns a SQL statement into a database change issue on the
// change-management service and lets callers follow the issue's status.
//
// The creation workflow is a fixed chain of four remote calls:
//
//	sheet (SQL content) → plan (references the sheet) → issue (references the plan)
//	                                                   → rollout (references the plan)
//
// Each step's request is built from the previous steps' responses, so the
// chain is strictly sequential. A failed step aborts the rest. Resources
// created before the failure are left in place.
package issue

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/logger"
	"github.com/koustreak/classiflow/internal/remote"
)

// Service is the slice of the change-management API this package uses.
// *remote.Client implements it.
type Service interface {
	CreateSheet(ctx context.Context, project string, req remote.SheetRequest) (*remote.Sheet, error)
	CreatePlan(ctx context.Context, project string, req remote.PlanRequest) (*remote.Plan, error)
	CreateIssue(ctx context.Context, project string, req remote.IssueRequest) (*remote.Issue, error)
	CreateRollout(ctx context.Context, project string, req remote.RolloutRequest) (*remote.Rollout, error)
	GetIssue(ctx context.Context, project, uid string) (*remote.Issue, error)
	ListDatabases(ctx context.Context, projectID string) ([]remote.Database, error)
	Check(ctx context.Context, req remote.CheckRequest) (*remote.CheckResponse, error)
}

const (
	changeTypeMigrate   = "MIGRATE"
	issueTypeDBChange   = "DATABASE_CHANGE"
	sheetTypeUnset      = "TYPE_UNSPECIFIED"
	sheetEngineUnset    = "ENGINE_UNSPECIFIED"
	failedCreateMessage = "Failed to create issue"
)

// State is the position of a workflow run in the creation chain.
type State int

const (
	StateStart State = iota
	StateSheetCreated
	StatePlanCreated
	StateIssueCreated
	StateRolloutCreated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateSheetCreated:
		return "SHEET_CREATED"
	case StatePlanCreated:
		return "PLAN_CREATED"
	case StateIssueCreated:
		return "ISSUE_CREATED"
	case StateRolloutCreated:
		return "ROLLOUT_CREATED"
	default:
		return "FAILED"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name. Unknown names decode as StateFailed.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateStart; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	*s = StateFailed
	return nil
}

// Request is the user input for one workflow run.
type Request struct {
	Project  string `json:"project"`  // e.g. "projects/sample"
	Database string `json:"database"` // e.g. "instances/pg/databases/app"
	SQL      string `json:"sql"`
}

// Validate reports missing input. It never touches the network.
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Project) == "" {
		missing = append(missing, "project")
	}
	if strings.TrimSpace(r.Database) == "" {
		missing = append(missing, "database")
	}
	if strings.TrimSpace(r.SQL) == "" {
		missing = append(missing, "sql")
	}
	if len(missing) > 0 {
		return errs.Newf(errs.ErrKindInvalidInput, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Result is the outcome of a workflow run. Failures are reported here
// rather than as a returned error so callers can render them inline.
type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`

	State      State  `json:"state"`
	FailedStep string `json:"failedStep,omitempty"`

	Sheet   string        `json:"sheet,omitempty"`
	Plan    string        `json:"plan,omitempty"`
	Issue   *remote.Issue `json:"issue,omitempty"`
	Rollout string        `json:"rollout,omitempty"`
	Link    string        `json:"link,omitempty"`
}

// Err rebuilds the failure as an *errs.Error, or nil on success.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	kind := errs.ErrKindPipelineStepFailed
	if r.ErrorKind == errs.ErrKindInvalidInput.String() {
		kind = errs.ErrKindInvalidInput
	}
	return errs.New(kind, r.Error)
}

// run carries the identifiers produced so far.
type run struct {
	req     Request
	sheet   string
	plan    string
	issue   *remote.Issue
	rollout string
}

// step is one link of the chain. exec builds its request from run and
// records the returned identifier back into run.
type step struct {
	name    string
	reached State
	exec    func(ctx context.Context, r *run) error
}

// Orchestrator runs the issue creation workflow.
type Orchestrator struct {
	svc         Service
	consoleHost string
	newID       func() string
	log         *logger.Logger
}

// NewOrchestrator creates an Orchestrator. consoleHost is the base of the
// issue links handed back to users.
func NewOrchestrator(svc Service, consoleHost string, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		svc:         svc,
		consoleHost: strings.TrimRight(consoleHost, "/"),
		newID:       uuid.NewString,
		log:         log.Component("issue"),
	}
}

// Create runs the four steps in order and stops at the first failure.
// Invalid input fails before any remote call. ctx cancels the whole chain.
func (o *Orchestrator) Create(ctx context.Context, req Request) Result {
	if err := req.Validate(); err != nil {
		return Result{
			Message:   failedCreateMessage,
			Error:     err.Error(),
			ErrorKind: errs.KindOf(err).String(),
			State:     StateStart,
		}
	}

	log := o.log.With().Str("project", req.Project).Str("database", req.Database).Logger()
	r := &run{req: req}
	state := StateStart

	for _, s := range o.steps() {
		if err := ctx.Err(); err != nil {
			return o.fail(log, r, s.name, errs.Wrap(errs.ErrKindPipelineStepFailed, "workflow cancelled", err))
		}
		if err := s.exec(ctx, r); err != nil {
			if errs.KindOf(err) != errs.ErrKindPipelineStepFailed {
				err = errs.Wrap(errs.ErrKindPipelineStepFailed, s.name, err)
			}
			return o.fail(log, r, s.name, err)
		}
		state = s.reached
		log.Debug("workflow step done", logger.Fields{"step": s.name, "state": state.String()})
	}

	link := IssueLink(o.consoleHost, req.Project, r.issue.Name)
	log.Info("issue created", logger.Fields{"issue": r.issue.Name, "plan": r.plan, "rollout": r.rollout})

	return Result{
		Success: true,
		Message: fmt.Sprintf("Issue created successfully. View it here: %s", link),
		State:   state,
		Sheet:   r.sheet,
		Plan:    r.plan,
		Issue:   r.issue,
		Rollout: r.rollout,
		Link:    link,
	}
}

func (o *Orchestrator) fail(log *logger.Logger, r *run, stepName string, err error) Result {
	log.Error("issue workflow failed", err, logger.Fields{
		"step":  stepName,
		"sheet": r.sheet,
		"plan":  r.plan,
	})
	return Result{
		Message:    failedCreateMessage,
		Error:      err.Error(),
		ErrorKind:  errs.KindOf(err).String(),
		State:      StateFailed,
		FailedStep: stepName,
		Sheet:      r.sheet,
		Plan:       r.plan,
		Issue:      r.issue,
		Rollout:    r.rollout,
	}
}

// steps declares the chain. Each step reads only identifiers recorded by
// the steps before it.
func (o *Orchestrator) steps() []step {
	return []step{
		{name: "sheet", reached: StateSheetCreated, exec: o.createSheet},
		{name: "plan", reached: StatePlanCreated, exec: o.createPlan},
		{name: "issue", reached: StateIssueCreated, exec: o.createIssue},
		{name: "rollout", reached: StateRolloutCreated, exec: o.createRollout},
	}
}

func (o *Orchestrator) createSheet(ctx context.Context, r *run) error {
	sheet, err := o.svc.CreateSheet(ctx, r.req.Project, remote.SheetRequest{
		Content: base64.StdEncoding.EncodeToString([]byte(r.req.SQL)),
		Payload: remote.SheetPayload{
			Type:     sheetTypeUnset,
			Commands: []remote.SheetCommand{{Start: 1, End: 1}},
		},
		Engine: sheetEngineUnset,
	})
	if err != nil {
		return err
	}
	if sheet == nil || sheet.Name == "" {
		return errs.New(errs.ErrKindPipelineStepFailed, "sheet response has no name")
	}
	r.sheet = sheet.Name
	return nil
}

func (o *Orchestrator) createPlan(ctx context.Context, r *run) error {
	plan, err := o.svc.CreatePlan(ctx, r.req.Project, remote.PlanRequest{
		Steps: []remote.PlanStep{{
			Specs: []remote.PlanSpec{{
				ID: o.newID(),
				ChangeDatabaseConfig: remote.ChangeDatabaseConfig{
					Target: r.req.Database,
					Type:   changeTypeMigrate,
					Sheet:  r.sheet,
				},
			}},
		}},
		Title:       "Change database " + r.req.Database,
		Description: changeTypeMigrate,
	})
	if err != nil {
		return err
	}
	if plan == nil || plan.Name == "" {
		return errs.New(errs.ErrKindPipelineStepFailed, "plan response has no name")
	}
	r.plan = plan.Name
	return nil
}

func (o *Orchestrator) createIssue(ctx context.Context, r *run) error {
	issue, err := o.svc.CreateIssue(ctx, r.req.Project, remote.IssueRequest{
		Approvers:         []string{},
		ApprovalTemplates: []string{},
		Subscribers:       []string{},
		Title:             "Issue: Change database " + r.req.Database,
		Description:       "",
		Type:              issueTypeDBChange,
		Plan:              r.plan,
	})
	if err != nil {
		return err
	}
	if issue == nil || issue.Name == "" {
		return errs.New(errs.ErrKindPipelineStepFailed, "issue response has no name")
	}
	r.issue = issue
	return nil
}

// createRollout references the plan, not the issue.
func (o *Orchestrator) createRollout(ctx context.Context, r *run) error {
	rollout, err := o.svc.CreateRollout(ctx, r.req.Project, remote.RolloutRequest{Plan: r.plan})
	if err != nil {
		return err
	}
	if rollout == nil || rollout.Name == "" {
		return errs.New(errs.ErrKindPipelineStepFailed, "rollout response has no name")
	}
	r.rollout = rollout.Name
	return nil
}
