package issue

import (
	"context"
	"encoding/json"

	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/remote"
)

// Reviewer runs the lint-only SQL review and lists candidate databases,
// the two reads that precede issue creation.
type Reviewer struct {
	svc Service
}

// NewReviewer creates a Reviewer.
func NewReviewer(svc Service) *Reviewer {
	return &Reviewer{svc: svc}
}

// Databases lists the databases of project ("projects/<id>").
func (r *Reviewer) Databases(ctx context.Context, project string) ([]remote.Database, error) {
	id := ProjectID(project)
	if id == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "project is required")
	}
	dbs, err := r.svc.ListDatabases(ctx, id)
	if err != nil {
		return nil, err
	}
	if dbs == nil {
		dbs = []remote.Database{}
	}
	return dbs, nil
}

// Check reviews sql against database without creating anything. The
// project, database and sql must all be set; nothing is sent otherwise.
// The advices are returned verbatim.
func (r *Reviewer) Check(ctx context.Context, project, database, sql string) ([]json.RawMessage, error) {
	req := Request{Project: project, Database: database, SQL: sql}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res, err := r.svc.Check(ctx, remote.CheckRequest{Name: database, Statement: sql})
	if err != nil {
		return nil, err
	}
	if res.Advices == nil {
		return []json.RawMessage{}, nil
	}
	return res.Advices, nil
}
