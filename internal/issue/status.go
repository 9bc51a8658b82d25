package issue

import (
	"context"

	"github.com/koustreak/classiflow/internal/errs"
)

// StatusPoller re-reads an issue's status on demand. There is no built-in
// interval; every call is one read.
type StatusPoller struct {
	svc Service
}

// NewStatusPoller creates a StatusPoller.
func NewStatusPoller(svc Service) *StatusPoller {
	return &StatusPoller{svc: svc}
}

// FetchStatus returns the service's current status string verbatim
// ("OPEN", "DONE", or whatever the service reports).
func (p *StatusPoller) FetchStatus(ctx context.Context, project, uid string) (string, error) {
	if project == "" || uid == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "project and issue uid are required")
	}
	issue, err := p.svc.GetIssue(ctx, project, uid)
	if err != nil {
		return "", err
	}
	return issue.Status, nil
}
