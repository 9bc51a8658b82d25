package cli

import (
	"context"
	"os"

	"github.com/koustreak/classiflow/internal/config"
	"github.com/koustreak/classiflow/internal/issue"
	"github.com/koustreak/classiflow/internal/logger"
	"github.com/koustreak/classiflow/internal/remote"
	"github.com/koustreak/classiflow/internal/selection"
	"github.com/koustreak/classiflow/internal/server"
	"github.com/koustreak/classiflow/internal/session"
)

// app is the wired object graph for one command invocation.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	client   *remote.Client
	store    selection.Store
	session  *session.Session
	issues   *issue.Orchestrator
	status   *issue.StatusPoller
	reviewer *issue.Reviewer
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	client := remote.New(&remote.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	}, log)

	store, err := selection.Open(ctx, cfg.Selection)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		log:    log,
		client: client,
		store:  store,
		session: session.New(client, session.Options{
			Schema:          cfg.Schema,
			NotificationTTL: cfg.NotificationTTL,
			Store:           store,
			Logger:          log,
		}),
		issues:   issue.NewOrchestrator(client, cfg.Console.Host, log),
		status:   issue.NewStatusPoller(client),
		reviewer: issue.NewReviewer(client),
	}, nil
}

func (a *app) server() *server.Server {
	return server.New(server.Deps{
		Session:  a.session,
		Issues:   a.issues,
		Status:   a.status,
		Reviewer: a.reviewer,
	}, a.log)
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing selection store", logger.Fields{"error": err.Error()})
	}
}
