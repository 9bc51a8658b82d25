// Package session owns the in-memory view of one classification session:
// the merged tables, the classification catalog, the selected table and the
// current notification. The view is rebuilt wholesale on every load.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koustreak/classiflow/internal/classification"
	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/logger"
	"github.com/koustreak/classiflow/internal/metadata"
	"github.com/koustreak/classiflow/internal/selection"
	"golang.org/x/sync/errgroup"
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 3 * time.Second

const loadFailedMessage = "Failed to load data"

// Remote is the part of the change-management service a session reads and
// writes. *remote.Client implements it.
type Remote interface {
	GetDatabaseMetadata(ctx context.Context) (*metadata.DatabaseMetadata, error)
	PatchDatabaseMetadata(ctx context.Context, req metadata.PatchRequest) error
	GetClassificationConfig(ctx context.Context) (classification.Config, error)
}

// Options configures a Session. Zero values pick the defaults.
type Options struct {
	Schema          string
	NotificationTTL time.Duration
	Store           selection.Store
	Logger          *logger.Logger
}

// Snapshot is one consistent result of a load.
type Snapshot struct {
	Tables   []metadata.Table
	Catalog  *classification.Catalog
	LoadedAt time.Time
}

// Session is safe for concurrent use. Classification edits are serialized:
// a second edit while one is running fails with errs.ErrKindBusy.
type Session struct {
	remote Remote
	store  selection.Store
	schema string
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time

	editing atomic.Bool
	loadSeq atomic.Uint64

	mu        sync.RWMutex
	committed uint64 // sequence of the load that wrote snap
	snap      Snapshot
	selected string
	notice   *Notification
}

// New creates a Session with an empty snapshot. Call Load to populate it.
func New(r Remote, opts Options) *Session {
	if opts.Schema == "" {
		opts.Schema = metadata.DefaultSchema
	}
	if opts.NotificationTTL <= 0 {
		opts.NotificationTTL = DefaultNotificationTTL
	}
	if opts.Store == nil {
		opts.Store = selection.NewMemory()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Session{
		remote: r,
		store:  opts.Store,
		schema: opts.Schema,
		ttl:    opts.NotificationTTL,
		log:    opts.Logger.Component("session"),
		now:    time.Now,
		snap:   Snapshot{Catalog: classification.NewCatalog(classification.Config{})},
	}
}

// Load fetches the schema metadata and the classification catalog
// concurrently and replaces the snapshot. On failure the previous snapshot
// is kept and an error notification is raised. When loads overlap, only
// the most recently started one that completes is kept; an older load
// finishing afterwards is discarded.
func (s *Session) Load(ctx context.Context) error {
	return s.load(ctx, false)
}

func (s *Session) load(ctx context.Context, preserveSelection bool) error {
	seq := s.loadSeq.Add(1)

	var (
		md    *metadata.DatabaseMetadata
		clCfg classification.Config
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		md, err = s.remote.GetDatabaseMetadata(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		clCfg, err = s.remote.GetClassificationConfig(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.Error("load failed", err, nil)
		if !s.superseded(seq) {
			s.notify(KindError, loadFailedMessage)
		}
		return err
	}

	tables, ok := metadata.MergeDatabase(md, s.schema)
	if !ok {
		s.log.Warn("schema not found", logger.Fields{"schema": s.schema})
	}
	snap := Snapshot{
		Tables:   tables,
		Catalog:  classification.NewCatalog(clCfg),
		LoadedAt: s.now(),
	}

	var stored string
	if !preserveSelection {
		var err error
		if stored, err = s.store.Load(ctx); err != nil {
			s.log.Warn("could not read stored selection", logger.Fields{"error": err.Error()})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.committed {
		s.log.Debug("discarding stale load", logger.Fields{"seq": seq, "committed": s.committed})
		return nil
	}
	s.committed = seq
	s.snap = snap
	s.selected = resolveSelection(tables, preserveSelection, s.selected, stored)

	s.log.Debug("loaded", logger.Fields{
		"tables":          len(tables),
		"classifications": snap.Catalog.Len(),
		"selected":        s.selected,
	})
	return nil
}

// superseded reports whether a load started after seq has already
// committed.
func (s *Session) superseded(seq uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return seq < s.committed
}

// resolveSelection picks the selected table after a load: the current one
// on a preserving reload, else the stored one if it still exists, else the
// first table.
func resolveSelection(tables []metadata.Table, preserve bool, current, stored string) string {
	if preserve && current != "" {
		if _, ok := metadata.FindTable(tables, current); ok {
			return current
		}
		return ""
	}
	if stored != "" {
		if _, ok := metadata.FindTable(tables, stored); ok {
			return stored
		}
	}
	if len(tables) > 0 {
		return tables[0].Name
	}
	return ""
}

// Snapshot returns the current snapshot.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Tables returns the merged tables of the current snapshot.
func (s *Session) Tables() []metadata.Table {
	return s.Snapshot().Tables
}

// Catalog returns the classification catalog of the current snapshot.
func (s *Session) Catalog() *classification.Catalog {
	return s.Snapshot().Catalog
}

// Table returns the named table from the current snapshot.
func (s *Session) Table(name string) (metadata.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return metadata.FindTable(s.snap.Tables, name)
}

// Selected returns the selected table, if any.
func (s *Session) Selected() (metadata.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return metadata.Table{}, false
	}
	return metadata.FindTable(s.snap.Tables, s.selected)
}

// Select makes name the selected table and persists it.
func (s *Session) Select(ctx context.Context, name string) (metadata.Table, error) {
	s.mu.Lock()
	t, ok := metadata.FindTable(s.snap.Tables, name)
	if !ok {
		s.mu.Unlock()
		return metadata.Table{}, errs.Newf(errs.ErrKindNotFound, "table %q not found", name)
	}
	s.selected = name
	s.mu.Unlock()

	if err := s.store.Save(ctx, name); err != nil {
		s.log.Error("could not persist selection", err, logger.Fields{"table": name})
		return t, err
	}
	return t, nil
}
