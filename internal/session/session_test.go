package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/koustreak/classiflow/internal/classification"
	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/metadata"
	"github.com/koustreak/classiflow/internal/remote"
	"github.com/koustreak/classiflow/internal/remote/remotetest"
	"github.com/koustreak/classiflow/internal/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMetadata = `{
  "schemas": [{
    "name": "public",
    "tables": [
      {"name": "customers", "columns": [
        {"name": "id", "type": "int", "nullable": false},
        {"name": "email", "type": "text", "nullable": true}
      ]},
      {"name": "orders", "columns": [
        {"name": "id", "type": "int", "nullable": false},
        {"name": "email", "type": "text", "nullable": true},
        {"name": "total", "type": "numeric", "nullable": true}
      ]}
    ]
  }],
  "schemaConfigs": [{
    "name": "public",
    "tableConfigs": [
      {"name": "customers", "classificationId": "1-1", "columnConfigs": [
        {"name": "email", "classificationId": "1-2", "semanticTypeId": "", "labels": {}}
      ]}
    ]
  }]
}`

func sampleCatalog() classification.Config {
	return classification.Config{
		ID: "cfg",
		Levels: []classification.Level{
			{ID: "1", Title: "Low"},
			{ID: "2", Title: "High"},
		},
		Classification: map[string]classification.Classification{
			"1":   {ID: "1", Title: "Personal"},
			"1-1": {ID: "1-1", Title: "Basic", LevelID: "1"},
			"1-2": {ID: "1-2", Title: "Contact", LevelID: "2"},
		},
	}
}

func newFixture(t *testing.T, store selection.Store) (*Session, *remotetest.Server) {
	t.Helper()
	srv := remotetest.New(t)
	srv.SetMetadataJSON(t, sampleMetadata)
	srv.SetClassifications(sampleCatalog())

	client := remote.New(remote.DefaultConfig(srv.URL), nil)
	return New(client, Options{Store: store}), srv
}

func TestLoad_MergesAndSelectsFirstTable(t *testing.T) {
	s, _ := newFixture(t, nil)
	require.NoError(t, s.Load(context.Background()))

	tables := s.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, "1-1", tables[0].ClassificationID)
	email, ok := tables[0].Column("email")
	require.True(t, ok)
	assert.Equal(t, "1-2", email.ClassificationID)
	assert.Empty(t, tables[1].ClassificationID)

	assert.Equal(t, 3, s.Catalog().Len())
	assert.Len(t, s.Catalog().Selectable(), 2)

	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "customers", sel.Name)
}

func TestLoad_SelectionPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   string
	}{
		{"no stored selection", "", "customers"},
		{"stored table exists", "orders", "orders"},
		{"stored table gone", "dropped", "customers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := selection.NewMemory()
			require.NoError(t, store.Save(context.Background(), tt.stored))

			s, _ := newFixture(t, store)
			require.NoError(t, s.Load(context.Background()))

			sel, ok := s.Selected()
			require.True(t, ok)
			assert.Equal(t, tt.want, sel.Name)
		})
	}
}

func TestResolveSelection(t *testing.T) {
	tables := []metadata.Table{{Name: "a"}, {Name: "b"}}

	assert.Equal(t, "b", resolveSelection(tables, true, "b", "a"))
	assert.Empty(t, resolveSelection(tables, true, "gone", "a"))
	assert.Equal(t, "a", resolveSelection(tables, true, "", "a"))
	assert.Empty(t, resolveSelection(nil, false, "", ""))
}

func TestLoad_FailureKeepsLastSnapshot(t *testing.T) {
	s, srv := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	srv.Fail(remotetest.RouteClassifications, http.StatusInternalServerError)
	err := s.Load(ctx)
	require.Error(t, err)
	assert.True(t, errs.IsFetchFailed(err))

	assert.Len(t, s.Tables(), 2, "previous snapshot survives")
	n, ok := s.Notification()
	require.True(t, ok)
	assert.Equal(t, KindError, n.Kind)
	assert.Equal(t, "Failed to load data", n.Message)
}

func TestLoad_FirstLoadFailureLeavesEmptyView(t *testing.T) {
	s, srv := newFixture(t, nil)
	srv.Fail(remotetest.RouteGetMetadata, http.StatusBadGateway)

	require.Error(t, s.Load(context.Background()))
	assert.Empty(t, s.Tables())
	assert.Equal(t, 0, s.Catalog().Len())
	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestSelect(t *testing.T) {
	store := selection.NewMemory()
	s, _ := newFixture(t, store)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	tbl, err := s.Select(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", tbl.Name)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "orders", stored)

	_, err = s.Select(ctx, "missing")
	assert.True(t, errs.IsNotFound(err))
}

func TestUpdateClassification_Column(t *testing.T) {
	s, srv := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))
	_, err := s.Select(ctx, "orders")
	require.NoError(t, err)

	n, err := s.UpdateClassification(ctx, metadata.Edit{Table: "orders", Column: "email", ClassificationID: "1-2"})
	require.NoError(t, err)
	assert.Equal(t, KindSuccess, n.Kind)
	assert.Equal(t, `Successfully updated column "email" classification`, n.Message)

	patches := srv.RequestsFor(remotetest.RoutePatchMetadata)
	require.Len(t, patches, 1)

	var body struct {
		SchemaConfigs []struct {
			Name         string            `json:"name"`
			TableConfigs []json.RawMessage `json:"tableConfigs"`
		} `json:"schemaConfigs"`
	}
	require.NoError(t, json.Unmarshal(patches[0].Body, &body))
	require.Len(t, body.SchemaConfigs, 1)
	assert.Equal(t, "public", body.SchemaConfigs[0].Name)
	require.Len(t, body.SchemaConfigs[0].TableConfigs, 2)
	assert.JSONEq(t,
		`{"name":"orders","columnConfigs":[{"name":"email","classificationId":"1-2","semanticTypeId":"","labels":{}}],"classificationId":""}`,
		string(body.SchemaConfigs[0].TableConfigs[1]))

	// Reloaded with the selection preserved.
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "orders", sel.Name)
	col, _ := sel.Column("email")
	assert.Equal(t, "1-2", col.ClassificationID)

	// Metadata read twice for the load, once for the edit, once for the reload.
	assert.Len(t, srv.RequestsFor(remotetest.RouteGetMetadata), 3)
}

func TestUpdateClassification_UnsetTable(t *testing.T) {
	s, srv := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	n, err := s.UpdateClassification(ctx, metadata.Edit{Table: "customers", ClassificationID: ""})
	require.NoError(t, err)
	assert.Equal(t, "Successfully updated table classification", n.Message)

	md := srv.Metadata()
	cfg := md.SchemaConfig("public")
	tc, ok := cfg.Table("customers")
	require.True(t, ok)
	assert.Empty(t, tc.ClassificationID)
	cc, ok := tc.Column("email")
	require.True(t, ok)
	assert.Equal(t, "1-2", cc.ClassificationID)

	tbl, _ := s.Table("customers")
	assert.Empty(t, tbl.ClassificationID)
}

func TestUpdateClassification_PatchFailure(t *testing.T) {
	s, srv := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))
	srv.Fail(remotetest.RoutePatchMetadata, http.StatusForbidden)

	n, err := s.UpdateClassification(ctx, metadata.Edit{Table: "orders", Column: "total", ClassificationID: "1-1"})
	require.Error(t, err)
	assert.True(t, errs.IsPatchFailed(err))
	assert.Equal(t, KindError, n.Kind)
	assert.Equal(t, `Failed to update column "total" classification`, n.Message)

	current, ok := s.Notification()
	require.True(t, ok)
	assert.Equal(t, n.Message, current.Message)

	// No reload after a failed patch.
	assert.Len(t, srv.RequestsFor(remotetest.RouteGetMetadata), 2)
}

func TestUpdateClassification_InvalidInput(t *testing.T) {
	s, srv := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	tests := []struct {
		name string
		edit metadata.Edit
	}{
		{"unknown table", metadata.Edit{Table: "missing", ClassificationID: "1-1"}},
		{"unknown classification", metadata.Edit{Table: "orders", ClassificationID: "9"}},
		{"group header", metadata.Edit{Table: "orders", ClassificationID: "1"}},
		{"unknown column", metadata.Edit{Table: "orders", Column: "missing", ClassificationID: "1-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UpdateClassification(ctx, tt.edit)
			assert.True(t, errs.IsInvalidInput(err))
		})
	}
	assert.Empty(t, srv.RequestsFor(remotetest.RoutePatchMetadata))
	assert.Len(t, srv.RequestsFor(remotetest.RouteGetMetadata), 1, "only the initial load reads metadata")
}

// blockingRemote parks the first metadata read of an edit until released.
type blockingRemote struct {
	Remote
	armed   chan struct{}
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingRemote) GetDatabaseMetadata(ctx context.Context) (*metadata.DatabaseMetadata, error) {
	select {
	case <-b.armed:
		b.once.Do(func() {
			close(b.entered)
			<-b.release
		})
	default:
	}
	return b.Remote.GetDatabaseMetadata(ctx)
}

func TestUpdateClassification_Busy(t *testing.T) {
	srv := remotetest.New(t)
	srv.SetMetadataJSON(t, sampleMetadata)
	srv.SetClassifications(sampleCatalog())

	br := &blockingRemote{
		Remote:  remote.New(remote.DefaultConfig(srv.URL), nil),
		armed:   make(chan struct{}),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New(br, Options{})
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))
	close(br.armed)

	done := make(chan error, 1)
	go func() {
		_, err := s.UpdateClassification(ctx, metadata.Edit{Table: "orders", ClassificationID: "1-1"})
		done <- err
	}()
	<-br.entered

	_, err := s.UpdateClassification(ctx, metadata.Edit{Table: "orders", ClassificationID: "1-2"})
	assert.True(t, errs.IsBusy(err))

	close(br.release)
	require.NoError(t, <-done)

	// Free again once the first edit finished.
	_, err = s.UpdateClassification(ctx, metadata.Edit{Table: "orders", ClassificationID: "1-2"})
	assert.NoError(t, err)
}

func TestNotification_Expires(t *testing.T) {
	s := New(nil, Options{NotificationTTL: 3 * time.Second})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n := s.notify(KindSuccess, "done")
	assert.True(t, n.Success())
	assert.Equal(t, now.Add(3*time.Second), n.ExpiresAt)

	_, ok := s.Notification()
	assert.True(t, ok)

	now = now.Add(3 * time.Second)
	_, ok = s.Notification()
	assert.False(t, ok)

	s.notify(KindError, "boom")
	s.Dismiss()
	_, ok = s.Notification()
	assert.False(t, ok)
}

// sequencedRemote serves each metadata read from its own channel, so a
// test controls the order in which overlapping loads complete.
type sequencedRemote struct {
	mu    sync.Mutex
	calls int
	reads []chan *metadata.DatabaseMetadata
}

func (r *sequencedRemote) GetDatabaseMetadata(ctx context.Context) (*metadata.DatabaseMetadata, error) {
	r.mu.Lock()
	ch := r.reads[r.calls]
	r.calls++
	r.mu.Unlock()

	select {
	case md := <-ch:
		return md, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *sequencedRemote) PatchDatabaseMetadata(context.Context, metadata.PatchRequest) error {
	return nil
}

func (r *sequencedRemote) GetClassificationConfig(context.Context) (classification.Config, error) {
	return sampleCatalog(), nil
}

func (r *sequencedRemote) started() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func singleTable(name string) *metadata.DatabaseMetadata {
	return &metadata.DatabaseMetadata{
		Schemas: []metadata.SchemaMetadata{{
			Name:   metadata.DefaultSchema,
			Tables: []metadata.TableMetadata{{Name: name}},
		}},
	}
}

func TestLoad_OlderLoadDoesNotOverwriteNewer(t *testing.T) {
	r := &sequencedRemote{reads: []chan *metadata.DatabaseMetadata{
		make(chan *metadata.DatabaseMetadata, 1),
		make(chan *metadata.DatabaseMetadata, 1),
	}}
	s := New(r, Options{})
	ctx := context.Background()

	older := make(chan error, 1)
	go func() { older <- s.Load(ctx) }()
	require.Eventually(t, func() bool { return r.started() == 1 }, time.Second, time.Millisecond)

	r.reads[1] <- singleTable("new_table")
	require.NoError(t, s.Load(ctx))

	r.reads[0] <- singleTable("stale_table")
	require.NoError(t, <-older)

	tables := s.Tables()
	require.Len(t, tables, 1)
	assert.Equal(t, "new_table", tables[0].Name)
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "new_table", sel.Name)
}
