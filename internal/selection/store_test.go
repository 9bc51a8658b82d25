package selection

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/koustreak/classiflow/internal/database"
	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, m.Save(ctx, "orders"))
	got, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "orders", got)
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "selection.yaml")

	f, err := NewFile(path)
	require.NoError(t, err)

	got, err := f.Load(ctx)
	require.NoError(t, err, "missing file reads as no selection")
	assert.Empty(t, got)

	require.NoError(t, f.Save(ctx, "customers"))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "selected_table: customers\n", string(raw))

	// A second store over the same file sees the saved value.
	f2, err := NewFile(path)
	require.NoError(t, err)
	got, err = f2.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "customers", got)
}

func TestFile_Errors(t *testing.T) {
	_, err := NewFile("")
	assert.True(t, errs.IsInvalidInput(err))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("selected_table: [unterminated"), 0o644))
	f, err := NewFile(path)
	require.NoError(t, err)
	_, err = f.Load(context.Background())
	assert.True(t, errs.IsQueryFailed(err))
}

// --- object backend ---

type fakeObjects struct {
	mu      sync.Mutex
	buckets map[string]bool
	data    map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{buckets: map[string]bool{}, data: map[string][]byte{}}
}

func (f *fakeObjects) Ping(context.Context) error { return nil }
func (f *fakeObjects) Close() error               { return nil }

func (f *fakeObjects) EnsureBucket(_ context.Context, bucket string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket] = true
	return nil
}

func (f *fakeObjects) GetObject(_ context.Context, bucket, key string) (filestore.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[bucket+"/"+key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such key")
	}
	return &fakeObject{ReadCloser: io.NopCloser(bytes.NewReader(b)), info: &filestore.ObjectInfo{Key: key, Size: int64(len(b))}}, nil
}

func (f *fakeObjects) PutObject(_ context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*filestore.ObjectInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.buckets[bucket] {
		return nil, errs.New(errs.ErrKindNotFound, "no such bucket")
	}
	f.data[bucket+"/"+key] = b
	return &filestore.ObjectInfo{Key: key, Size: size, ContentType: contentType}, nil
}

type fakeObject struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *fakeObject) Info() *filestore.ObjectInfo { return o.info }

func TestObject(t *testing.T) {
	ctx := context.Background()
	fs := newFakeObjects()

	o, err := NewObject(ctx, fs, "classiflow", "")
	require.NoError(t, err)
	assert.True(t, fs.buckets["classiflow"])

	got, err := o.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, o.Save(ctx, "orders"))
	assert.Equal(t, []byte("orders"), fs.data["classiflow/"+DefaultKey])

	got, err = o.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "orders", got)

	_, err = NewObject(ctx, fs, "", "k")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestObject_OversizedObject(t *testing.T) {
	ctx := context.Background()
	fs := newFakeObjects()

	o, err := NewObject(ctx, fs, "classiflow", "")
	require.NoError(t, err)
	fs.data["classiflow/"+DefaultKey] = bytes.Repeat([]byte("x"), maxObjectSize+1)

	_, err = o.Load(ctx)
	assert.True(t, errs.IsQueryFailed(err))
}

// --- sql backend ---

// fakeDB understands just the statements the SQL store issues.
type fakeDB struct {
	dialect database.Dialect
	rows    map[string]string
	stmts   []string
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close()                     {}
func (f *fakeDB) Dialect() database.Dialect  { return f.dialect }

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	f.stmts = append(f.stmts, sql)
	if strings.HasPrefix(sql, "INSERT") {
		f.rows[args[0].(string)] = args[1].(string)
		return 1, nil
	}
	return 0, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) database.Row {
	f.stmts = append(f.stmts, sql)
	v, ok := f.rows[args[0].(string)]
	return fakeRow{v: v, ok: ok}
}

type fakeRow struct {
	v  string
	ok bool
}

func (r fakeRow) Scan(dest ...any) error {
	if !r.ok {
		return errs.New(errs.ErrKindNotFound, "no rows")
	}
	*(dest[0].(*string)) = r.v
	return nil
}

func TestSQL(t *testing.T) {
	tests := []struct {
		name       string
		dialect    database.Dialect
		wantSelect string
		wantUpsert string
	}{
		{"postgres", database.DialectPostgres, "WHERE scope = $1", "ON CONFLICT (scope) DO UPDATE"},
		{"mysql", database.DialectMySQL, "WHERE scope = ?", "ON DUPLICATE KEY UPDATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			db := &fakeDB{dialect: tt.dialect, rows: map[string]string{}}

			s, err := NewSQL(ctx, db, "")
			require.NoError(t, err)
			require.Len(t, db.stmts, 1)
			assert.Contains(t, db.stmts[0], "CREATE TABLE IF NOT EXISTS classiflow_selection")

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.Contains(t, db.stmts[1], tt.wantSelect)

			require.NoError(t, s.Save(ctx, "orders"))
			assert.Contains(t, db.stmts[2], tt.wantUpsert)
			assert.Equal(t, "orders", db.rows[DefaultKey])

			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "orders", got)
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Config{Backend: BackendFile, Path: filepath.Join(t.TempDir(), "s.yaml")})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	_, err = Open(ctx, Config{Backend: "redis"})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = Open(ctx, Config{Backend: BackendSQL, Driver: "oracle"})
	assert.True(t, errs.IsInvalidInput(err))

	assert.True(t, BackendObject.Valid())
	assert.False(t, Backend("redis").Valid())
}
