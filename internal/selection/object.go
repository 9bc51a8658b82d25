package selection

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/filestore"
)

// maxObjectSize caps how much of the stored object is read back.
const maxObjectSize = 4 << 10

// Object stores the selection as a plain-text object in a bucket.
type Object struct {
	store  filestore.Store
	bucket string
	key    string
}

// NewObject returns a store that keeps the table name at bucket/key.
// The bucket is created if it does not exist.
func NewObject(ctx context.Context, store filestore.Store, bucket, key string) (*Object, error) {
	if bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "selection bucket is required")
	}
	if key == "" {
		key = DefaultKey
	}
	if err := store.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	return &Object{store: store, bucket: bucket, key: key}, nil
}

// Load reads the stored table name. A missing object means no selection.
func (o *Object) Load(ctx context.Context) (string, error) {
	obj, err := o.store.GetObject(ctx, o.bucket, o.key)
	if errs.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer obj.Close()

	if info := obj.Info(); info != nil && info.Size > maxObjectSize {
		return "", errs.Newf(errs.ErrKindQueryFailed, "selection object %s/%s is %d bytes, larger than %d", o.bucket, o.key, info.Size, maxObjectSize)
	}

	raw, err := io.ReadAll(io.LimitReader(obj, maxObjectSize))
	if err != nil {
		return "", errs.Wrap(errs.ErrKindQueryFailed, "read selection object", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Save overwrites the object with table.
func (o *Object) Save(ctx context.Context, table string) error {
	body := []byte(table)
	_, err := o.store.PutObject(ctx, o.bucket, o.key, bytes.NewReader(body), int64(len(body)), "text/plain; charset=utf-8")
	return err
}

// Close closes the underlying object store.
func (o *Object) Close() error {
	return o.store.Close()
}
