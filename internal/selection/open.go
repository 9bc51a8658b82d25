package selection

import (
	"context"

	"github.com/koustreak/classiflow/internal/database"
	"github.com/koustreak/classiflow/internal/database/mysql"
	"github.com/koustreak/classiflow/internal/database/postgres"
	"github.com/koustreak/classiflow/internal/errs"
	"github.com/koustreak/classiflow/internal/filestore"
	"github.com/koustreak/classiflow/internal/filestore/minio"
)

// Backend names a Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendObject Backend = "object"
	BackendSQL    Backend = "sql"
)

// Config selects and configures a backend. Only the fields of the chosen
// backend are read.
type Config struct {
	Backend Backend `yaml:"backend"`

	// Key is the object key (object backend) or row scope (sql backend).
	Key string `yaml:"key"`

	// file
	Path string `yaml:"path"`

	// object
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`

	// sql
	Driver database.Driver `yaml:"driver"`
	DSN    string          `yaml:"dsn"`
}

// Valid reports whether b names a known backend.
func (b Backend) Valid() bool {
	switch b {
	case BackendMemory, BackendFile, BackendObject, BackendSQL:
		return true
	}
	return false
}

// Open builds the Store described by cfg, connecting to its backend.
// An empty backend yields a Memory store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil

	case BackendFile:
		f, err := NewFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		return f, nil

	case BackendObject:
		fsCfg := filestore.DefaultConfig(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
		fsCfg.UseSSL = cfg.UseSSL
		fs, err := minio.New(ctx, fsCfg)
		if err != nil {
			return nil, err
		}
		o, err := NewObject(ctx, fs, cfg.Bucket, cfg.Key)
		if err != nil {
			_ = fs.Close()
			return nil, err
		}
		return o, nil

	case BackendSQL:
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s, err := NewSQL(ctx, db, cfg.Key)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	}

	return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown selection backend %q", cfg.Backend)
}

func openDB(ctx context.Context, cfg Config) (database.DB, error) {
	dbCfg := database.DefaultConfig(cfg.Driver, cfg.DSN)
	switch cfg.Driver {
	case database.DriverPostgres, "":
		d, err := postgres.New(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case database.DriverMySQL:
		d, err := mysql.New(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown selection database driver %q", cfg.Driver)
}
