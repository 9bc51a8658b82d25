package selection

import (
	"context"
	"fmt"

	"github.com/koustreak/classiflow/internal/database"
	"github.com/koustreak/classiflow/internal/errs"
)

const selectionTable = "classiflow_selection"

// SQL stores the selection as one row of a key-value table, keyed by scope.
type SQL struct {
	db    database.DB
	scope string
}

// NewSQL creates the selection table if needed and returns a store keyed by
// scope (DefaultKey when empty).
func NewSQL(ctx context.Context, db database.DB, scope string) (*SQL, error) {
	if scope == "" {
		scope = DefaultKey
	}
	s := &SQL{db: db, scope: scope}
	if _, err := db.Exec(ctx, createTableSQL()); err != nil {
		return nil, err
	}
	return s, nil
}

// Load returns the table stored for the scope, or "" when there is no row.
func (s *SQL) Load(ctx context.Context) (string, error) {
	d := s.db.Dialect()
	q := fmt.Sprintf("SELECT table_name FROM %s WHERE scope = %s", selectionTable, d.Placeholder(1))

	var table string
	err := s.db.QueryRow(ctx, q, s.scope).Scan(&table)
	if errs.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return table, nil
}

// Save upserts the scope's row.
func (s *SQL) Save(ctx context.Context, table string) error {
	_, err := s.db.Exec(ctx, upsertSQL(s.db.Dialect()), s.scope, table)
	return err
}

// Close closes the connection pool.
func (s *SQL) Close() error {
	s.db.Close()
	return nil
}

func createTableSQL() string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (scope VARCHAR(255) PRIMARY KEY, table_name VARCHAR(255) NOT NULL)",
		selectionTable,
	)
}

func upsertSQL(d database.Dialect) string {
	if d == database.DialectMySQL {
		return fmt.Sprintf(
			"INSERT INTO %s (scope, table_name) VALUES (?, ?) ON DUPLICATE KEY UPDATE table_name = VALUES(table_name)",
			selectionTable,
		)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (scope, table_name) VALUES ($1, $2) ON CONFLICT (scope) DO UPDATE SET table_name = EXCLUDED.table_name",
		selectionTable,
	)
}
