// Package metadata reconciles a database's schema tree with its stored
// per-table and per-column configuration.
//
// Two shapes live here. The raw shapes (DatabaseMetadata, SchemaMetadata,
// TableMetadata, ColumnMetadata) and the durable config records
// (SchemaConfig, TableConfig, ColumnConfig) mirror the remote service's
// JSON. Table and Column are the merged, display-only projection produced
// by Merge; they are never persisted.
package metadata

import "encoding/json"

// DefaultSchema is the only schema the classification view works on.
const DefaultSchema = "public"

// ColumnMetadata describes a single column as reported by the service.
type ColumnMetadata struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Comment  string `json:"comment,omitempty"`
}

// TableMetadata describes a table and its columns as reported by the service.
type TableMetadata struct {
	Name    string           `json:"name"`
	Comment string           `json:"comment,omitempty"`
	Columns []ColumnMetadata `json:"columns"`
}

// SchemaMetadata is one schema of the database.
type SchemaMetadata struct {
	Name   string          `json:"name"`
	Tables []TableMetadata `json:"tables"`
}

// DatabaseMetadata is the payload of GET /api/databasemeta.
type DatabaseMetadata struct {
	Name          string           `json:"name,omitempty"`
	Schemas       []SchemaMetadata `json:"schemas"`
	SchemaConfigs []SchemaConfig   `json:"schemaConfigs"`
}

// Schema returns the schema with the given name.
func (m *DatabaseMetadata) Schema(name string) (SchemaMetadata, bool) {
	for _, s := range m.Schemas {
		if s.Name == name {
			return s, true
		}
	}
	return SchemaMetadata{}, false
}

// SchemaConfig returns the stored config for the named schema, or an empty
// config carrying that name when nothing has been stored yet.
func (m *DatabaseMetadata) SchemaConfig(name string) SchemaConfig {
	for _, c := range m.SchemaConfigs {
		if c.Name == name {
			return c
		}
	}
	return SchemaConfig{Name: name}
}

// --- Durable config records ---

// ColumnConfig is the stored override for one column.
// ClassificationID has no omitempty: an empty string is an explicit unset.
type ColumnConfig struct {
	Name             string            `json:"name"`
	ClassificationID string            `json:"classificationId"`
	SemanticTypeID   string            `json:"semanticTypeId"`
	Labels           map[string]string `json:"labels"`
}

// TableConfig is the stored override for one table.
//
// A TableConfig decoded from the service remembers its original encoding
// and marshals back to exactly those bytes, so configs this package never
// touches round-trip unchanged, unknown fields included.
type TableConfig struct {
	Name             string         `json:"name"`
	ColumnConfigs    []ColumnConfig `json:"columnConfigs"`
	ClassificationID string         `json:"classificationId"`

	raw json.RawMessage
}

type tableConfigFields TableConfig

// UnmarshalJSON decodes the known fields and keeps the original bytes.
func (t *TableConfig) UnmarshalJSON(data []byte) error {
	var fields tableConfigFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*t = TableConfig(fields)
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the original bytes for decoded configs and the
// field encoding for configs built locally.
func (t TableConfig) MarshalJSON() ([]byte, error) {
	if t.raw != nil {
		return t.raw, nil
	}
	fields := tableConfigFields(t)
	if fields.ColumnConfigs == nil {
		fields.ColumnConfigs = []ColumnConfig{}
	}
	return json.Marshal(fields)
}

// Column returns the stored config for the named column.
func (t *TableConfig) Column(name string) (ColumnConfig, bool) {
	for _, c := range t.ColumnConfigs {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnConfig{}, false
}

// SchemaConfig groups the table configs of one schema.
type SchemaConfig struct {
	Name         string        `json:"name"`
	TableConfigs []TableConfig `json:"tableConfigs"`
}

// Table returns the stored config for the named table.
func (s *SchemaConfig) Table(name string) (TableConfig, bool) {
	for _, t := range s.TableConfigs {
		if t.Name == name {
			return t, true
		}
	}
	return TableConfig{}, false
}

// PatchRequest is the body of PATCH /api/databasemeta.
type PatchRequest struct {
	SchemaConfigs []SchemaConfig `json:"schemaConfigs"`
}

// --- Merged view ---

// Column is a column of the merged view. An empty ClassificationID means
// the column was never classified (or was explicitly unset).
type Column struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Nullable         bool   `json:"nullable"`
	ClassificationID string `json:"classificationId,omitempty"`
}

// Table is a table of the merged view.
type Table struct {
	Name             string   `json:"name"`
	Comment          string   `json:"comment,omitempty"`
	ClassificationID string   `json:"classificationId,omitempty"`
	Columns          []Column `json:"columns"`
}

// Column returns the merged column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// FindTable returns the merged table with the given name.
func FindTable(tables []Table, name string) (Table, bool) {
	for _, t := range tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
