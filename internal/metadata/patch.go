package metadata

import (
	"github.com/koustreak/classiflow/internal/errs"
)

// Edit is a single classification change on a table or one of its columns.
type Edit struct {
	Table  string
	Column string // empty targets the table itself

	// ClassificationID is the new value. Empty clears a previous value.
	ClassificationID string
}

// IsTableEdit reports whether the edit targets the table rather than a column.
func (e Edit) IsTableEdit() bool {
	return e.Column == ""
}

// Target names what the edit touches, e.g. `column "email"` or `table`.
func (e Edit) Target() string {
	if e.IsTableEdit() {
		return "table"
	}
	return `column "` + e.Column + `"`
}

// ComputePatch returns a copy of existing in which exactly the field named
// by edit changes. current is the merged view the edit was made against;
// it supplies the table's other column classifications.
//
// The rebuilt TableConfig lists every column that currently carries a
// classification plus the edited column. Stored semanticTypeId and labels of
// listed columns are carried over. Every other TableConfig is copied as is,
// and a table with no stored config is appended at the end.
func ComputePatch(existing SchemaConfig, current []Table, edit Edit) (SchemaConfig, error) {
	if edit.Table == "" {
		return SchemaConfig{}, errs.New(errs.ErrKindInvalidInput, "table name is required")
	}
	table, ok := FindTable(current, edit.Table)
	if !ok {
		return SchemaConfig{}, errs.Newf(errs.ErrKindNotFound, "table %q not found", edit.Table)
	}
	if !edit.IsTableEdit() {
		if _, ok := table.Column(edit.Column); !ok {
			return SchemaConfig{}, errs.Newf(errs.ErrKindNotFound, "column %q not found in table %q", edit.Column, edit.Table)
		}
	}

	stored, _ := existing.Table(edit.Table)

	updated := TableConfig{
		Name:             edit.Table,
		ColumnConfigs:    make([]ColumnConfig, 0, len(table.Columns)),
		ClassificationID: table.ClassificationID,
	}
	if edit.IsTableEdit() {
		updated.ClassificationID = edit.ClassificationID
	}

	for _, col := range table.Columns {
		isTarget := !edit.IsTableEdit() && col.Name == edit.Column
		if col.ClassificationID == "" && !isTarget {
			continue
		}

		cc := ColumnConfig{
			Name:             col.Name,
			ClassificationID: col.ClassificationID,
			Labels:           map[string]string{},
		}
		if prev, ok := stored.Column(col.Name); ok {
			cc.SemanticTypeID = prev.SemanticTypeID
			for k, v := range prev.Labels {
				cc.Labels[k] = v
			}
		}
		if isTarget {
			cc.ClassificationID = edit.ClassificationID
		}
		updated.ColumnConfigs = append(updated.ColumnConfigs, cc)
	}

	out := SchemaConfig{
		Name:         existing.Name,
		TableConfigs: make([]TableConfig, 0, len(existing.TableConfigs)+1),
	}
	replaced := false
	for _, tc := range existing.TableConfigs {
		if tc.Name == edit.Table {
			out.TableConfigs = append(out.TableConfigs, updated)
			replaced = true
			continue
		}
		out.TableConfigs = append(out.TableConfigs, tc)
	}
	if !replaced {
		out.TableConfigs = append(out.TableConfigs, updated)
	}
	return out, nil
}

// NewPatchRequest wraps cfg into the PATCH /api/databasemeta body.
func NewPatchRequest(cfg SchemaConfig) PatchRequest {
	return PatchRequest{SchemaConfigs: []SchemaConfig{cfg}}
}
