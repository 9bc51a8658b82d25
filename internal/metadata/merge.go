package metadata

// Merge projects the stored config onto the raw schema. Each table and
// column picks up the classificationId of the config entry with the same
// name; a missing entry means "never classified" and leaves it empty.
//
// Merge is pure: the output shares no slices with its inputs and keeps the
// raw schema's table and column order.
func Merge(schema SchemaMetadata, cfg SchemaConfig) []Table {
	tableConfigs := make(map[string]TableConfig, len(cfg.TableConfigs))
	for _, tc := range cfg.TableConfigs {
		if _, dup := tableConfigs[tc.Name]; !dup {
			tableConfigs[tc.Name] = tc
		}
	}

	tables := make([]Table, 0, len(schema.Tables))
	for _, raw := range schema.Tables {
		tc, hasConfig := tableConfigs[raw.Name]

		table := Table{
			Name:    raw.Name,
			Comment: raw.Comment,
			Columns: make([]Column, 0, len(raw.Columns)),
		}
		if hasConfig {
			table.ClassificationID = tc.ClassificationID
		}

		for _, rc := range raw.Columns {
			col := Column{
				Name:     rc.Name,
				Type:     rc.Type,
				Nullable: rc.Nullable,
			}
			if hasConfig {
				if cc, ok := tc.Column(rc.Name); ok {
					col.ClassificationID = cc.ClassificationID
				}
			}
			table.Columns = append(table.Columns, col)
		}

		tables = append(tables, table)
	}
	return tables
}

// MergeDatabase merges the named schema of md with its stored config.
// It returns false when the schema does not exist.
func MergeDatabase(md *DatabaseMetadata, schema string) ([]Table, bool) {
	s, ok := md.Schema(schema)
	if !ok {
		return nil, false
	}
	return Merge(s, md.SchemaConfig(schema)), true
}
