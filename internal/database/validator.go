package database

import (
	"context"
	"database/sql"
	"fmt"
)

// expectedSchema is the minimum relational shape a variant database must
// carry before it may be queried. Extra tables and columns are permitted.
var expectedSchema = map[string][]string{
	"patient_variant": {"No", "patient_ID", "variant"},
	"variant_annotations": {
		"No", "variant_NC", "variant_NM", "variant_NP", "gene", "HGNC_ID",
		"Classification", "Conditions", "Stars", "Review_status",
	},
}

// ValidateSchema reports whether db matches the expected shape. Any
// connection or query failure yields false; a store failing validation must
// not be queried further.
func ValidateSchema(ctx context.Context, db *sql.DB) bool {
	tables, err := tableNames(ctx, db)
	if err != nil {
		return false
	}

	for table, requiredColumns := range expectedSchema {
		if _, ok := tables[table]; !ok {
			return false
		}
		columns, err := columnNames(ctx, db, table)
		if err != nil {
			return false
		}
		for _, col := range requiredColumns {
			if _, ok := columns[col]; !ok {
				return false
			}
		}
	}
	return true
}

// ValidateFile opens the sqlite database at path and validates its schema.
func ValidateFile(ctx context.Context, path string) bool {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return false
	}
	defer db.Close()
	return ValidateSchema(ctx, db)
}

func tableNames(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = struct{}{}
	}
	return tables, rows.Err()
}

func columnNames(ctx context.Context, db *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := map[string]struct{}{}
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		columns[name] = struct{}{}
	}
	return columns, rows.Err()
}
