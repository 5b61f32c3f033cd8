package persist

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"assetgraph/internal/apperrors"
	"assetgraph/internal/asset"
	"assetgraph/internal/dataset"
)

// TableMode decides what Save does when the target table already exists.
type TableMode string

const (
	TableReplace TableMode = "replace"
	TableAppend  TableMode = "append"
	TableFail    TableMode = "fail"
)

// dataTablePrefix keeps asset tables apart from the bookkeeping tables
// (asset_meta, schema_migrations) that share the database.
const dataTablePrefix = "data__"

const (
	defaultBatch = 500
	// maxVariables is the SQLite bound-parameter limit per statement.
	maxVariables = 32766
)

// Valid reports whether m is a known mode.
func (m TableMode) Valid() bool {
	return m == TableReplace || m == TableAppend || m == TableFail
}

// RecordsTable stores tables in SQLite, one table per asset named
// "data__" + asset.ID.TableName. Columns are untyped; booleans come back as integers.
type RecordsTable struct {
	DB            *DB
	IfTableExists TableMode // default replace
	Batch         int       // rows per INSERT, default 500
}

func (r RecordsTable) mode() TableMode {
	if r.IfTableExists == "" {
		return TableReplace
	}
	return r.IfTableExists
}

func (r RecordsTable) batch(columns int) int {
	n := r.Batch
	if n <= 0 {
		n = defaultBatch
	}
	if columns > 0 && n*columns > maxVariables {
		n = maxVariables / columns
	}
	return n
}

// Save writes all rows in one transaction.
func (r RecordsTable) Save(ctx context.Context, id asset.ID, t *dataset.Table) (err error) {
	if r.DB == nil {
		return apperrors.Configuration("persist.recordsTable", "records table has no database")
	}
	if !r.mode().Valid() {
		return apperrors.Configuration("persist.recordsTable", fmt.Sprintf("unknown if_table_exists mode %q", r.IfTableExists))
	}
	if err := id.Validate(); err != nil {
		return err
	}
	if t == nil || len(t.Columns) == 0 {
		return fmt.Errorf("records for %s: table has no columns", id)
	}
	table := DataTableName(id)
	name := quoteIdent(table)

	tx, err := r.DB.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exists, err := tableExists(ctx, tx, table)
	if err != nil {
		return err
	}
	switch {
	case exists && r.mode() == TableFail:
		return apperrors.Conflict("table", table, "table "+table+" already exists")
	case exists && r.mode() == TableReplace:
		if _, err = tx.ExecContext(ctx, "DROP TABLE "+name); err != nil {
			return err
		}
		exists = false
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c)
	}
	if !exists {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(cols, ", "))); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	size := r.batch(len(cols))
	for start := 0; start < len(t.Rows); start += size {
		end := min(start+size, len(t.Rows))
		chunk := t.Rows[start:end]

		args := make([]any, 0, len(chunk)*len(cols))
		values := make([]string, len(chunk))
		for i, row := range chunk {
			values[i] = placeholder
			args = append(args, row...)
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", name, strings.Join(cols, ", "), strings.Join(values, ", "))
		if _, err = tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Load reads the whole table in rowid order.
func (r RecordsTable) Load(ctx context.Context, id asset.ID) (*dataset.Table, error) {
	if r.DB == nil {
		return nil, apperrors.Configuration("persist.recordsTable", "records table has no database")
	}
	if err := id.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.DB.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(DataTableName(id))+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("load records for %s: %w", id, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := dataset.NewTable(columns...)
	for rows.Next() {
		row := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range row {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

// DataTableName is the SQLite table holding the records of id.
func DataTableName(id asset.ID) string {
	return dataTablePrefix + id.TableName()
}

func tableExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	return n > 0, err
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
