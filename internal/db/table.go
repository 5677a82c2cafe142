package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ColumnType is the Postgres type a sink column is created with.
type ColumnType string

const (
	Text   ColumnType = "text"
	Number ColumnType = "double precision"
)

// Column is one sink column.
type Column struct {
	Name string
	Type ColumnType
}

// Table names a schema-qualified table.
type Table struct {
	Schema string
	Name   string
}

// Ident returns the table as a pgx identifier.
func (t Table) Ident() pgx.Identifier {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}
	}
	return pgx.Identifier{t.Schema, t.Name}
}

func (t Table) String() string { return t.Ident().Sanitize() }

// Batch is a set of rows bound for one table. Each row is aligned with
// Columns; text cells are *string and numeric cells *float64, nil for NULL.
type Batch struct {
	Table   Table
	Columns []Column
	// Key names the columns of the natural key. A unique index enforces it.
	Key  []string
	Rows [][]any
}

func (b Batch) names() []string {
	out := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		out[i] = c.Name
	}
	return out
}

func (b Batch) validate() error {
	if b.Table.Name == "" {
		return eris.New("db: batch has no table")
	}
	if len(b.Columns) == 0 {
		return eris.Errorf("db: %s: no columns", b.Table)
	}
	if len(b.Key) == 0 {
		return eris.Errorf("db: %s: no key columns", b.Table)
	}
	if _, err := b.keyPositions(); err != nil {
		return err
	}
	return nil
}

func (b Batch) keyPositions() ([]int, error) {
	pos := make([]int, len(b.Key))
	for i, k := range b.Key {
		pos[i] = -1
		for j, c := range b.Columns {
			if c.Name == k {
				pos[i] = j
				break
			}
		}
		if pos[i] < 0 {
			return nil, eris.Errorf("db: %s: key column %q not in columns", b.Table, k)
		}
	}
	return pos, nil
}

// Replace drops and recreates the table, loads every row and adds the
// unique key index, all in one transaction.
func Replace(ctx context.Context, pool Pool, b Batch) (int64, error) {
	if err := b.validate(); err != nil {
		return 0, err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+b.Table.String()); err != nil {
		return 0, eris.Wrapf(err, "db: replace: drop %s", b.Table)
	}
	if _, err := tx.Exec(ctx, createSQL(b, false)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: create %s", b.Table)
	}
	n, err := CopyFrom(ctx, tx, b.Table, b.names(), b.Rows)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, indexSQL(b, false)); err != nil {
		return 0, eris.Wrapf(err, "db: replace: index %s", b.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}

// Append creates the table when missing, adds any new columns, and loads
// only the rows whose key is not yet stored. Running it twice with the same
// batch inserts nothing the second time.
func Append(ctx context.Context, pool Pool, b Batch) (int64, error) {
	if err := b.validate(); err != nil {
		return 0, err
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: append: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, createSQL(b, true)); err != nil {
		return 0, eris.Wrapf(err, "db: append: create %s", b.Table)
	}
	if _, err := tx.Exec(ctx, addColumnsSQL(b)); err != nil {
		return 0, eris.Wrapf(err, "db: append: add columns to %s", b.Table)
	}
	if _, err := tx.Exec(ctx, indexSQL(b, true)); err != nil {
		return 0, eris.Wrapf(err, "db: append: index %s", b.Table)
	}

	existing, err := existingKeys(ctx, tx, b)
	if err != nil {
		return 0, err
	}
	fresh, err := b.absent(existing)
	if err != nil {
		return 0, err
	}

	n, err := CopyFrom(ctx, tx, b.Table, b.names(), fresh)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: append: commit tx")
	}
	return n, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func existingKeys(ctx context.Context, q querier, b Batch) (map[string]bool, error) {
	cols := make([]string, len(b.Key))
	for i, k := range b.Key {
		cols[i] = pgx.Identifier{k}.Sanitize() + "::text"
	}
	rows, err := q.Query(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), b.Table))
	if err != nil {
		return nil, eris.Wrapf(err, "db: read keys of %s", b.Table)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, eris.Wrapf(err, "db: scan key of %s", b.Table)
		}
		out[joinKey(vals)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "db: read keys of %s", b.Table)
	}
	return out, nil
}

// absent returns the rows whose key is neither in existing nor repeated
// earlier in the batch.
func (b Batch) absent(existing map[string]bool) ([][]any, error) {
	pos, err := b.keyPositions()
	if err != nil {
		return nil, err
	}
	var out [][]any
	for _, r := range b.Rows {
		key := make([]any, len(pos))
		for i, p := range pos {
			key[i] = r[p]
		}
		k := joinKey(key)
		if existing[k] {
			continue
		}
		existing[k] = true
		out = append(out, r)
	}
	return out, nil
}

func joinKey(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		switch t := v.(type) {
		case nil:
		case string:
			parts[i] = strings.TrimSpace(t)
		case *string:
			if t != nil {
				parts[i] = strings.TrimSpace(*t)
			}
		default:
			parts[i] = strings.TrimSpace(fmt.Sprint(t))
		}
	}
	return strings.Join(parts, "\x1f")
}

func createSQL(b Batch, ifNotExists bool) string {
	defs := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + string(columnType(c))
	}
	verb := "CREATE TABLE "
	if ifNotExists {
		verb = "CREATE TABLE IF NOT EXISTS "
	}
	return verb + b.Table.String() + " (" + strings.Join(defs, ", ") + ")"
}

func addColumnsSQL(b Batch) string {
	clauses := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		clauses[i] = "ADD COLUMN IF NOT EXISTS " + pgx.Identifier{c.Name}.Sanitize() + " " + string(columnType(c))
	}
	return "ALTER TABLE " + b.Table.String() + " " + strings.Join(clauses, ", ")
}

func indexSQL(b Batch, ifNotExists bool) string {
	verb := "CREATE UNIQUE INDEX "
	if ifNotExists {
		verb = "CREATE UNIQUE INDEX IF NOT EXISTS "
	}
	return verb + pgx.Identifier{indexName(b.Table)}.Sanitize() + " ON " + b.Table.String() + " (" + quoteAndJoin(b.Key) + ")"
}

func indexName(t Table) string { return "uniq_" + t.Name + "_key" }

func columnType(c Column) ColumnType {
	if c.Type == "" {
		return Text
	}
	return c.Type
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
