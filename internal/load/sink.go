package load

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/db"
	"github.com/sells-group/bursa-cli/internal/frame"
)

// Mode selects how a table is written.
type Mode int

const (
	// Append adds rows whose key is not yet stored.
	Append Mode = iota
	// Replace drops and recreates the table.
	Replace
)

func (m Mode) String() string {
	if m == Replace {
		return "replace"
	}
	return "append"
}

// Sink writes normalized frames to Postgres tables in one schema.
type Sink struct {
	pool   db.Pool
	schema string
	mode   Mode
	log    *zap.Logger
}

// NewSink returns a sink writing into schema with mode.
func NewSink(pool db.Pool, schema string, mode Mode) *Sink {
	if schema == "" {
		schema = "public"
	}
	return &Sink{
		pool:   pool,
		schema: schema,
		mode:   mode,
		log:    zap.L().With(zap.String("component", "load.sink")),
	}
}

// Write stores f in table keyed by key. Columns named in numeric are typed
// double precision; the rest are text. It returns the rows inserted.
func (s *Sink) Write(ctx context.Context, table string, f *frame.Frame, key, numeric []string) (int64, error) {
	b := Batch(db.Table{Schema: s.schema, Name: table}, f, key, numeric)

	var (
		n   int64
		err error
	)
	if s.mode == Replace {
		n, err = db.Replace(ctx, s.pool, b)
	} else {
		n, err = db.Append(ctx, s.pool, b)
	}
	if err != nil {
		return 0, err
	}
	s.log.Info("table written",
		zap.String("table", table),
		zap.String("mode", s.mode.String()),
		zap.Int("rows", f.Len()),
		zap.Int64("inserted", n),
	)
	return n, nil
}

// Batch converts a frame into a db batch. Numeric cells that do not parse
// are stored as NULL.
func Batch(t db.Table, f *frame.Frame, key, numeric []string) db.Batch {
	isNum := make(map[string]bool, len(numeric))
	for _, c := range numeric {
		isNum[c] = true
	}

	cols := f.Columns()
	b := db.Batch{Table: t, Key: key, Columns: make([]db.Column, len(cols))}
	for i, c := range cols {
		b.Columns[i] = db.Column{Name: c, Type: db.Text}
		if isNum[c] {
			b.Columns[i].Type = db.Number
		}
	}

	b.Rows = make([][]any, 0, f.Len())
	for _, r := range f.Rows() {
		vals := f.Values(r)
		row := make([]any, len(cols))
		for i, c := range cols {
			switch {
			case vals[i] == nil:
				row[i] = nil
			case isNum[c]:
				if d, ok := parseNumber(*vals[i]); ok {
					v := d.InexactFloat64()
					row[i] = &v
				} else {
					row[i] = nil
				}
			default:
				row[i] = vals[i]
			}
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}
