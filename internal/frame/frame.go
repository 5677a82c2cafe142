// Package frame holds small ordered-column tables of nullable text cells,
// the in-memory shape of every CSV artifact the pipeline reads or writes.
package frame

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
)

// Row maps a column name to its cell. A missing key is a null cell.
type Row map[string]string

// Get returns the cell value and whether it is non-null.
func (r Row) Get(col string) (string, bool) {
	v, ok := r[col]
	return v, ok
}

// Nulls is the set of cell texts read as null.
type Nulls map[string]struct{}

var (
	// DefaultNulls treats only empty cells as null.
	DefaultNulls = Nulls{"": {}}
	// LoaderNulls is the null set used when preparing rows for the sink.
	LoaderNulls = Nulls{"": {}, "None": {}, "none": {}, "NaN": {}, "-": {}}
)

// Frame is a table with ordered columns.
type Frame struct {
	cols  []string
	index map[string]int
	rows  []Row
}

// New returns an empty frame with the given columns.
func New(cols ...string) *Frame {
	f := &Frame{index: make(map[string]int)}
	for _, c := range cols {
		f.AddColumn(c)
	}
	return f
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	copy(out, f.cols)
	return out
}

// Rows returns the rows in order. Callers may mutate cells in place.
func (f *Frame) Rows() []Row { return f.rows }

// Len is the number of rows.
func (f *Frame) Len() int { return len(f.rows) }

// HasColumn reports whether col is present.
func (f *Frame) HasColumn(col string) bool {
	_, ok := f.index[col]
	return ok
}

// AddColumn appends col if it is not already present.
func (f *Frame) AddColumn(col string) bool {
	if f.HasColumn(col) {
		return false
	}
	f.index[col] = len(f.cols)
	f.cols = append(f.cols, col)
	return true
}

// InsertColumn places col at position pos, moving it if it already exists.
func (f *Frame) InsertColumn(pos int, col string) {
	if i, ok := f.index[col]; ok {
		f.cols = append(f.cols[:i], f.cols[i+1:]...)
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(f.cols) {
		pos = len(f.cols)
	}
	f.cols = append(f.cols[:pos], append([]string{col}, f.cols[pos:]...)...)
	f.reindex()
}

// Append adds a row. Keys naming unknown columns add those columns in sorted order.
func (f *Frame) Append(r Row) {
	var extra []string
	for k := range r {
		if !f.HasColumn(k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		f.AddColumn(k)
	}
	f.rows = append(f.rows, r)
}

// DropColumns removes the named columns from the frame and every row.
func (f *Frame) DropColumns(cols ...string) {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		if f.HasColumn(c) {
			drop[c] = true
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := f.cols[:0]
	for _, c := range f.cols {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	f.cols = kept
	f.reindex()
	for _, r := range f.rows {
		for c := range drop {
			delete(r, c)
		}
	}
}

// MapColumns renames every column through fn. When two columns map to the
// same name the first one wins and the later column is dropped.
// It returns the names of the dropped source columns.
func (f *Frame) MapColumns(fn func(string) string) []string {
	var dropped []string
	newCols := make([]string, 0, len(f.cols))
	rename := make(map[string]string, len(f.cols))
	seen := make(map[string]bool, len(f.cols))
	for _, c := range f.cols {
		n := fn(c)
		if seen[n] {
			dropped = append(dropped, c)
			continue
		}
		seen[n] = true
		rename[c] = n
		newCols = append(newCols, n)
	}
	for i, r := range f.rows {
		nr := make(Row, len(r))
		for old, n := range rename {
			if v, ok := r[old]; ok {
				nr[n] = v
			}
		}
		f.rows[i] = nr
	}
	f.cols = newCols
	f.reindex()
	return dropped
}

// Rename renames columns by exact name. Missing source columns are ignored.
func (f *Frame) Rename(m map[string]string) {
	f.MapColumns(func(c string) string {
		if n, ok := m[c]; ok {
			return n
		}
		return c
	})
}

// Select returns a new frame with only the given columns, in that order.
// Columns absent from f are created empty.
func (f *Frame) Select(cols ...string) *Frame {
	out := New(cols...)
	for _, r := range f.rows {
		nr := make(Row, len(cols))
		for _, c := range cols {
			if v, ok := r[c]; ok {
				nr[c] = v
			}
		}
		out.rows = append(out.rows, nr)
	}
	return out
}

// Filter returns a new frame holding the rows for which keep returns true.
// Rows are shared with f.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	out := New(f.cols...)
	for _, r := range f.rows {
		if keep(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// SortStable sorts rows in place.
func (f *Frame) SortStable(less func(a, b Row) bool) {
	sort.SliceStable(f.rows, func(i, j int) bool { return less(f.rows[i], f.rows[j]) })
}

// Values returns the row as a slice aligned with Columns. Nulls are nil.
func (f *Frame) Values(r Row) []*string {
	out := make([]*string, len(f.cols))
	for i, c := range f.cols {
		if v, ok := r[c]; ok {
			v := v
			out[i] = &v
		}
	}
	return out
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.cols))
	for i, c := range f.cols {
		f.index[c] = i
	}
}

// Concat stacks frames. Columns are the union in first-seen order.
func Concat(frames ...*Frame) *Frame {
	out := New()
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, c := range f.cols {
			out.AddColumn(c)
		}
		out.rows = append(out.rows, f.rows...)
	}
	return out
}

// ReadCSV parses a headed CSV. Cells whose text is in nulls become null.
// Repeated header names get a ".N" suffix.
func ReadCSV(ctx context.Context, r io.Reader, nulls Nulls) (*Frame, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := Stream(ctx, r, StreamOptions{HeaderCh: headerCh, LazyQuotes: true})

	f := New()
	var header []string
	for rec := range rowCh {
		if header == nil {
			header = f.setHeader(<-headerCh)
		}
		row := make(Row, len(header))
		for i, v := range rec {
			if i >= len(header) {
				break
			}
			if _, isNull := nulls[v]; isNull {
				continue
			}
			row[header[i]] = v
		}
		f.rows = append(f.rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if header == nil {
		select {
		case h := <-headerCh:
			f.setHeader(h)
		default:
		}
	}
	return f, nil
}

func (f *Frame) setHeader(h []string) []string {
	header := make([]string, len(h))
	for i, c := range h {
		name := c
		for n := 1; f.HasColumn(name); n++ {
			name = fmt.Sprintf("%s.%d", c, n)
		}
		f.AddColumn(name)
		header[i] = name
	}
	return header
}

// ReadFile reads a CSV file into a frame.
func ReadFile(ctx context.Context, path string, nulls Nulls) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "frame: open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	f, err := ReadCSV(ctx, fh, nulls)
	if err != nil {
		return nil, eris.Wrapf(err, "frame: read %s", path)
	}
	return f, nil
}

// WriteCSV writes the frame with a header row. Nulls are written empty.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.cols); err != nil {
		return eris.Wrap(err, "frame: write header")
	}
	rec := make([]string, len(f.cols))
	for _, r := range f.rows {
		for i, c := range f.cols {
			rec[i] = r[c]
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "frame: write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "frame: flush")
	}
	return nil
}

// WriteFile writes the frame to path through a temp file and rename.
func (f *Frame) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "frame: mkdir for %s", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".frame-*.tmp")
	if err != nil {
		return eris.Wrapf(err, "frame: create temp for %s", path)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := f.WriteCSV(tmp); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "frame: close temp for %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "frame: rename to %s", path)
	}
	return nil
}
