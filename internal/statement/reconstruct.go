// Package statement rebuilds the interleaved value / year-over-year grid of a
// financial statement page into a wide table keyed by fiscal date and row type.
package statement

import (
	"strings"
	"time"

	"github.com/sells-group/bursa-cli/internal/frame"
)

// HeaderMarker labels the block that carries the fiscal date row.
const HeaderMarker = "Amount Standardised"

// DateLayout is the layout of fiscal date labels on the statement pages.
const DateLayout = "2 Jan 2006"

const trendLine = "5-year trend"

// Output column names around the metric columns.
const (
	ColCompanyID = "company_id"
	ColYearType  = "Year/Type"
	ColSourceURL = "source_url"
)

// RowType distinguishes absolute figures from year-over-year changes.
type RowType string

const (
	RowValue RowType = "Value"
	RowYoY   RowType = "YoY %"
)

// Key identifies one output row.
type Key struct {
	Date time.Time
	Type RowType
}

// Label renders the key the way the Year/Type column stores it.
func (k Key) Label() string {
	return k.Date.Format(DateLayout) + " " + string(k.Type)
}

// Table is the reconstructed wide table. Keys and Metrics keep first-seen order.
type Table struct {
	// Ordinals maps column position to fiscal date; nil marks an unparsable label.
	Ordinals []*time.Time
	Keys     []Key
	Metrics  []string
	// ExtraHeaders counts header blocks seen once the ordinals are set. They are ignored.
	ExtraHeaders int

	cells     map[Key]map[string]*string
	metricSet map[string]bool
	header    bool
}

// Cell returns the cell for key and metric. present is false when the pair was
// never attributed to that period; a present cell may still hold nil.
func (t *Table) Cell(k Key, metric string) (value *string, present bool) {
	row, ok := t.cells[k]
	if !ok {
		return nil, false
	}
	value, present = row[metric]
	return value, present
}

// Len is the number of output rows.
func (t *Table) Len() int { return len(t.Keys) }

// HeaderFound reports whether a header block was seen.
func (t *Table) HeaderFound() bool { return t.header }

// DatedOrdinals counts the ordinals with a parsable date.
func (t *Table) DatedOrdinals() int {
	n := 0
	for _, d := range t.Ordinals {
		if d != nil {
			n++
		}
	}
	return n
}

// SplitCell turns the inner text of a grid row into block lines.
func SplitCell(text string) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// Reconstruct builds the wide table from raw row blocks. Line 0 of each block
// is the label; the rest alternates value, percent. It never fails: malformed
// input is repaired or dropped cell by cell.
func Reconstruct(blocks [][]string) *Table {
	t := &Table{
		cells:     make(map[Key]map[string]*string),
		metricSet: make(map[string]bool),
	}

	for _, block := range blocks {
		if len(block) == 0 {
			continue
		}
		label := strings.TrimSpace(block[0])
		rest := block[1:]

		if strings.Contains(label, HeaderMarker) {
			t.header = true
			if len(t.Ordinals) > 0 {
				t.ExtraHeaders++
				continue
			}
			t.Ordinals = parseOrdinals(rest)
			continue
		}

		t.addMetric(label, rest)
	}
	return t
}

func parseOrdinals(lines []string) []*time.Time {
	var out []*time.Time
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.EqualFold(line, trendLine) {
			continue
		}
		out = append(out, parseDateLabel(line))
	}
	return out
}

// parseDateLabel reads the last three whitespace-separated tokens as D MMM YYYY.
func parseDateLabel(line string) *time.Time {
	fields := strings.Fields(line)
	if len(fields) > 3 {
		fields = fields[len(fields)-3:]
	}
	d, err := time.Parse(DateLayout, strings.Join(fields, " "))
	if err != nil {
		return nil
	}
	return &d
}

func (t *Table) addMetric(metric string, rest []string) {
	pairs := make([]string, len(rest), len(rest)+1)
	copy(pairs, rest)
	if len(pairs)%2 != 0 {
		pairs = append(pairs, "")
	}

	for j := 0; j*2 < len(pairs); j++ {
		if j >= len(t.Ordinals) || t.Ordinals[j] == nil {
			continue
		}
		date := *t.Ordinals[j]
		val := cleanSlot(pairs[2*j])
		pct := cleanSlot(pairs[2*j+1])

		// A percent that landed in the value column moves to the percent slot.
		if val != nil && strings.HasSuffix(*val, "%") && (pct == nil || !strings.HasSuffix(*pct, "%")) {
			val, pct = nil, val
		}
		if val != nil && strings.HasSuffix(*val, "%") {
			val = nil
		}
		if pct != nil && !strings.HasSuffix(*pct, "%") {
			pct = nil
		}

		t.set(Key{Date: date, Type: RowValue}, metric, val)
		t.set(Key{Date: date, Type: RowYoY}, metric, pct)
	}
}

// cleanSlot trims a cell and maps empty and dash placeholders to nil.
func cleanSlot(s string) *string {
	s = strings.TrimSpace(s)
	switch s {
	case "", "-", "—":
		return nil
	}
	return &s
}

func (t *Table) set(k Key, metric string, v *string) {
	row, ok := t.cells[k]
	if !ok {
		row = make(map[string]*string)
		t.cells[k] = row
		t.Keys = append(t.Keys, k)
	}
	if !t.metricSet[metric] {
		t.metricSet[metric] = true
		t.Metrics = append(t.Metrics, metric)
	}
	row[metric] = v
}

// Frame renders the table as company_id, Year/Type, metrics..., source_url.
// Metrics that are null in every row are still emitted as columns.
func (t *Table) Frame(companyID, sourceURL string) *frame.Frame {
	cols := make([]string, 0, len(t.Metrics)+3)
	cols = append(cols, ColCompanyID, ColYearType)
	cols = append(cols, t.Metrics...)
	cols = append(cols, ColSourceURL)

	f := frame.New(cols...)
	for _, k := range t.Keys {
		r := frame.Row{
			ColCompanyID: companyID,
			ColYearType:  k.Label(),
			ColSourceURL: sourceURL,
		}
		for m, v := range t.cells[k] {
			if v != nil {
				r[m] = *v
			}
		}
		f.Append(r)
	}
	return f
}
