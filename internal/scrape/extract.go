package scrape

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/frame"
)

// Field is one named sub-field of a section row.
type Field struct {
	Name string
	CSS  string
}

// Extractor reads one page of a section from a DOM snapshot.
type Extractor func(doc *goquery.Document) *frame.Frame

// ExtractGrid reads the header-driven grid under scope. Header cells are the
// direct div children of .stock-table-head; each body row contributes its div
// descendants as cells. Rows whose cell count differs from the header are skipped.
func ExtractGrid(doc *goquery.Document, scope string) *frame.Frame {
	var headers []string
	doc.Find(scope + " .stock-table-head > div").Each(func(_ int, s *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(s.Text()))
	})

	f := frame.New()
	for i, h := range headers {
		name := h
		for n := 1; f.HasColumn(name); n++ {
			name = h + "." + strconv.Itoa(n)
		}
		headers[i] = name
		f.AddColumn(name)
	}

	doc.Find(scope + " .stock-table-body .stock-table-row").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("div")
		if cells.Length() != len(headers) {
			zap.L().Debug("grid row length mismatch, skipping",
				zap.String("scope", scope), zap.Int("row", i),
				zap.Int("cells", cells.Length()), zap.Int("headers", len(headers)))
			return
		}
		r := make(frame.Row, len(headers))
		cells.Each(func(j int, c *goquery.Selection) {
			r[headers[j]] = strings.TrimSpace(c.Text())
		})
		f.Append(r)
	})
	return f
}

// ExtractFields reads every body row under scope into one column per field.
// A sub-field missing from a row is null.
func ExtractFields(doc *goquery.Document, scope string, fields []Field) *frame.Frame {
	f := frame.New(fieldNames(fields)...)

	doc.Find(scope + " .stock-table-body .stock-table-row").Each(func(_ int, row *goquery.Selection) {
		r := make(frame.Row, len(fields))
		for _, fd := range fields {
			sub := row.Find(fd.CSS)
			if sub.Length() == 0 {
				continue
			}
			r[fd.Name] = strings.TrimSpace(sub.First().Text())
		}
		f.Append(r)
	})
	return f
}

// SectionExtractor reads a section by its named sub-fields. When rows exist
// but none of them carries any sub-field, the section is read as a
// header-driven grid instead.
func SectionExtractor(scope string, fields []Field) Extractor {
	return func(doc *goquery.Document) *frame.Frame {
		f := ExtractFields(doc, scope, fields)
		if f.Len() == 0 || anyCell(f) {
			return f
		}
		if g := ExtractGrid(doc, scope); len(g.Columns()) > 0 {
			zap.L().Debug("sub-fields missing, reading header grid", zap.String("scope", scope))
			return g
		}
		return f
	}
}

func anyCell(f *frame.Frame) bool {
	for _, r := range f.Rows() {
		if len(r) > 0 {
			return true
		}
	}
	return false
}

// Paginator walks a paged section by clicking the first enabled match of
// Next until none is left.
type Paginator struct {
	Next          browser.Locator
	Settle        time.Duration
	ActionTimeout time.Duration
	// MaxPages caps the walk for controls that never disable. Zero means 50.
	MaxPages int
}

// Collect extracts every page in encounter order. A page with no rows still
// tries to advance.
func (p Paginator) Collect(ctx context.Context, page browser.Page, extract Extractor) (*frame.Frame, error) {
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}

	var pages []*frame.Frame
	for n := 1; ; n++ {
		doc, err := snapshot(ctx, page)
		if err != nil {
			return nil, eris.Wrapf(err, "scrape: snapshot page %d", n)
		}
		if f := extract(doc); f.Len() > 0 {
			pages = append(pages, f)
		}

		if n >= maxPages {
			zap.L().Warn("pagination cap reached", zap.Int("pages", n), zap.Stringer("next", p.Next))
			break
		}
		advanced, err := p.advance(ctx, page)
		if err != nil {
			return nil, err
		}
		if !advanced {
			break
		}
		if err := sleep(ctx, p.Settle); err != nil {
			return nil, err
		}
	}
	return frame.Concat(pages...), nil
}

func (p Paginator) advance(ctx context.Context, page browser.Page) (bool, error) {
	count, err := page.Count(ctx, p.Next)
	if err != nil {
		return false, eris.Wrap(err, "scrape: count next controls")
	}
	for i := 0; i < count; i++ {
		l := p.Next.At(i)
		ok, err := page.Enabled(ctx, l)
		if err != nil || !ok {
			continue
		}
		if err := page.Click(ctx, l, p.ActionTimeout); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, nil
		}
		return true, nil
	}
	return false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
