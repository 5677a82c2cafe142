package scrape

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/browser/browsertest"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestExtractGrid_SkipsMismatchedRows(t *testing.T) {
	t.Parallel()

	d := doc(t, `<div class="sec">
  <div class="stock-table-head"><div>Name</div><div>Role</div></div>
  <div class="stock-table-body">
    <div class="stock-table-row"><div>Tan Sri A</div><div>Chairman</div></div>
    <div class="stock-table-row"><div>Broken</div></div>
    <div class="stock-table-row"><div>Datuk B</div><div>Director</div></div>
  </div>
</div>`)

	f := ExtractGrid(d, "div.sec")
	assert.Equal(t, []string{"Name", "Role"}, f.Columns())
	require.Equal(t, 2, f.Len())
	assert.Equal(t, "Datuk B", f.Rows()[1]["Name"])
}

func TestExtractGrid_Empty(t *testing.T) {
	t.Parallel()

	f := ExtractGrid(doc(t, `<div class="sec"></div>`), "div.sec")
	assert.Zero(t, f.Len())
}

func TestExtractFields_MissingSubFieldIsNull(t *testing.T) {
	t.Parallel()

	d := doc(t, `<div class="mgmt"><div class="stock-table-body">
  <div class="stock-table-row"><span class="nameCol"> Tan Sri A </span><span class="roleCol">Chairman</span></div>
  <div class="stock-table-row"><span class="nameCol">Datuk B</span><span class="sinceCol">2019</span></div>
</div></div>`)

	f := ExtractFields(d, "div.mgmt", managementFields)
	assert.Equal(t, []string{"Name", "Designation", "Role", "Since"}, f.Columns())
	require.Equal(t, 2, f.Len())

	first := f.Rows()[0]
	assert.Equal(t, "Tan Sri A", first["Name"])
	_, ok := first.Get("Designation")
	assert.False(t, ok)
	assert.Equal(t, "2019", f.Rows()[1]["Since"])
}

func TestSectionExtractor_FallsBackToHeaderGrid(t *testing.T) {
	t.Parallel()

	d := doc(t, `<div class="mgmt">
  <div class="stock-table-head"><div>Name</div><div>Role</div></div>
  <div class="stock-table-body">
    <div class="stock-table-row"><div>Tan Sri A</div><div>Chairman</div></div>
  </div>
</div>`)

	f := SectionExtractor("div.mgmt", managementFields)(d)
	assert.Equal(t, []string{"Name", "Role"}, f.Columns())
	require.Equal(t, 1, f.Len())
	assert.Equal(t, "Chairman", f.Rows()[0]["Role"])
}

func TestSectionExtractor_PrefersSubFields(t *testing.T) {
	t.Parallel()

	d := doc(t, `<div class="mgmt">
  <div class="stock-table-head"><div>Name</div></div>
  <div class="stock-table-body">
    <div class="stock-table-row"><span class="nameCol">Datuk B</span></div>
  </div>
</div>`)

	f := SectionExtractor("div.mgmt", managementFields)(d)
	assert.Equal(t, []string{"Name", "Designation", "Role", "Since"}, f.Columns())
	require.Equal(t, 1, f.Len())
	assert.Equal(t, "Datuk B", f.Rows()[0]["Name"])
}

func pagedTable(page, pages int) string {
	next := `<button>Next</button>`
	if page == pages {
		next = `<button disabled>Next</button>`
	}
	return fmt.Sprintf(`<div class="t"><div class="stock-table-body">
<div class="stock-table-row"><span class="nameCol">person %d</span></div>
</div></div><button disabled>Next</button>%s`, page, next)
}

func TestPaginator_CollectsUntilDisabled(t *testing.T) {
	t.Parallel()

	const pages = 3
	current := 1
	next := browser.ByCSS("button").Containing("Next")
	p := browsertest.New(pagedTable(1, pages)).
		OnClick(next.At(1), func(p *browsertest.Page) error {
			current++
			p.SetHTML(pagedTable(current, pages))
			return nil
		})

	pg := Paginator{Next: next}
	f, err := pg.Collect(context.Background(), p, SectionExtractor("div.t", managementFields))
	require.NoError(t, err)
	require.Equal(t, 3, f.Len())
	assert.Equal(t, "person 1", f.Rows()[0]["Name"])
	assert.Equal(t, "person 3", f.Rows()[2]["Name"])
	assert.Len(t, p.Clicks, 2)
}

func TestPaginator_StopsAtCap(t *testing.T) {
	t.Parallel()

	next := browser.ByCSS("button").Containing("Next")
	p := browsertest.New(pagedTable(1, 1000))
	pg := Paginator{Next: next, MaxPages: 4}

	f, err := pg.Collect(context.Background(), p, SectionExtractor("div.t", managementFields))
	require.NoError(t, err)
	// The page never changes, so every visit yields the same row.
	assert.Equal(t, 4, f.Len())
	assert.Len(t, p.Clicks, 3)
}

func TestPaginator_BlankPageStillAdvances(t *testing.T) {
	t.Parallel()

	next := browser.ByCSS("button").Containing("Next")
	blank := `<div class="t"><div class="stock-table-body"></div></div><button>Next</button>`
	p := browsertest.New(blank)
	p.OnClick(next, func(p *browsertest.Page) error {
		p.SetHTML(pagedTable(1, 1))
		return nil
	})

	f, err := Paginator{Next: next}.Collect(context.Background(), p, SectionExtractor("div.t", managementFields))
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())
}
