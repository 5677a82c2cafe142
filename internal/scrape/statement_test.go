package scrape

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bursa-cli/internal/browser/browsertest"
	"github.com/sells-group/bursa-cli/internal/model"
)

const detailNav = `
<button>Financials</button><button>Close</button><button>Profile</button>
<button>Statements</button><button>Balance Sheet</button><button>Cash Flow</button>
<button>Income Statement</button><button>Quarterly</button><ul><li><span>Annual</span></li></ul>`

func detailPage(rows string) string {
	return `<html><body>` + detailNav + `<div class="stock-table-body">` + rows + `</div></body></html>`
}

func gridRow(text string) string {
	return `<div class="d-flex stock-table-flex w-100"><div>` + text + `</div></div>`
}

var target = model.ScrapeTarget{CompanyID: "0051", URL: "https://my.bursamalaysia.com/stock/0051"}

func TestStatementScraper_Scrape(t *testing.T) {
	page := browsertest.New(detailPage(
		gridRow("Amount Standardised (MYR '000)\n5-Year Trend\n31 Mar 2023\n31 Mar 2024") +
			gridRow("Revenue\n1,000\n+5%\n1,200\n+8%") +
			gridRow("Goodwill\n-\n-\n-\n-") +
			`<div class="d-flex stock-table-flex w-100"><div> </div></div>`,
	))

	s := NewStatementScraper(testBrowserConfig())
	f, err := s.Scrape(context.Background(), page, model.StatementBalance, target)
	require.NoError(t, err)

	assert.Equal(t, []string{target.URL}, page.Visited)
	assert.Equal(t, []string{"company_id", "Year/Type", "Revenue", "Goodwill", "source_url"}, f.Columns())
	require.Equal(t, 4, f.Len())
	assert.Equal(t, "31 Mar 2023 Value", f.Rows()[0]["Year/Type"])
	assert.Equal(t, "1,000", f.Rows()[0]["Revenue"])
	assert.Equal(t, "+8%", f.Rows()[3]["Revenue"])
}

func TestStatementScraper_NoRows(t *testing.T) {
	page := browsertest.New(detailPage(""))

	_, err := NewStatementScraper(testBrowserConfig()).Scrape(context.Background(), page, model.StatementIncome, target)
	require.Error(t, err)
	assert.Equal(t, KindNoRowsFound, KindOf(err))
}

func TestStatementScraper_UnparsableDates(t *testing.T) {
	page := browsertest.New(detailPage(
		gridRow("Amount Standardised (MYR '000)\nRestated\nn/a") +
			gridRow("Revenue\n1\n2%\n3\n4%"),
	))

	_, err := NewStatementScraper(testBrowserConfig()).Scrape(context.Background(), page, model.StatementCashFlow, target)
	require.Error(t, err)
	assert.Equal(t, KindUnparsableDate, KindOf(err))
}

func TestStatementScraper_NavigationFailed(t *testing.T) {
	// No Quarterly toggle: every walk fails.
	page := browsertest.New(`<html><body><button>Financials</button><button>Profile</button>
<button>Statements</button><button>Balance Sheet</button></body></html>`)

	_, err := NewStatementScraper(testBrowserConfig()).Scrape(context.Background(), page, model.StatementBalance, target)
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindNavigationFailed, se.Kind)
	assert.Equal(t, "0051", se.CompanyID)
}

func TestStatementScraper_BlockedPageIsNetworkError(t *testing.T) {
	page := browsertest.New(`<html><body>Checking your browser before accessing the site</body></html>`)

	_, err := NewStatementScraper(testBrowserConfig()).Scrape(context.Background(), page, model.StatementBalance, target)
	require.Error(t, err)
	assert.Equal(t, KindNetworkError, KindOf(err))
	assert.Contains(t, err.Error(), "cloudflare")
}

func TestStatementScraper_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStatementScraper(testBrowserConfig()).Scrape(ctx, browsertest.New(detailPage("")), model.StatementBalance, target)
	assert.Equal(t, KindCancelled, KindOf(err))
}
