package scrape

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bursa-cli/internal/browser/browsertest"
	"github.com/sells-group/bursa-cli/internal/config"
)

const stockListing = `<html><body>
<div id="stocklistingRef"><i class="fa fa-search"></i><span>Stock Name</span>
  <input type="text" placeholder="Search"></div>
<a href="/market/listed-companies/list-of-companies/stock?stock_code=00510"><span>00510</span></a>
<a href="/stock/0051"><span>SIME</span><span>0051</span></a>
</body></html>`

func testFinder(t *testing.T) *URLFinder {
	t.Helper()
	cfg := &config.Config{
		Paths:    config.PathsConfig{DebugDir: t.TempDir()},
		Exchange: config.ExchangeConfig{BaseURL: "https://my.bursamalaysia.com/", StocksURL: "https://my.bursamalaysia.com/market/assets/equities/stocks"},
		Browser:  testBrowserConfig(),
		Batch:    config.BatchConfig{URLAttempts: 3},
	}
	f := NewURLFinder(cfg)
	f.settle = 0
	f.typing = 0
	return f
}

func TestFindStockLink_ExactSpan(t *testing.T) {
	t.Parallel()

	d := doc(t, stockListing)
	assert.Equal(t, "/stock/0051", FindStockLink(d, "0051"))
	assert.Equal(t, "", FindStockLink(d, "9999"))
}

func TestURLFinder_Find(t *testing.T) {
	page := browsertest.New(stockListing)
	f := testFinder(t)

	url, err := f.Find(context.Background(), page, "0051")
	require.NoError(t, err)
	assert.Equal(t, "https://my.bursamalaysia.com/stock/0051", url)
	assert.Equal(t, "0051", page.Filled[stockSearchBox.String()])
	assert.Len(t, page.Visited, 1)
}

func TestURLFinder_NoMatchIsNotRetried(t *testing.T) {
	page := browsertest.New(stockListing)
	f := testFinder(t)

	url, err := f.Find(context.Background(), page, "7777")
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Len(t, page.Visited, 1)
}

func TestURLFinder_RetriesAndWritesDebugHTML(t *testing.T) {
	page := browsertest.New(`<html><body><p>loading</p></body></html>`)
	f := testFinder(t)

	_, err := f.Find(context.Background(), page, "0051")
	require.Error(t, err)
	assert.Equal(t, KindNetworkError, KindOf(err))
	assert.Len(t, page.Visited, 3)

	html, err := os.ReadFile(filepath.Join(f.debugDir, "0051.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "loading")
}
