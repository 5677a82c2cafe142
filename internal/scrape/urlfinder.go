package scrape

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/config"
)

var (
	stockListingToggle = browser.ByCSS("#stocklistingRef i")
	txtStockName       = browser.ByText("Stock Name")
	stockSearchBox     = browser.ByRole("textbox", "Search").Within("#stocklistingRef")
)

const urlSearchTimeout = 30 * time.Second

// URLFinder resolves a company id to its stock detail page by searching the
// exchange's stock listing.
type URLFinder struct {
	baseURL       string
	stocksURL     string
	debugDir      string
	attempts      int
	actionTimeout time.Duration
	// settle is multiplied by the attempt number after each page load.
	settle time.Duration
	typing time.Duration
	log    *zap.Logger
}

// NewURLFinder returns a URLFinder configured from cfg.
func NewURLFinder(cfg *config.Config) *URLFinder {
	attempts := cfg.Batch.URLAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &URLFinder{
		baseURL:       strings.TrimRight(cfg.Exchange.BaseURL, "/"),
		stocksURL:     cfg.Exchange.StocksURL,
		debugDir:      cfg.Paths.DebugDir,
		attempts:      attempts,
		actionTimeout: time.Duration(cfg.Browser.ActionTimeoutMs) * time.Millisecond,
		settle:        3 * time.Second,
		typing:        1500 * time.Millisecond,
		log:           zap.L().With(zap.String("component", "scrape.urlfinder")),
	}
}

// Find returns the detail URL for companyID, or "" when the search shows no
// such stock. Page errors are retried with a growing wait; a debug snapshot
// of each failed attempt is written to the debug directory.
func (f *URLFinder) Find(ctx context.Context, page browser.Page, companyID string) (string, error) {
	log := f.log.With(zap.String("company_id", companyID))

	var last error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		url, err := f.search(ctx, page, companyID, time.Duration(attempt)*f.settle)
		if err == nil {
			return url, nil
		}
		if ctx.Err() != nil {
			return "", NewError(KindCancelled, companyID, ctx.Err())
		}
		last = err
		log.Warn("url search failed", zap.Int("attempt", attempt), zap.Error(err))
		f.writeDebug(ctx, page, companyID)
		if err := sleep(ctx, time.Duration(attempt)*f.settle); err != nil {
			return "", NewError(KindCancelled, companyID, err)
		}
	}
	return "", pageFailure(ctx, page, KindNetworkError, companyID,
		eris.Wrapf(last, "scrape: url search failed after %d attempts", f.attempts))
}

func (f *URLFinder) search(ctx context.Context, page browser.Page, companyID string, settle time.Duration) (string, error) {
	if err := page.Goto(ctx, f.stocksURL, urlSearchTimeout); err != nil {
		return "", err
	}
	if err := sleep(ctx, settle); err != nil {
		return "", err
	}
	steps := []browser.Locator{stockListingToggle, txtStockName, txtStockName, stockSearchBox}
	for _, l := range steps {
		if err := page.Click(ctx, l, f.actionTimeout); err != nil {
			return "", err
		}
	}
	if err := page.Fill(ctx, stockSearchBox, companyID, f.actionTimeout); err != nil {
		return "", err
	}
	if err := sleep(ctx, f.typing); err != nil {
		return "", err
	}

	doc, err := snapshot(ctx, page)
	if err != nil {
		return "", err
	}
	href := FindStockLink(doc, companyID)
	if href == "" {
		return "", nil
	}
	return f.absolute(href), nil
}

// FindStockLink returns the href of the first link holding a span whose text
// is exactly code.
func FindStockLink(doc *goquery.Document, code string) string {
	var href string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		exact := a.Find("span").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.TrimSpace(s.Text()) == code
		})
		if exact.Length() == 0 {
			return true
		}
		href, _ = a.Attr("href")
		return false
	})
	return strings.TrimSpace(href)
}

func (f *URLFinder) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return f.baseURL + href
}

func (f *URLFinder) writeDebug(ctx context.Context, page browser.Page, companyID string) {
	if f.debugDir == "" {
		return
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return
	}
	if err := os.MkdirAll(f.debugDir, 0o755); err != nil {
		f.log.Debug("debug dir", zap.Error(err))
		return
	}
	path := filepath.Join(f.debugDir, companyID+".html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		f.log.Debug("write debug html", zap.String("path", path), zap.Error(err))
	}
}
