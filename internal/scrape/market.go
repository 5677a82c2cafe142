package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/model"
)

const (
	marketCapLabel = "Market Cap (Mil)"
	marketCapWait  = 10 * time.Second
	volumeWait     = 5 * time.Second
)

var (
	marketCapLocator = browser.ByCSS("div.sdt-stockinfo-label").Containing(marketCapLabel)
	volumeLocator    = browser.ByCSS("div.sdt-stockinfo.value div.sdt-stockinfo-text")
)

// MarketScraper reads market capitalisation and traded volume from a stock
// detail page.
type MarketScraper struct {
	navTimeout time.Duration
	log        *zap.Logger
}

// NewMarketScraper returns a MarketScraper configured from cfg.
func NewMarketScraper(cfg config.BrowserConfig) *MarketScraper {
	return &MarketScraper{
		navTimeout: time.Duration(cfg.NavTimeoutSecs) * time.Second,
		log:        zap.L().With(zap.String("component", "scrape.market")),
	}
}

// Scrape always returns a record for target. Figures that cannot be found
// stay empty; only a failed page load is reported as an error.
func (s *MarketScraper) Scrape(ctx context.Context, page browser.Page, target model.ScrapeTarget) (model.MarketInfo, error) {
	info := model.MarketInfo{CompanyID: target.CompanyID, SourceURL: target.URL}
	log := s.log.With(zap.String("company_id", target.CompanyID))

	if err := page.Goto(ctx, target.URL, s.navTimeout); err != nil {
		return info, pageFailure(ctx, page, KindNetworkError, target.CompanyID, err)
	}

	capOK := page.WaitFor(ctx, marketCapLocator, marketCapWait) == nil
	volOK := page.WaitFor(ctx, volumeLocator, volumeWait) == nil
	if !capOK && !volOK {
		log.Warn("market figures not found")
	}

	doc, err := snapshot(ctx, page)
	if err != nil {
		return info, pageFailure(ctx, page, KindNetworkError, target.CompanyID, err)
	}
	info.MarketCapMil, info.Volume = ParseMarketInfo(doc)
	if info.MarketCapMil == "" {
		log.Debug("market cap not found")
	}
	if info.Volume == "" {
		log.Debug("volume not found")
	}
	return info, nil
}

// ParseMarketInfo returns the market capitalisation (millions) and volume
// shown in the stock info strip. Missing figures are empty.
func ParseMarketInfo(doc *goquery.Document) (marketCap, volume string) {
	doc.Find("div.sdt-stockinfo-label").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if !strings.Contains(label.Text(), marketCapLabel) {
			return true
		}
		marketCap = strings.TrimSpace(label.Parent().ChildrenFiltered("div.sdt-stockinfo-text").First().Text())
		return false
	})
	volume = strings.TrimSpace(doc.Find("div.sdt-stockinfo.value div.sdt-stockinfo-text").First().Text())
	return marketCap, volume
}
