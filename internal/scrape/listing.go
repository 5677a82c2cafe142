package scrape

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/model"
)

const (
	pageLengthSelect = `select[name="DataTables_Table_0_length"]`
	listingRows      = "table#DataTables_Table_0 tbody tr"
	stockCodeParam   = "stock_code="
	directoryMarker  = "listing_directory"
)

// ListingScraper reads the company directory of one market.
type ListingScraper struct {
	navTimeout    time.Duration
	actionTimeout time.Duration
	frameTries    int
	poll          time.Duration
	settle        time.Duration
	log           *zap.Logger
}

// NewListingScraper returns a ListingScraper configured from cfg.
func NewListingScraper(cfg config.BrowserConfig) *ListingScraper {
	return &ListingScraper{
		navTimeout:    time.Duration(cfg.NavTimeoutSecs) * time.Second,
		actionTimeout: 30 * time.Second,
		frameTries:    30,
		poll:          time.Second,
		settle:        2 * time.Second,
		log:           zap.L().With(zap.String("component", "scrape.listing")),
	}
}

// Scrape loads the directory at pageURL, switches the table to show every
// entry and returns the listed companies. Ids that are not valid company ids
// are dropped with a warning.
func (s *ListingScraper) Scrape(ctx context.Context, page browser.Page, pageURL string) ([]model.CompanyIdentity, error) {
	log := s.log.With(zap.String("url", pageURL))
	if err := page.Goto(ctx, pageURL, s.navTimeout); err != nil {
		return nil, eris.Wrapf(err, "scrape: load listing %s", pageURL)
	}
	if err := s.openDirectory(ctx, page, pageURL); err != nil {
		return nil, err
	}

	sel := browser.ByCSS(pageLengthSelect)
	if err := page.WaitFor(ctx, sel, s.actionTimeout); err != nil {
		return nil, eris.Wrap(err, "scrape: listing page-length control")
	}
	if err := page.SelectOption(ctx, sel, "-1", s.actionTimeout); err != nil {
		return nil, eris.Wrap(err, "scrape: show all listing rows")
	}
	if err := sleep(ctx, s.settle); err != nil {
		return nil, err
	}

	doc, err := snapshot(ctx, page)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: listing snapshot")
	}
	companies, rejected := ParseListing(doc)
	if len(rejected) > 0 {
		log.Warn("listing rows with invalid company ids dropped",
			zap.Int("count", len(rejected)), zap.Strings("ids", rejected))
	}
	log.Info("listing scraped", zap.Int("companies", len(companies)))
	return companies, nil
}

// openDirectory makes sure the page shows the directory table. It may be
// rendered inline or inside an iframe, in which case the frame document is
// opened directly.
func (s *ListingScraper) openDirectory(ctx context.Context, page browser.Page, pageURL string) error {
	for try := 0; try < s.frameTries; try++ {
		doc, err := snapshot(ctx, page)
		if err != nil {
			return eris.Wrap(err, "scrape: listing snapshot")
		}
		if doc.Find(pageLengthSelect).Length() > 0 {
			return nil
		}
		if src := directoryFrame(doc); src != "" {
			target, err := resolve(pageURL, src)
			if err != nil {
				return err
			}
			if err := page.Goto(ctx, target, s.navTimeout); err != nil {
				return eris.Wrapf(err, "scrape: load listing frame %s", target)
			}
			return nil
		}
		if err := sleep(ctx, s.poll); err != nil {
			return err
		}
	}
	return eris.Errorf("scrape: no directory table or frame in %s", pageURL)
}

func directoryFrame(doc *goquery.Document) string {
	var src string
	doc.Find("iframe[src]").EachWithBreak(func(_ int, f *goquery.Selection) bool {
		v, _ := f.Attr("src")
		if strings.Contains(v, directoryMarker) {
			src = v
			return false
		}
		return true
	})
	return src
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: parse %s", base)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: parse %s", ref)
	}
	return b.ResolveReference(r).String(), nil
}

// ParseListing reads the directory table rows. Each row's first link gives
// the company name and, through its stock_code parameter, the company id.
// Rows whose id cannot be normalised are returned in rejected.
func ParseListing(doc *goquery.Document) (companies []model.CompanyIdentity, rejected []string) {
	doc.Find(listingRows).Each(func(_ int, row *goquery.Selection) {
		a := row.Find("td a").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		i := strings.LastIndex(href, stockCodeParam)
		if i < 0 {
			return
		}
		raw := strings.TrimSpace(href[i+len(stockCodeParam):])
		if amp := strings.IndexByte(raw, '&'); amp >= 0 {
			raw = raw[:amp]
		}
		id, err := model.NormalizeCompanyID(raw)
		if err != nil {
			rejected = append(rejected, raw)
			return
		}
		companies = append(companies, model.CompanyIdentity{
			CompanyName: strings.TrimSpace(a.Text()),
			CompanyID:   id,
		})
	})
	return companies, rejected
}
