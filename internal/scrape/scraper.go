// Package scrape drives exchange pages into tables: statement grids,
// profile sections, market statistics, listing directories and detail URLs.
package scrape

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bursa-cli/internal/browser"
)

// snapshot parses the current page HTML.
func snapshot(ctx context.Context, page browser.Page) (*goquery.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse snapshot")
	}
	return doc, nil
}

// pageFailure classifies a failed page interaction for companyID. A page that
// turns out to be an anti-bot or error page is a network failure, anything
// else keeps the given kind.
func pageFailure(ctx context.Context, page browser.Page, kind Kind, companyID string, err error) *Error {
	if ctx.Err() != nil {
		return NewError(KindCancelled, companyID, ctx.Err())
	}
	if html, herr := page.HTML(ctx); herr == nil {
		if blocked, bt := DetectBlock(html); blocked {
			return NewError(KindNetworkError, companyID, eris.Wrapf(err, "scrape: page blocked (%s)", bt))
		}
	}
	return NewError(kind, companyID, err)
}

// cleanText trims a node's text and collapses inner runs of blank space.
func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
