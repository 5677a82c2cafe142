package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/frame"
	"github.com/sells-group/bursa-cli/internal/model"
	"github.com/sells-group/bursa-cli/internal/statement"
)

var statementRows = browser.ByCSS("div.d-flex.stock-table-flex.w-100")

// StatementScraper reads one annual financial statement of one company.
type StatementScraper struct {
	nav        *Navigator
	navTimeout time.Duration
	log        *zap.Logger
}

// NewStatementScraper returns a StatementScraper configured from cfg.
func NewStatementScraper(cfg config.BrowserConfig) *StatementScraper {
	return &StatementScraper{
		nav:        NewNavigator(cfg),
		navTimeout: time.Duration(cfg.NavTimeoutSecs) * time.Second,
		log:        zap.L().With(zap.String("component", "scrape.statement")),
	}
}

// Scrape loads the company's detail page, reaches the statement grid for st
// and returns the reconstructed wide table. Failures are *Error values.
func (s *StatementScraper) Scrape(ctx context.Context, page browser.Page, st model.StatementType, target model.ScrapeTarget) (*frame.Frame, error) {
	cid := target.CompanyID
	log := s.log.With(zap.String("company_id", cid), zap.String("statement", string(st)))

	if err := page.Goto(ctx, target.URL, s.navTimeout); err != nil {
		return nil, pageFailure(ctx, page, KindNetworkError, cid, err)
	}
	if err := s.nav.Enter(ctx, page); err != nil {
		return nil, pageFailure(ctx, page, KindNavigationFailed, cid, err)
	}
	if err := s.nav.Reach(ctx, page, st); err != nil {
		return nil, pageFailure(ctx, page, KindNavigationFailed, cid, err)
	}

	texts, err := page.RowTexts(ctx, statementRows, "div")
	if err != nil {
		return nil, pageFailure(ctx, page, KindNetworkError, cid, eris.Wrap(err, "scrape: read statement rows"))
	}
	blocks := make([][]string, 0, len(texts))
	for _, t := range texts {
		if lines := statement.SplitCell(t); len(lines) > 0 {
			blocks = append(blocks, lines)
		}
	}

	tbl := statement.Reconstruct(blocks)
	if tbl.ExtraHeaders > 0 {
		log.Warn("statement page has more than one date header, using the first",
			zap.Int("extra_headers", tbl.ExtraHeaders))
	}

	switch {
	case !tbl.HeaderFound():
		return nil, NewError(KindNoRowsFound, cid, eris.Errorf("scrape: %d rows, no date header", len(blocks)))
	case tbl.DatedOrdinals() == 0:
		return nil, NewError(KindUnparsableDate, cid, eris.Errorf("scrape: no parsable fiscal date in %d header labels", len(tbl.Ordinals)))
	case tbl.Len() == 0:
		return nil, NewError(KindNoRowsFound, cid, eris.New("scrape: no metric rows"))
	}

	log.Debug("statement reconstructed",
		zap.Int("rows", tbl.Len()),
		zap.Int("metrics", len(tbl.Metrics)),
	)
	return tbl.Frame(cid, target.URL), nil
}
