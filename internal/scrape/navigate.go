package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/model"
)

// Locators shared by the stock detail page flows.
var (
	btnFinancials = browser.ByRole("button", "Financials")
	btnStatements = browser.ByRole("button", "Statements")
	btnProfile    = browser.ByRole("button", "Profile")
	btnClose      = browser.ByRole("button", "Close")
	btnQuarterly  = browser.ByRole("button", "Quarterly")
	txtAnnual     = browser.ByText("Annual")
	tableBody     = browser.ByCSS("div.stock-table-body")
)

// tableWait bounds the wait for the statement grid after the click sequence.
const tableWait = 5 * time.Second

// Navigator drives a stock detail page to an annual statement grid.
type Navigator struct {
	attempts        int
	actionTimeout   time.Duration
	recoveryTimeout time.Duration
	log             *zap.Logger
}

// NewNavigator returns a Navigator using the timeouts in cfg.
func NewNavigator(cfg config.BrowserConfig) *Navigator {
	attempts := cfg.NavAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Navigator{
		attempts:        attempts,
		actionTimeout:   time.Duration(cfg.ActionTimeoutMs) * time.Millisecond,
		recoveryTimeout: time.Duration(cfg.RecoveryTimeoutMs) * time.Millisecond,
		log:             zap.L().With(zap.String("component", "scrape.navigator")),
	}
}

// Enter opens the Financials view of a freshly loaded detail page and
// dismisses the interstitial dialog if one appears.
func (n *Navigator) Enter(ctx context.Context, page browser.Page) error {
	if err := page.Click(ctx, btnFinancials, n.actionTimeout); err != nil {
		return eris.Wrap(err, "scrape: open financials")
	}
	if err := page.Click(ctx, btnClose, n.actionTimeout); err != nil {
		n.log.Debug("no interstitial to dismiss", zap.Error(err))
	}
	return nil
}

// Reach walks the statement tabs until the annual grid for st is visible.
// The tab row ignores clicks until it has settled, so Statements and
// Financials are toggled a few times first. On failure it recovers through
// the Profile tab and tries again, up to the configured attempt count.
func (n *Navigator) Reach(ctx context.Context, page browser.Page, st model.StatementType) error {
	steps := []browser.Locator{
		btnStatements,
		btnFinancials,
		btnStatements,
		btnFinancials,
		btnStatements,
		browser.ByRole("button", st.Tab()),
		btnQuarterly,
		txtAnnual,
	}

	var last error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		last = n.walk(ctx, page, steps)
		if last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.log.Warn("statement navigation failed, recovering via profile",
			zap.String("statement", string(st)),
			zap.Int("attempt", attempt),
			zap.Error(last),
		)
		if err := n.recover(ctx, page); err != nil {
			return eris.Wrapf(err, "scrape: recover %s navigation", st)
		}
	}
	return eris.Wrapf(last, "scrape: reach %s after %d attempts", st, n.attempts)
}

func (n *Navigator) walk(ctx context.Context, page browser.Page, steps []browser.Locator) error {
	for _, l := range steps {
		if err := page.Click(ctx, l, n.actionTimeout); err != nil {
			return err
		}
	}
	return page.WaitFor(ctx, tableBody, tableWait)
}

func (n *Navigator) recover(ctx context.Context, page browser.Page) error {
	if err := page.Click(ctx, btnProfile, n.actionTimeout); err != nil {
		return err
	}
	return page.Click(ctx, btnFinancials, n.recoveryTimeout)
}
