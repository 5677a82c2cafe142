package browser

import (
	"context"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rotisserie/eris"
)

// PlaywrightLauncher runs Chromium through playwright.
type PlaywrightLauncher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewPlaywright starts the playwright driver and launches Chromium.
func NewPlaywright(opts LaunchOptions) (*PlaywrightLauncher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, eris.Wrap(err, "browser: start playwright")
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, eris.Wrap(err, "browser: launch chromium")
	}
	return &PlaywrightLauncher{pw: pw, browser: b}, nil
}

// NewSession opens a fresh browser context.
func (l *PlaywrightLauncher) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ctxOpts playwright.BrowserNewContextOptions
	if opts.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	bc, err := l.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, eris.Wrap(err, "browser: new context")
	}
	return &pwSession{bc: bc}, nil
}

// Close shuts the browser and the driver down.
func (l *PlaywrightLauncher) Close() error {
	var first error
	if err := l.browser.Close(); err != nil {
		first = eris.Wrap(err, "browser: close chromium")
	}
	if err := l.pw.Stop(); err != nil && first == nil {
		first = eris.Wrap(err, "browser: stop playwright")
	}
	return first
}

type pwSession struct {
	bc playwright.BrowserContext
}

func (s *pwSession) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.bc.NewPage()
	if err != nil {
		return nil, eris.Wrap(err, "browser: new page")
	}
	return &pwPage{page: p}, nil
}

func (s *pwSession) Close() error {
	if err := s.bc.Close(); err != nil {
		return eris.Wrap(err, "browser: close context")
	}
	return nil
}

type pwPage struct {
	page playwright.Page
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *pwPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   ms(effectiveTimeout(ctx, timeout)),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return eris.Wrapf(err, "browser: goto %s", url)
	}
	return nil
}

// all builds the playwright locator for every match of l.
func (p *pwPage) all(l Locator) playwright.Locator {
	var base playwright.Locator
	if l.Scope != "" {
		base = p.page.Locator(l.Scope).First()
	}
	switch {
	case l.Role != "":
		if base != nil {
			opts := playwright.LocatorGetByRoleOptions{}
			if l.Name != "" {
				opts.Name = l.Name
				opts.Exact = playwright.Bool(l.Exact)
			}
			base = base.GetByRole(playwright.AriaRole(l.Role), opts)
		} else {
			opts := playwright.PageGetByRoleOptions{}
			if l.Name != "" {
				opts.Name = l.Name
				opts.Exact = playwright.Bool(l.Exact)
			}
			base = p.page.GetByRole(playwright.AriaRole(l.Role), opts)
		}
	case l.Text != "":
		if base != nil {
			base = base.GetByText(l.Text, playwright.LocatorGetByTextOptions{Exact: playwright.Bool(l.Exact)})
		} else {
			base = p.page.GetByText(l.Text, playwright.PageGetByTextOptions{Exact: playwright.Bool(l.Exact)})
		}
	default:
		if base != nil {
			base = base.Locator(l.CSS)
		} else {
			base = p.page.Locator(l.CSS)
		}
	}
	if l.HasText != "" {
		base = base.Filter(playwright.LocatorFilterOptions{HasText: l.HasText})
	}
	return base
}

// locate narrows l to its Nth match.
func (p *pwPage) locate(l Locator) playwright.Locator {
	return p.all(l).Nth(l.Nth)
}

func (p *pwPage) Click(ctx context.Context, l Locator, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.locate(l).Click(playwright.LocatorClickOptions{Timeout: ms(effectiveTimeout(ctx, timeout))}); err != nil {
		return eris.Wrapf(err, "browser: click %s", l)
	}
	return nil
}

func (p *pwPage) WaitFor(ctx context.Context, l Locator, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.locate(l).WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(effectiveTimeout(ctx, timeout)),
	})
	if err != nil {
		return eris.Wrapf(err, "browser: wait for %s", l)
	}
	return nil
}

func (p *pwPage) Count(ctx context.Context, l Locator) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.all(l).Count()
	if err != nil {
		return 0, eris.Wrapf(err, "browser: count %s", l)
	}
	return n, nil
}

func (p *pwPage) Enabled(ctx context.Context, l Locator) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := p.locate(l).IsEnabled()
	if err != nil {
		return false, eris.Wrapf(err, "browser: enabled %s", l)
	}
	return ok, nil
}

func (p *pwPage) Fill(ctx context.Context, l Locator, value string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.locate(l).Fill(value, playwright.LocatorFillOptions{Timeout: ms(effectiveTimeout(ctx, timeout))}); err != nil {
		return eris.Wrapf(err, "browser: fill %s", l)
	}
	return nil
}

func (p *pwPage) SelectOption(ctx context.Context, l Locator, value string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.locate(l).SelectOption(
		playwright.SelectOptionValues{Values: &[]string{value}},
		playwright.LocatorSelectOptionOptions{Timeout: ms(effectiveTimeout(ctx, timeout))},
	)
	if err != nil {
		return eris.Wrapf(err, "browser: select %q in %s", value, l)
	}
	return nil
}

func (p *pwPage) RowTexts(ctx context.Context, rows Locator, cellCSS string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := p.all(rows).All()
	if err != nil {
		return nil, eris.Wrapf(err, "browser: rows %s", rows)
	}
	out := make([]string, 0, len(all))
	for _, row := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		texts, err := row.Locator(cellCSS).AllInnerTexts()
		if err != nil {
			return nil, eris.Wrapf(err, "browser: cells of %s", rows)
		}
		out = append(out, firstNonEmpty(texts))
	}
	return out, nil
}

func (p *pwPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := p.page.Content()
	if err != nil {
		return "", eris.Wrap(err, "browser: page content")
	}
	return html, nil
}

func (p *pwPage) Close() error {
	if err := p.page.Close(); err != nil {
		return eris.Wrap(err, "browser: close page")
	}
	return nil
}

func firstNonEmpty(texts []string) string {
	for _, t := range texts {
		if s := strings.TrimSpace(t); s != "" {
			return s
		}
	}
	return ""
}
