package browser

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
)

const rodPoll = 100 * time.Millisecond

// roleSelectors maps the ARIA roles the scrapers use onto CSS candidates.
var roleSelectors = map[string]string{
	"button":   `button, [role="button"], input[type="button"], input[type="submit"]`,
	"link":     `a[href], [role="link"]`,
	"textbox":  `input:not([type]), input[type="text"], input[type="search"], textarea, [role="textbox"]`,
	"listitem": `li, [role="listitem"]`,
	"tab":      `[role="tab"]`,
}

// RodLauncher runs Chromium through the DevTools protocol with rod.
type RodLauncher struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewRod launches a local Chromium and connects to it.
func NewRod(opts LaunchOptions) (*RodLauncher, error) {
	l := launcher.New().Headless(opts.Headless)
	u, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch rod")
	}
	b := rod.New().ControlURL(u)
	if opts.SlowMo > 0 {
		b = b.SlowMotion(opts.SlowMo)
	}
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, eris.Wrap(err, "browser: connect rod")
	}
	return &RodLauncher{browser: b, launcher: l}, nil
}

// NewSession opens an incognito browser context.
func (r *RodLauncher) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inc, err := r.browser.Incognito()
	if err != nil {
		return nil, eris.Wrap(err, "browser: incognito context")
	}
	return &rodSession{browser: inc, userAgent: opts.UserAgent}, nil
}

// Close closes the browser and kills the process.
func (r *RodLauncher) Close() error {
	var first error
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			first = eris.Wrap(err, "browser: close rod")
		}
	}
	if r.launcher != nil {
		r.launcher.Kill()
	}
	return first
}

type rodSession struct {
	browser   *rod.Browser
	userAgent string
}

func (s *rodSession) NewPage(ctx context.Context) (Page, error) {
	p, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, eris.Wrap(err, "browser: new rod page")
	}
	if s.userAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.userAgent}); err != nil {
			_ = p.Close()
			return nil, eris.Wrap(err, "browser: set user agent")
		}
	}
	return &rodPage{page: p}, nil
}

func (s *rodSession) Close() error {
	if err := s.browser.Close(); err != nil {
		return eris.Wrap(err, "browser: close incognito context")
	}
	return nil
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	pg := p.page.Context(ctx)
	if t := effectiveTimeout(ctx, timeout); t > 0 {
		pg = pg.Timeout(t)
	}
	if err := pg.Navigate(url); err != nil {
		return eris.Wrapf(err, "browser: goto %s", url)
	}
	if err := pg.WaitDOMStable(time.Second, 0); err != nil {
		return eris.Wrapf(err, "browser: wait load %s", url)
	}
	return nil
}

// matches returns every element matched by l, ignoring Nth.
func (p *rodPage) matches(ctx context.Context, l Locator) (rod.Elements, error) {
	pg := p.page.Context(ctx)

	css := l.CSS
	if l.Role != "" {
		sel, ok := roleSelectors[l.Role]
		if !ok {
			sel = `[role="` + l.Role + `"]`
		}
		css = sel
	} else if l.Text != "" {
		css = "*"
	}

	var els rod.Elements
	if l.Scope != "" {
		scopes, err := pg.Elements(l.Scope)
		if err != nil {
			return nil, err
		}
		if len(scopes) == 0 {
			return nil, nil
		}
		els, err = scopes.First().Elements(css)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		els, err = pg.Elements(css)
		if err != nil {
			return nil, err
		}
	}

	out := els[:0]
	for _, el := range els {
		keep, err := p.keep(el, l)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, el)
		}
	}
	if l.Text != "" {
		out = innermost(out)
	}
	return out, nil
}

func (p *rodPage) keep(el *rod.Element, l Locator) (bool, error) {
	if l.Role == "" && l.Text == "" && l.HasText == "" {
		return true, nil
	}
	text, err := el.Text()
	if err != nil {
		return false, err
	}
	text = strings.TrimSpace(text)

	if l.Role != "" && l.Name != "" {
		name := text
		if name == "" || l.Role == "textbox" {
			for _, attr := range []string{"aria-label", "placeholder", "value"} {
				if v, err := el.Attribute(attr); err == nil && v != nil && *v != "" {
					name = *v
					break
				}
			}
		}
		if !textMatches(name, l.Name, l.Exact) {
			return false, nil
		}
	}
	if l.Text != "" && !textMatches(text, l.Text, l.Exact) {
		return false, nil
	}
	if l.HasText != "" && !strings.Contains(strings.ToLower(text), strings.ToLower(l.HasText)) {
		return false, nil
	}
	return true, nil
}

// innermost drops matches that contain another match, so text lookups land
// on the element that owns the text rather than on its ancestors.
func innermost(els rod.Elements) rod.Elements {
	if len(els) < 2 {
		return els
	}
	out := make(rod.Elements, 0, len(els))
	for i, el := range els {
		owner := true
		for j, other := range els {
			if i == j {
				continue
			}
			if ok, err := el.ContainsElement(other); err == nil && ok {
				owner = false
				break
			}
		}
		if owner {
			out = append(out, el)
		}
	}
	return out
}

func textMatches(got, want string, exact bool) bool {
	if exact {
		return strings.TrimSpace(got) == want
	}
	return strings.Contains(strings.ToLower(got), strings.ToLower(want))
}

// element polls until the Nth match of l exists or the timeout elapses.
func (p *rodPage) element(ctx context.Context, l Locator, timeout time.Duration) (*rod.Element, error) {
	timeout = effectiveTimeout(ctx, timeout)
	deadline := time.Now().Add(timeout)
	for {
		els, err := p.matches(ctx, l)
		if err != nil {
			return nil, eris.Wrapf(err, "browser: locate %s", l)
		}
		if l.Nth < len(els) {
			return els[l.Nth], nil
		}
		if timeout > 0 && time.Now().After(deadline) {
			return nil, eris.Wrapf(ErrNotFound, "browser: %s after %s", l, timeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(rodPoll):
		}
	}
}

func (p *rodPage) Click(ctx context.Context, l Locator, timeout time.Duration) error {
	el, err := p.element(ctx, l, timeout)
	if err != nil {
		return err
	}
	if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return eris.Wrapf(err, "browser: click %s", l)
	}
	return nil
}

func (p *rodPage) WaitFor(ctx context.Context, l Locator, timeout time.Duration) error {
	el, err := p.element(ctx, l, timeout)
	if err != nil {
		return err
	}
	if err := el.Context(ctx).WaitVisible(); err != nil {
		return eris.Wrapf(err, "browser: wait visible %s", l)
	}
	return nil
}

func (p *rodPage) Count(ctx context.Context, l Locator) (int, error) {
	els, err := p.matches(ctx, l)
	if err != nil {
		return 0, eris.Wrapf(err, "browser: count %s", l)
	}
	return len(els), nil
}

func (p *rodPage) Enabled(ctx context.Context, l Locator) (bool, error) {
	el, err := p.element(ctx, l, 0)
	if err != nil {
		return false, err
	}
	v, err := el.Attribute("disabled")
	if err != nil {
		return false, eris.Wrapf(err, "browser: attribute of %s", l)
	}
	return v == nil, nil
}

func (p *rodPage) Fill(ctx context.Context, l Locator, value string, timeout time.Duration) error {
	el, err := p.element(ctx, l, timeout)
	if err != nil {
		return err
	}
	el = el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return eris.Wrapf(err, "browser: select text %s", l)
	}
	if err := el.Input(value); err != nil {
		return eris.Wrapf(err, "browser: fill %s", l)
	}
	return nil
}

func (p *rodPage) SelectOption(ctx context.Context, l Locator, value string, timeout time.Duration) error {
	el, err := p.element(ctx, l, timeout)
	if err != nil {
		return err
	}
	sel := `option[value="` + value + `"]`
	if err := el.Context(ctx).Select([]string{sel}, true, rod.SelectorTypeCSSSector); err != nil {
		return eris.Wrapf(err, "browser: select %q in %s", value, l)
	}
	return nil
}

func (p *rodPage) RowTexts(ctx context.Context, rows Locator, cellCSS string) ([]string, error) {
	els, err := p.matches(ctx, rows)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: rows %s", rows)
	}
	out := make([]string, 0, len(els))
	for _, row := range els {
		cells, err := row.Elements(cellCSS)
		if err != nil {
			return nil, eris.Wrapf(err, "browser: cells of %s", rows)
		}
		texts := make([]string, 0, len(cells))
		for _, c := range cells {
			t, err := c.Text()
			if err != nil {
				return nil, eris.Wrapf(err, "browser: cell text of %s", rows)
			}
			texts = append(texts, t)
		}
		out = append(out, firstNonEmpty(texts))
	}
	return out, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", eris.Wrap(err, "browser: page html")
	}
	return html, nil
}

func (p *rodPage) Close() error {
	if err := p.page.Close(); err != nil {
		return eris.Wrap(err, "browser: close rod page")
	}
	return nil
}
