// Package browsertest provides an in-memory browser.Page backed by static
// HTML, for exercising DOM-driven scrapers without a browser.
package browsertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bursa-cli/internal/browser"
)

var roleSelectors = map[string]string{
	"button":   `button, [role="button"]`,
	"link":     `a[href], [role="link"]`,
	"textbox":  `input, textarea, [role="textbox"]`,
	"listitem": `li, [role="listitem"]`,
	"tab":      `[role="tab"]`,
}

// ClickFunc reacts to a click, typically by swapping the page HTML.
type ClickFunc func(p *Page) error

// Page is a fake browser.Page. Clicks on locators that match nothing fail
// with browser.ErrNotFound, like a real page after its timeout.
type Page struct {
	mu      sync.Mutex
	doc     *goquery.Document
	html    string
	onClick map[string]ClickFunc
	onGoto  func(p *Page, url string) error

	Visited  []string
	Clicks   []string
	Filled   map[string]string
	Selected map[string]string
	Closed   bool
}

// New returns a page showing html.
func New(html string) *Page {
	p := &Page{
		onClick:  make(map[string]ClickFunc),
		Filled:   make(map[string]string),
		Selected: make(map[string]string),
	}
	p.setHTML(html)
	return p
}

// SetHTML replaces the document.
func (p *Page) SetHTML(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setHTML(html)
}

func (p *Page) setHTML(html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(err)
	}
	p.doc = doc
	p.html = html
}

// OnClick registers fn for clicks on l.
func (p *Page) OnClick(l browser.Locator, fn ClickFunc) *Page {
	p.onClick[l.String()] = fn
	return p
}

// OnGoto registers fn for navigations.
func (p *Page) OnGoto(fn func(p *Page, url string) error) *Page {
	p.onGoto = fn
	return p
}

func (p *Page) Goto(ctx context.Context, url string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Visited = append(p.Visited, url)
	fn := p.onGoto
	p.mu.Unlock()
	if fn != nil {
		return fn(p, url)
	}
	return nil
}

func (p *Page) Click(ctx context.Context, l browser.Locator, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	sel := p.matches(l)
	if l.Nth >= sel.Length() {
		p.mu.Unlock()
		return eris.Wrapf(browser.ErrNotFound, "browsertest: click %s", l)
	}
	p.Clicks = append(p.Clicks, l.String())
	fn := p.onClick[l.String()]
	p.mu.Unlock()
	if fn != nil {
		return fn(p)
	}
	return nil
}

func (p *Page) WaitFor(ctx context.Context, l browser.Locator, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if l.Nth >= p.matches(l).Length() {
		return eris.Wrapf(browser.ErrNotFound, "browsertest: wait for %s", l)
	}
	return nil
}

func (p *Page) Count(ctx context.Context, l browser.Locator) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matches(l).Length(), nil
}

func (p *Page) Enabled(ctx context.Context, l browser.Locator) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.matches(l)
	if l.Nth >= sel.Length() {
		return false, eris.Wrapf(browser.ErrNotFound, "browsertest: enabled %s", l)
	}
	_, disabled := sel.Eq(l.Nth).Attr("disabled")
	return !disabled, nil
}

func (p *Page) Fill(ctx context.Context, l browser.Locator, value string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if l.Nth >= p.matches(l).Length() {
		return eris.Wrapf(browser.ErrNotFound, "browsertest: fill %s", l)
	}
	p.Filled[l.String()] = value
	return nil
}

func (p *Page) SelectOption(ctx context.Context, l browser.Locator, value string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.matches(l)
	if l.Nth >= sel.Length() {
		return eris.Wrapf(browser.ErrNotFound, "browsertest: select %s", l)
	}
	if sel.Eq(l.Nth).Find(`option[value="`+value+`"]`).Length() == 0 {
		return eris.Errorf("browsertest: no option %q in %s", value, l)
	}
	p.Selected[l.String()] = value
	return nil
}

func (p *Page) RowTexts(ctx context.Context, rows browser.Locator, cellCSS string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	p.matches(rows).Each(func(_ int, row *goquery.Selection) {
		text := ""
		row.Find(cellCSS).EachWithBreak(func(_ int, c *goquery.Selection) bool {
			if s := strings.TrimSpace(c.Text()); s != "" {
				text = s
				return false
			}
			return true
		})
		out = append(out, text)
	})
	return out, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// matches resolves l against the current document, ignoring Nth.
func (p *Page) matches(l browser.Locator) *goquery.Selection {
	root := p.doc.Selection
	if l.Scope != "" {
		root = p.doc.Find(l.Scope).First()
	}

	var sel *goquery.Selection
	switch {
	case l.Role != "":
		css, ok := roleSelectors[l.Role]
		if !ok {
			css = `[role="` + l.Role + `"]`
		}
		sel = root.Find(css)
		if l.Name != "" {
			sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
				name := strings.TrimSpace(s.Text())
				if name == "" || l.Role == "textbox" {
					for _, attr := range []string{"aria-label", "placeholder"} {
						if v, ok := s.Attr(attr); ok && v != "" {
							name = v
							break
						}
					}
				}
				return textMatches(name, l.Name, l.Exact)
			})
		}
	case l.Text != "":
		match := func(_ int, s *goquery.Selection) bool {
			return textMatches(s.Text(), l.Text, l.Exact)
		}
		sel = root.Find("*").FilterFunction(match).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Children().FilterFunction(match).Length() == 0
		})
	default:
		sel = root.Find(l.CSS)
	}

	if l.HasText != "" {
		sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(strings.ToLower(s.Text()), strings.ToLower(l.HasText))
		})
	}
	return sel
}

func textMatches(got, want string, exact bool) bool {
	if exact {
		return strings.TrimSpace(got) == want
	}
	return strings.Contains(strings.ToLower(got), strings.ToLower(want))
}
