// Package browser wraps a headless browser behind a small page-driver
// capability so scrapers can be exercised without a real browser.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bursa-cli/internal/config"
)

// Locator addresses elements on a page. Exactly one of CSS, Role or Text
// selects the candidates; Scope, HasText and Nth narrow them down.
type Locator struct {
	Scope   string // CSS of an ancestor
	CSS     string
	Role    string // ARIA role, matched together with Name
	Name    string
	Text    string
	Exact   bool // exact text match instead of substring
	HasText string
	Nth     int
}

// ByCSS addresses elements by CSS selector.
func ByCSS(css string) Locator { return Locator{CSS: css} }

// ByRole addresses elements by ARIA role and accessible name.
func ByRole(role, name string) Locator { return Locator{Role: role, Name: name} }

// ByText addresses elements whose text contains text.
func ByText(text string) Locator { return Locator{Text: text} }

// ByExactText addresses elements whose full text equals text.
func ByExactText(text string) Locator { return Locator{Text: text, Exact: true} }

// At selects the n-th (zero-based) match.
func (l Locator) At(n int) Locator {
	l.Nth = n
	return l
}

// Within restricts matches to descendants of scope.
func (l Locator) Within(scope string) Locator {
	l.Scope = scope
	return l
}

// Containing keeps matches whose text contains s.
func (l Locator) Containing(s string) Locator {
	l.HasText = s
	return l
}

func (l Locator) String() string {
	var b strings.Builder
	if l.Scope != "" {
		fmt.Fprintf(&b, "%s >> ", l.Scope)
	}
	switch {
	case l.Role != "":
		fmt.Fprintf(&b, "role=%s[name=%q]", l.Role, l.Name)
	case l.Text != "":
		if l.Exact {
			fmt.Fprintf(&b, "text=%q", l.Text)
		} else {
			fmt.Fprintf(&b, "text~%q", l.Text)
		}
	default:
		b.WriteString(l.CSS)
	}
	if l.HasText != "" {
		fmt.Fprintf(&b, "[has-text=%q]", l.HasText)
	}
	if l.Nth > 0 {
		fmt.Fprintf(&b, " >> nth=%d", l.Nth)
	}
	return b.String()
}

// Page drives one browser tab.
type Page interface {
	Goto(ctx context.Context, url string, timeout time.Duration) error
	Click(ctx context.Context, l Locator, timeout time.Duration) error
	WaitFor(ctx context.Context, l Locator, timeout time.Duration) error
	Count(ctx context.Context, l Locator) (int, error)
	// Enabled reports whether the located element has no disabled attribute.
	Enabled(ctx context.Context, l Locator) (bool, error)
	Fill(ctx context.Context, l Locator, value string, timeout time.Duration) error
	SelectOption(ctx context.Context, l Locator, value string, timeout time.Duration) error
	// RowTexts returns, for every element matched by rows, the first non-empty
	// inner text among its descendants matching cellCSS.
	RowTexts(ctx context.Context, rows Locator, cellCSS string) ([]string, error)
	// HTML returns a snapshot of the current document.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Session is an isolated browser context: its own cookies, storage and user agent.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// SessionOptions configures a new session.
type SessionOptions struct {
	UserAgent string
}

// Launcher owns a running browser and hands out isolated sessions.
type Launcher interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
	Close() error
}

// LaunchOptions configures the browser process.
type LaunchOptions struct {
	Headless bool
	SlowMo   time.Duration
}

// New starts the browser engine named in cfg.
func New(cfg config.BrowserConfig) (Launcher, error) {
	opts := LaunchOptions{
		Headless: cfg.Headless,
		SlowMo:   time.Duration(cfg.SlowMoMs) * time.Millisecond,
	}
	switch cfg.Engine {
	case "", "playwright":
		return NewPlaywright(opts)
	case "rod":
		return NewRod(opts)
	}
	return nil, eris.Errorf("browser: unknown engine %q", cfg.Engine)
}

// ErrNotFound is returned when a locator matches nothing in time.
var ErrNotFound = eris.New("browser: element not found")

// effectiveTimeout caps timeout by the context deadline.
func effectiveTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < timeout || timeout <= 0 {
			return rem
		}
	}
	return timeout
}
