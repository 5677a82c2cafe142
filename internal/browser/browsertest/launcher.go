package browsertest

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bursa-cli/internal/browser"
)

// Launcher is a fake browser.Launcher whose sessions hand out Pages built by
// a factory.
type Launcher struct {
	mu      sync.Mutex
	newPage func(opts browser.SessionOptions) *Page

	// UserAgents records the options of every session, in creation order.
	UserAgents []string
	// Open counts sessions not yet closed.
	Open   int
	Closed bool
}

// NewLauncher returns a launcher whose pages come from newPage. A nil factory
// serves blank pages.
func NewLauncher(newPage func(opts browser.SessionOptions) *Page) *Launcher {
	if newPage == nil {
		newPage = func(browser.SessionOptions) *Page { return New("<html><body></body></html>") }
	}
	return &Launcher{newPage: newPage}
}

// NewSession implements browser.Launcher.
func (l *Launcher) NewSession(ctx context.Context, opts browser.SessionOptions) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Closed {
		return nil, eris.New("browsertest: launcher closed")
	}
	l.UserAgents = append(l.UserAgents, opts.UserAgent)
	l.Open++
	return &session{l: l, opts: opts}, nil
}

// Close implements browser.Launcher.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Closed = true
	return nil
}

// OpenSessions returns the number of sessions not yet closed.
func (l *Launcher) OpenSessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Open
}

type session struct {
	l    *Launcher
	opts browser.SessionOptions
	once sync.Once
}

func (s *session) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.l.newPage(s.opts), nil
}

func (s *session) Close() error {
	s.once.Do(func() {
		s.l.mu.Lock()
		s.l.Open--
		s.l.mu.Unlock()
	})
	return nil
}
