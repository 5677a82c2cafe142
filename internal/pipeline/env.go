// Package pipeline wires the scrapers, the registry matcher and the loader
// into the steps the CLI runs, and runs them in order.
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/artifact"
	"github.com/sells-group/bursa-cli/internal/batch"
	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/db"
	"github.com/sells-group/bursa-cli/internal/frame"
	"github.com/sells-group/bursa-cli/internal/load"
	"github.com/sells-group/bursa-cli/internal/model"
	"github.com/sells-group/bursa-cli/internal/monitoring"
	"github.com/sells-group/bursa-cli/internal/registry"
	"github.com/sells-group/bursa-cli/internal/scrape"
	"github.com/sells-group/bursa-cli/internal/store"
)

// Scrapers are the page-level scrapers the steps drive.
type Scrapers struct {
	Listing interface {
		Scrape(ctx context.Context, page browser.Page, url string) ([]model.CompanyIdentity, error)
	}
	URLs interface {
		Find(ctx context.Context, page browser.Page, companyID string) (string, error)
	}
	Statements interface {
		Scrape(ctx context.Context, page browser.Page, st model.StatementType, target model.ScrapeTarget) (*frame.Frame, error)
	}
	Profiles interface {
		Scrape(ctx context.Context, page browser.Page, target model.ScrapeTarget) (map[model.Section]*frame.Frame, error)
	}
	Market interface {
		Scrape(ctx context.Context, page browser.Page, target model.ScrapeTarget) (model.MarketInfo, error)
	}
}

// DefaultScrapers builds the real scrapers from cfg.
func DefaultScrapers(cfg *config.Config) Scrapers {
	return Scrapers{
		Listing:    scrape.NewListingScraper(cfg.Browser),
		URLs:       scrape.NewURLFinder(cfg),
		Statements: scrape.NewStatementScraper(cfg.Browser),
		Profiles:   scrape.NewProfileScraper(cfg.Browser),
		Market:     scrape.NewMarketScraper(cfg.Browser),
	}
}

// ProgressFunc starts a progress display for total items and returns the
// callback ticked once per finished item.
type ProgressFunc func(desc string, total int) func(ok bool)

// Env is what every step needs. The browser starts on first use and is
// shared by all steps.
type Env struct {
	Config   *config.Config
	Layout   artifact.Layout
	Scrapers Scrapers
	// Journal may be nil.
	Journal  store.Store
	Progress ProgressFunc
	// Alerts may be nil.
	Alerts *monitoring.Alerter
	// Registry defaults to the HTTP search client.
	Registry registry.Searcher
	// NewLauncher defaults to browser.New.
	NewLauncher func(config.BrowserConfig) (browser.Launcher, error)
	// OpenSink connects the relational sink. The returned func releases it.
	OpenSink func(ctx context.Context, mode load.Mode) (load.Writer, func(), error)

	once      sync.Once
	launcher  browser.Launcher
	launchErr error
}

// NewEnv returns an Env with the real scrapers and browser.
func NewEnv(cfg *config.Config, journal store.Store) *Env {
	return &Env{
		Config:      cfg,
		Layout:      artifact.NewLayout(cfg.Paths),
		Scrapers:    DefaultScrapers(cfg),
		Journal:     journal,
		Alerts:      monitoring.NewAlerter(cfg.Monitoring),
		Registry:    registry.NewClient(cfg.Registry),
		NewLauncher: browser.New,
		OpenSink: func(ctx context.Context, mode load.Mode) (load.Writer, func(), error) {
			pool, err := db.Connect(ctx, cfg.Sink)
			if err != nil {
				return nil, nil, err
			}
			return load.NewSink(pool, cfg.Sink.Schema, mode), pool.Close, nil
		},
	}
}

// Launcher returns the shared browser, starting it on first call.
func (e *Env) Launcher() (browser.Launcher, error) {
	e.once.Do(func() {
		newLauncher := e.NewLauncher
		if newLauncher == nil {
			newLauncher = browser.New
		}
		e.launcher, e.launchErr = newLauncher(e.Config.Browser)
		if e.launchErr == nil {
			zap.L().Info("browser started", zap.String("engine", e.Config.Browser.Engine))
		}
	})
	return e.launcher, e.launchErr
}

// Close stops the browser if it was started.
func (e *Env) Close() error {
	if e.launcher == nil {
		return nil
	}
	return e.launcher.Close()
}

func (e *Env) progress(desc string, total int) func(ok bool) {
	if e.Progress == nil {
		return nil
	}
	return e.Progress(desc, total)
}

// alert sends the alerts a finished batch raises.
func (e *Env) alert(ctx context.Context, alerts []monitoring.Alert) {
	if !e.Alerts.Enabled() || len(alerts) == 0 {
		return
	}
	e.Alerts.SendAlerts(context.WithoutCancel(ctx), alerts)
}

func (e *Env) alertBatch(ctx context.Context, rep *batch.Report) {
	if e.Alerts.Enabled() {
		e.alert(ctx, e.Alerts.Evaluate(rep))
	}
}

// runner builds a batch runner for command with the env's browser, journal
// and progress display.
func runner[T any](e *Env, command string, launcher browser.Launcher, work batch.Work[T], total int) *batch.Runner[T] {
	r := batch.NewRunner(e.Config, command, launcher, work)
	r.Journal = e.Journal
	if tick := e.progress(command, total); tick != nil {
		r.OnOutcome = func(o batch.Outcome) { tick(o.Err == nil) }
	}
	return r
}
