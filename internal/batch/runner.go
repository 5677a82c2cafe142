// Package batch drives per-company scrapes through a bounded pool of browser
// sessions and aggregates their outcomes into a Report.
package batch

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/model"
	"github.com/sells-group/bursa-cli/internal/scrape"
	"github.com/sells-group/bursa-cli/internal/store"
)

// Work scrapes one company on a page owned by the task.
type Work[T any] func(ctx context.Context, page browser.Page, target model.ScrapeTarget) (T, error)

// Runner runs Work over targets with at most Concurrency tasks in flight.
type Runner[T any] struct {
	Command  string
	Launcher browser.Launcher
	Work     Work[T]

	// OnSuccess persists a result as soon as it is available. Calls are
	// serialized. An error turns the outcome into a failure.
	OnSuccess func(target model.ScrapeTarget, result T) error
	// OnOutcome observes every outcome, e.g. to drive a progress bar. Calls are serialized.
	OnOutcome func(o Outcome)
	// Journal, when set, records the run and every outcome.
	Journal store.Store

	Concurrency int
	CooldownMin time.Duration
	CooldownMax time.Duration
	UserAgents  []string

	sleep func(ctx context.Context, d time.Duration)
	hook  sync.Mutex
}

// NewRunner builds a Runner from the batch and browser config.
func NewRunner[T any](cfg *config.Config, command string, launcher browser.Launcher, work Work[T]) *Runner[T] {
	minCool, maxCool := cfg.Batch.CooldownRange()
	agents := cfg.Browser.UserAgents
	if len(agents) == 0 {
		agents = config.DefaultUserAgents
	}
	return &Runner[T]{
		Command:     command,
		Launcher:    launcher,
		Work:        work,
		Concurrency: cfg.Batch.Concurrency,
		CooldownMin: minCool,
		CooldownMax: maxCool,
		UserAgents:  agents,
	}
}

// Run processes every target and returns the report. A failing company never
// stops its siblings. When ctx is cancelled no new task starts, in-flight
// tasks wind down, and the partial report is returned with Cancelled set.
func (r *Runner[T]) Run(ctx context.Context, targets []model.ScrapeTarget) *Report {
	rep := NewReport(uuid.New().String(), r.Command, len(targets))
	log := zap.L().With(
		zap.String("component", "batch"),
		zap.String("command", r.Command),
		zap.String("run_id", rep.RunID),
	)

	// The journal outlives a cancelled run so the final state is written.
	journalCtx := context.WithoutCancel(ctx)
	if r.Journal != nil {
		if err := r.Journal.CreateRun(journalCtx, store.Run{ID: rep.RunID, Command: r.Command, Total: len(targets), StartedAt: rep.StartedAt}); err != nil {
			log.Warn("journal: create run failed", zap.Error(err))
		}
	}

	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}
	log.Info("batch started", zap.Int("targets", len(targets)), zap.Int("concurrency", limit))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, t := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			o := r.runOne(gctx, t, log)
			rep.Add(o)
			r.observe(journalCtx, rep.RunID, o, log)
			// The slot is held through the cool-down.
			r.cooldown(gctx)
			return nil
		})
	}
	_ = g.Wait()

	rep.FinishedAt = time.Now().UTC()
	rep.Cancelled = ctx.Err() != nil

	if r.Journal != nil {
		status := store.RunStatusComplete
		if rep.Cancelled {
			status = store.RunStatusCancelled
		}
		failed := len(rep.Failed())
		if err := r.Journal.CompleteRun(journalCtx, rep.RunID, status, rep.Done()-failed, failed); err != nil {
			log.Warn("journal: complete run failed", zap.Error(err))
		}
	}

	log.Info("batch finished", rep.Fields()...)
	return rep
}

func (r *Runner[T]) runOne(ctx context.Context, t model.ScrapeTarget, log *zap.Logger) Outcome {
	start := time.Now()
	o := Outcome{CompanyID: t.CompanyID}

	result, err := r.scrape(ctx, t)
	if err == nil && r.OnSuccess != nil {
		r.hook.Lock()
		err = r.OnSuccess(t, result)
		r.hook.Unlock()
	}
	o.Duration = time.Since(start)
	if err != nil {
		o.Err = scrape.AsError(t.CompanyID, err)
		log.Warn("company failed",
			zap.String("company_id", t.CompanyID),
			zap.String("kind", string(o.Err.Kind)),
			zap.Error(err),
		)
		return o
	}
	log.Debug("company done", zap.String("company_id", t.CompanyID), zap.Duration("elapsed", o.Duration))
	return o
}

func (r *Runner[T]) scrape(ctx context.Context, t model.ScrapeTarget) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	sess, err := r.Launcher.NewSession(ctx, browser.SessionOptions{UserAgent: r.userAgent()})
	if err != nil {
		return zero, err
	}
	defer sess.Close() //nolint:errcheck

	page, err := sess.NewPage(ctx)
	if err != nil {
		return zero, err
	}
	defer page.Close() //nolint:errcheck

	return r.Work(ctx, page, t)
}

func (r *Runner[T]) observe(ctx context.Context, runID string, o Outcome, log *zap.Logger) {
	if r.Journal != nil {
		task := store.Task{RunID: runID, CompanyID: o.CompanyID, Status: store.TaskSucceeded, Duration: o.Duration}
		if !o.OK() {
			task.Status = store.TaskFailed
			task.Kind = string(o.Err.Kind)
			task.Error = o.Err.Error()
		}
		if err := r.Journal.RecordTask(ctx, task); err != nil {
			log.Warn("journal: record task failed", zap.String("company_id", o.CompanyID), zap.Error(err))
		}
	}
	if r.OnOutcome != nil {
		r.hook.Lock()
		r.OnOutcome(o)
		r.hook.Unlock()
	}
}

func (r *Runner[T]) userAgent() string {
	if len(r.UserAgents) == 0 {
		return ""
	}
	return r.UserAgents[rand.IntN(len(r.UserAgents))]
}

func (r *Runner[T]) cooldown(ctx context.Context) {
	d := r.CooldownMin
	if span := r.CooldownMax - r.CooldownMin; span > 0 {
		d += time.Duration(rand.Int64N(int64(span) + 1))
	}
	if d <= 0 {
		return
	}
	if r.sleep != nil {
		r.sleep(ctx, d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
