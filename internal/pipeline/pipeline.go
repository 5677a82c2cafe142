package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bursa-cli/internal/batch"
	"github.com/sells-group/bursa-cli/internal/load"
	"github.com/sells-group/bursa-cli/internal/model"
	"github.com/sells-group/bursa-cli/internal/monitoring"
)

// Step is one named unit of the full run.
type Step struct {
	Name string
	Run  func(ctx context.Context, env *Env) error
}

// Stage groups steps. Steps of a parallel stage run together; the others
// run in order.
type Stage struct {
	Name     string
	Parallel bool
	Steps    []Step
}

// Status of a step after a run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StepResult records how one step went.
type StepResult struct {
	Stage    string
	Step     string
	Status   Status
	Duration time.Duration
	Err      error
}

// Options controls a full run.
type Options struct {
	// Only restricts the run to one stage or step by name.
	Only string
	// Mode is the sink write mode of the load stage.
	Mode load.Mode
}

// Stages returns the full run in order: listing, urls, the scrapes, match,
// combine and load.
func Stages(mode load.Mode) []Stage {
	scrapes := make([]Step, 0, 5)
	for _, st := range model.AllStatementTypes() {
		scrapes = append(scrapes, Step{Name: string(st), Run: func(ctx context.Context, env *Env) error {
			return reportErr(Statements(ctx, env, st, ""))
		}})
	}
	scrapes = append(scrapes,
		Step{Name: "market", Run: func(ctx context.Context, env *Env) error {
			return reportErr(Market(ctx, env, ""))
		}},
		Step{Name: "profile", Run: func(ctx context.Context, env *Env) error {
			return reportErr(Profiles(ctx, env, ""))
		}},
	)

	return []Stage{
		{Name: "listing", Steps: []Step{{Name: "listing", Run: func(ctx context.Context, env *Env) error {
			_, err := Listing(ctx, env, ListingOptions{Update: true})
			return err
		}}}},
		{Name: "urls", Steps: []Step{{Name: "urls", Run: func(ctx context.Context, env *Env) error {
			return reportErr(URLs(ctx, env, false))
		}}}},
		{Name: "scrape", Parallel: true, Steps: scrapes},
		{Name: "match", Steps: []Step{{Name: "match", Run: func(ctx context.Context, env *Env) error {
			_, err := Match(ctx, env)
			return err
		}}}},
		{Name: "combine", Steps: []Step{{Name: "combine", Run: func(ctx context.Context, env *Env) error {
			_, err := Combine(ctx, env)
			return err
		}}}},
		{Name: "load", Steps: []Step{{Name: "load", Run: func(ctx context.Context, env *Env) error {
			_, err := Load(ctx, env, mode)
			return err
		}}}},
	}
}

// The batch runner logs its own report.
func reportErr(_ *batch.Report, err error) error {
	return err
}

// Plan returns the stages a run with opts executes.
func Plan(opts Options) ([]Stage, error) {
	return Select(Stages(opts.Mode), opts.Only)
}

// Select narrows stages to the one stage or step named only. An empty name
// keeps everything.
func Select(stages []Stage, only string) ([]Stage, error) {
	only = strings.TrimSpace(only)
	if only == "" {
		return stages, nil
	}
	var names []string
	for _, s := range stages {
		if s.Name == only {
			return []Stage{s}, nil
		}
		for _, st := range s.Steps {
			if st.Name == only {
				return []Stage{{Name: s.Name, Steps: []Step{st}}}, nil
			}
			if st.Name != s.Name {
				names = append(names, st.Name)
			}
		}
		names = append(names, s.Name)
	}
	return nil, eris.Errorf("pipeline: unknown stage or step %q (want one of %s)", only, strings.Join(names, ", "))
}

// Run executes the stages in order. A failed step is logged and later steps
// still run; the returned error combines every failure. Cancellation stops
// the run between stages and marks the rest skipped.
func Run(ctx context.Context, env *Env, stages []Stage) ([]StepResult, error) {
	log := zap.L().With(zap.String("component", "pipeline"))
	var (
		results []StepResult
		errs    error
		mu      sync.Mutex
	)
	record := func(r StepResult) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
		if r.Err != nil {
			errs = multierr.Append(errs, eris.Wrapf(r.Err, "pipeline: step %s", r.Step))
		}
	}

	for _, stage := range stages {
		if ctx.Err() != nil {
			for _, st := range stage.Steps {
				record(StepResult{Stage: stage.Name, Step: st.Name, Status: StatusSkipped})
			}
			continue
		}
		log.Info("stage started", zap.String("stage", stage.Name), zap.Int("steps", len(stage.Steps)))

		if stage.Parallel && len(stage.Steps) > 1 {
			var g errgroup.Group
			for _, st := range stage.Steps {
				g.Go(func() error {
					record(runStep(ctx, env, stage.Name, st, log))
					return nil
				})
			}
			_ = g.Wait()
			continue
		}
		for _, st := range stage.Steps {
			if ctx.Err() != nil {
				record(StepResult{Stage: stage.Name, Step: st.Name, Status: StatusSkipped})
				continue
			}
			record(runStep(ctx, env, stage.Name, st, log))
		}
	}

	if err := ctx.Err(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return results, errs
}

func runStep(ctx context.Context, env *Env, stage string, st Step, log *zap.Logger) StepResult {
	start := time.Now()
	err := st.Run(ctx, env)
	res := StepResult{Stage: stage, Step: st.Name, Status: StatusOK, Duration: time.Since(start), Err: err}
	if err != nil {
		res.Status = StatusFailed
		log.Error("step failed", zap.String("stage", stage), zap.String("step", st.Name), zap.Duration("elapsed", res.Duration), zap.Error(err))
		env.alert(ctx, []monitoring.Alert{monitoring.StepFailed(stage, st.Name, err)})
		return res
	}
	log.Info("step finished", zap.String("stage", stage), zap.String("step", st.Name), zap.Duration("elapsed", res.Duration))
	return res
}
