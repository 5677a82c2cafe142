// Package store journals scrape runs and their per-company outcomes so an
// interrupted batch can be inspected and resumed.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bursa-cli/internal/config"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusCancelled RunStatus = "cancelled"
)

// TaskStatus is the outcome of one company within a run.
type TaskStatus string

const (
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Run is one invocation of a batch command.
type Run struct {
	ID         string
	Command    string
	Status     RunStatus
	Total      int
	Succeeded  int
	Failed     int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Task is the journaled outcome of one company.
type Task struct {
	RunID     string
	CompanyID string
	Status    TaskStatus
	Kind      string
	Error     string
	Duration  time.Duration
	At        time.Time
}

// Store defines the run journal.
type Store interface {
	CreateRun(ctx context.Context, run Run) error
	CompleteRun(ctx context.Context, runID string, status RunStatus, succeeded, failed int) error
	RecordTask(ctx context.Context, task Task) error
	// SucceededIDs returns the companies that succeeded in any run of command.
	SucceededIDs(ctx context.Context, command string) (map[string]bool, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the journal selected by cfg, migrated and ready for use.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}
