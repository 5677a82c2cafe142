package batch

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/scrape"
)

// Outcome is the result of one company in a run.
type Outcome struct {
	CompanyID string
	Err       *scrape.Error
	Duration  time.Duration
}

// OK reports whether the company succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Kind is the failure kind, or "" on success.
func (o Outcome) Kind() scrape.Kind {
	if o.Err == nil {
		return ""
	}
	return o.Err.Kind
}

// Report aggregates the outcomes of a run. It is safe for concurrent use
// while the run is in progress.
type Report struct {
	RunID      string
	Command    string
	Total      int
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool

	mu       sync.Mutex
	outcomes []Outcome
	byKind   map[scrape.Kind]int
}

// NewReport starts an empty report for a run of command over total companies.
func NewReport(runID, command string, total int) *Report {
	return &Report{
		RunID:     runID,
		Command:   command,
		Total:     total,
		StartedAt: time.Now().UTC(),
		byKind:    make(map[scrape.Kind]int),
	}
}

// Add records one outcome.
func (r *Report) Add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	if !o.OK() {
		r.byKind[o.Kind()]++
	}
}

// Outcomes returns the recorded outcomes sorted by company id.
func (r *Report) Outcomes() []Outcome {
	r.mu.Lock()
	out := append([]Outcome(nil), r.outcomes...)
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyID < out[j].CompanyID })
	return out
}

// Succeeded returns the ids that succeeded, sorted.
func (r *Report) Succeeded() []string {
	var ids []string
	for _, o := range r.Outcomes() {
		if o.OK() {
			ids = append(ids, o.CompanyID)
		}
	}
	return ids
}

// Failed returns the failed outcomes, sorted by company id.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes() {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Counts returns the number of failures per kind.
func (r *Report) Counts() map[scrape.Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[scrape.Kind]int, len(r.byKind))
	for k, n := range r.byKind {
		out[k] = n
	}
	return out
}

// Done is the number of companies with an outcome.
func (r *Report) Done() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

// Fields renders the report summary as log fields.
func (r *Report) Fields() []zap.Field {
	failed := r.Failed()
	fields := []zap.Field{
		zap.String("run_id", r.RunID),
		zap.String("command", r.Command),
		zap.Int("total", r.Total),
		zap.Int("succeeded", r.Done()-len(failed)),
		zap.Int("failed", len(failed)),
		zap.Bool("cancelled", r.Cancelled),
		zap.Duration("elapsed", r.FinishedAt.Sub(r.StartedAt)),
	}
	counts := r.Counts()
	for _, k := range scrape.Kinds() {
		if n := counts[k]; n > 0 {
			fields = append(fields, zap.Int(string(k), n))
		}
	}
	return fields
}
