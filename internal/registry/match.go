package registry

import (
	"context"
	"math"
	"strings"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/bursa-cli/internal/model"
)

// Substitution costs as much as a delete plus an insert, so the distance is
// the indel distance and the normalised score is the classic match ratio.
var ratioParams = levenshtein.NewParams().SubCost(2)

// Similarity scores two names from 0 to 100 after Unicode lower-casing,
// rounded to two decimals.
func Similarity(a, b string) float64 {
	lower := cases.Lower(language.Und)
	s := levenshtein.Similarity(lower.String(a), lower.String(b), ratioParams)
	return math.Round(s*10000) / 100
}

// Best picks the highest-scoring candidate for name. Only a strictly higher
// score replaces the current best, so ties keep the earliest candidate and a
// zero score never matches.
func Best(name string, candidates []Candidate) (model.RegistryMatch, bool) {
	var (
		best      *Candidate
		bestScore float64
	)
	for i := range candidates {
		score := Similarity(name, string(candidates[i].CompanyName))
		if score > bestScore {
			best, bestScore = &candidates[i], score
		}
	}
	if best == nil {
		return model.NullMatch(name), false
	}
	return model.RegistryMatch{
		CompanyName:  name,
		NameDB:       string(best.CompanyName),
		CompanyNo:    string(best.CompanyNo),
		OldCompanyNo: string(best.OldCompanyNo),
		CompanyType:  string(best.EntityType),
		Score:        bestScore,
	}, true
}

// Matcher resolves names through a Searcher.
type Matcher struct {
	search    Searcher
	overrides Overrides
	log       *zap.Logger
}

// NewMatcher returns a matcher applying overrides as a final pass.
func NewMatcher(s Searcher, overrides Overrides) *Matcher {
	return &Matcher{
		search:    s,
		overrides: overrides,
		log:       zap.L().With(zap.String("component", "registry")),
	}
}

// Match returns the best registry record for name. Search failures and empty
// results yield the null-match record, never an error.
func (m *Matcher) Match(ctx context.Context, name string) model.RegistryMatch {
	candidates, err := m.search.Search(ctx, name)
	if err != nil {
		m.log.Warn("search failed", zap.String("company_name", name), zap.Error(err))
		return model.NullMatch(name)
	}
	match, ok := Best(name, candidates)
	if !ok {
		m.log.Debug("no match", zap.String("company_name", name), zap.Int("candidates", len(candidates)))
	}
	return match
}

// Run matches every name not already present in existing and returns existing
// plus the new records, with overrides applied last. Names are compared by
// exact string. On cancellation the records gathered so far are returned
// together with the context error. progress, when set, is called once per
// queried name.
func (m *Matcher) Run(ctx context.Context, names []string, existing []model.RegistryMatch, progress func(model.RegistryMatch)) ([]model.RegistryMatch, error) {
	done := make(map[string]bool, len(existing))
	for _, r := range existing {
		if r.CompanyName != "" {
			done[r.CompanyName] = true
		}
	}

	var todo []string
	for _, n := range names {
		if n == "" || done[n] {
			continue
		}
		done[n] = true
		todo = append(todo, n)
	}
	m.log.Info("matching companies", zap.Int("skipped", len(names)-len(todo)), zap.Int("to_query", len(todo)))

	out := append([]model.RegistryMatch(nil), existing...)
	var runErr error
	for _, n := range todo {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		r := m.Match(ctx, n)
		if ctx.Err() != nil && !r.Matched() {
			// An interrupted search is not a real miss; leave it for the next run.
			runErr = ctx.Err()
			break
		}
		out = append(out, r)
		if progress != nil {
			progress(r)
		}
	}

	return m.overrides.Apply(out), runErr
}

// Names extracts the distinct company names from a listing in first-seen order.
func Names(companies []model.CompanyIdentity) []string {
	seen := make(map[string]bool, len(companies))
	var out []string
	for _, c := range companies {
		n := strings.TrimSpace(c.CompanyName)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
