package load

import (
	"context"
	"errors"
	"io/fs"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/artifact"
	"github.com/sells-group/bursa-cli/internal/frame"
	"github.com/sells-group/bursa-cli/internal/model"
)

// Dataset is one combined artifact and the table it loads into.
type Dataset struct {
	Name      string
	File      string
	Table     string
	Key       []string
	Numeric   []string
	Statement model.StatementType
	Section   model.Section
}

// Datasets lists everything the loader writes, in load order.
func Datasets() []Dataset {
	var out []Dataset
	for _, sec := range model.AllSections() {
		out = append(out, Dataset{
			Name:    string(sec),
			File:    sec.CombinedFile(),
			Table:   sec.Table(),
			Key:     SectionKey(sec),
			Section: sec,
		})
	}
	for _, st := range []model.StatementType{model.StatementCashFlow, model.StatementIncome, model.StatementBalance} {
		out = append(out, Dataset{
			Name:      string(st),
			File:      st.CombinedFile(),
			Table:     st.Table(),
			Key:       StatementKey,
			Numeric:   NumericColumns(st),
			Statement: st,
		})
	}
	return out
}

// Writer stores a normalized frame. *Sink implements it.
type Writer interface {
	Write(ctx context.Context, table string, f *frame.Frame, key, numeric []string) (int64, error)
}

// Result reports one dataset load.
type Result struct {
	Dataset  string
	Rows     int
	Inserted int64
	Skipped  bool
	Err      error
}

// Loader reads the combined artifacts, normalizes them and writes them out.
type Loader struct {
	layout artifact.Layout
	out    Writer
	log    *zap.Logger
}

// NewLoader returns a loader reading from layout and writing to out.
func NewLoader(layout artifact.Layout, out Writer) *Loader {
	return &Loader{
		layout: layout,
		out:    out,
		log:    zap.L().With(zap.String("component", "load")),
	}
}

// Run loads every dataset in order. A missing artifact skips its dataset; a
// failed dataset does not stop the others. The returned error combines all
// dataset failures.
func (l *Loader) Run(ctx context.Context) ([]Result, error) {
	regs, err := l.registrations()
	if err != nil {
		return nil, err
	}
	l.log.Info("registrations joined", zap.Int("companies", len(regs)))

	var (
		results []Result
		errs    error
	)
	for _, ds := range Datasets() {
		if err := ctx.Err(); err != nil {
			return results, multierr.Append(errs, err)
		}
		res := l.load(ctx, ds, regs)
		results = append(results, res)
		if res.Err != nil {
			l.log.Error("dataset failed", zap.String("dataset", ds.Name), zap.Error(res.Err))
			errs = multierr.Append(errs, res.Err)
		}
	}
	return results, errs
}

func (l *Loader) registrations() (Registrations, error) {
	listing, err := l.layout.ReadListing()
	if err != nil {
		return nil, eris.Wrap(err, "load: read listing")
	}
	matches, err := l.layout.ReadMatches()
	if err != nil {
		return nil, eris.Wrap(err, "load: read registry matches")
	}
	if len(listing) == 0 || len(matches) == 0 {
		return nil, eris.New("load: listing and registry matches are required; run listing and match first")
	}
	return JoinRegistrations(matches, listing), nil
}

func (l *Loader) load(ctx context.Context, ds Dataset, regs Registrations) Result {
	res := Result{Dataset: ds.Name}
	log := l.log.With(zap.String("dataset", ds.Name))

	raw, err := readOptional(ctx, l.layout.Data(ds.File))
	if err != nil {
		res.Err = eris.Wrapf(err, "load: %s", ds.Name)
		return res
	}
	if raw == nil {
		log.Warn("combined artifact missing, skipping", zap.String("file", ds.File))
		res.Skipped = true
		return res
	}

	var f *frame.Frame
	if ds.Statement != "" {
		f = NormalizeStatement(raw, ds.Statement, regs)
	} else {
		var market *frame.Frame
		if ds.Section == model.SectionProfile {
			if market, err = readOptional(ctx, l.layout.Data(model.MarketCombined)); err != nil {
				res.Err = eris.Wrap(err, "load: market info")
				return res
			}
		}
		f = NormalizeSection(raw, ds.Section, regs, market)
	}
	res.Rows = f.Len()

	n, err := l.out.Write(ctx, ds.Table, f, ds.Key, ds.Numeric)
	if err != nil {
		res.Err = eris.Wrapf(err, "load: write %s", ds.Name)
		return res
	}
	res.Inserted = n
	return res
}

// readOptional reads a CSV with the loader's null tokens, returning nil for
// a missing file.
func readOptional(ctx context.Context, path string) (*frame.Frame, error) {
	f, err := frame.ReadFile(ctx, path, frame.LoaderNulls)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
