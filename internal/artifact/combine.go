package artifact

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/frame"
	"github.com/sells-group/bursa-cli/internal/model"
)

// CombineResult summarises one combined artifact.
type CombineResult struct {
	Output  string
	Files   int
	Rows    int
	Skipped []string
}

// Combine concatenates every file in dir matching pattern into out. Columns
// are the union in first-seen order. The output file itself is never read
// back as an input, and unreadable inputs are skipped with a warning. When no
// input matches, out is left untouched.
func Combine(ctx context.Context, dir, pattern, out string) (CombineResult, error) {
	return combine(ctx, dir, pattern, out, nil)
}

// CombineSection concatenates the per-company files of one profile section,
// prefixing each row with company_id and source_file taken from the file name.
func CombineSection(ctx context.Context, dir string, sec model.Section, out string) (CombineResult, error) {
	return combine(ctx, dir, "*."+string(sec)+".csv", out, func(f *frame.Frame, name string) {
		id, _, _ := strings.Cut(name, ".")
		f.InsertColumn(0, "company_id")
		f.InsertColumn(1, "source_file")
		for _, r := range f.Rows() {
			r["company_id"] = id
			r["source_file"] = name
		}
	})
}

func combine(ctx context.Context, dir, pattern, out string, tag func(*frame.Frame, string)) (CombineResult, error) {
	log := zap.L().With(zap.String("component", "artifact.combine"), zap.String("output", out))
	res := CombineResult{Output: out}

	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return res, eris.Wrapf(err, "artifact: glob %s", pattern)
	}
	sort.Strings(paths)

	outAbs, _ := filepath.Abs(out)
	var frames []*frame.Frame
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		// Dot-files are staging leftovers from an interrupted write.
		if strings.HasPrefix(filepath.Base(p), ".") {
			continue
		}
		if abs, _ := filepath.Abs(p); abs == outAbs {
			continue
		}
		f, err := frame.ReadFile(ctx, p, frame.DefaultNulls)
		if err != nil {
			log.Warn("skipping unreadable file", zap.String("file", p), zap.Error(err))
			res.Skipped = append(res.Skipped, p)
			continue
		}
		if tag != nil {
			tag(f, filepath.Base(p))
		}
		frames = append(frames, f)
	}

	if len(frames) == 0 {
		log.Warn("no files to combine", zap.String("dir", dir), zap.String("pattern", pattern))
		return res, nil
	}

	combined := frame.Concat(frames...)
	if err := combined.WriteFile(out); err != nil {
		return res, err
	}
	res.Files = len(frames)
	res.Rows = combined.Len()
	log.Info("combined files", zap.Int("files", res.Files), zap.Int("rows", res.Rows))
	return res, nil
}

// CombineAll rebuilds every combined artifact in the data directory from the
// per-company outputs. A failing target does not stop the others.
func (l Layout) CombineAll(ctx context.Context) ([]CombineResult, error) {
	var (
		results []CombineResult
		errs    error
	)
	run := func(res CombineResult, err error) {
		results = append(results, res)
		errs = multierr.Append(errs, err)
	}

	for _, st := range model.AllStatementTypes() {
		run(Combine(ctx, l.StatementDir(st), "*.csv", l.Data(st.CombinedFile())))
	}
	run(Combine(ctx, l.MarketDir(), "*.csv", l.Data(model.MarketCombined)))
	for _, sec := range model.AllSections() {
		run(CombineSection(ctx, l.ProfileDir(), sec, l.Data(sec.CombinedFile())))
	}
	return results, errs
}
