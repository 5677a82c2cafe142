package pipeline

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/artifact"
	"github.com/sells-group/bursa-cli/internal/batch"
	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/frame"
	"github.com/sells-group/bursa-cli/internal/load"
	"github.com/sells-group/bursa-cli/internal/model"
	"github.com/sells-group/bursa-cli/internal/registry"
	"github.com/sells-group/bursa-cli/internal/scrape"
)

// ListingOptions controls the listing step.
type ListingOptions struct {
	// Update appends unseen companies to the existing listing instead of
	// replacing it.
	Update bool
	// DryRun scrapes and reports without writing any file.
	DryRun bool
}

// ListingResult summarises a listing refresh.
type ListingResult struct {
	Scraped int
	Total   int
	Added   []model.CompanyIdentity
}

// Listing scrapes every configured market directory, writes one file per
// market and rebuilds the combined listing. A failed market leaves the
// combined listing untouched.
func Listing(ctx context.Context, env *Env, opts ListingOptions) (ListingResult, error) {
	log := zap.L().With(zap.String("component", "pipeline.listing"))
	var res ListingResult

	urls := env.Config.Exchange.ListingURLs
	if len(urls) == 0 {
		return res, eris.New("pipeline: no listing urls configured")
	}

	page, done, err := env.page(ctx)
	if err != nil {
		return res, err
	}
	defer done()

	var (
		fresh []model.CompanyIdentity
		errs  error
	)
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		companies, err := env.Scrapers.Listing.Scrape(ctx, page, u)
		if err != nil {
			errs = multierr.Append(errs, eris.Wrapf(err, "pipeline: listing %s", u))
			continue
		}
		log.Info("market scraped", zap.String("url", u), zap.Int("companies", len(companies)))
		if !opts.DryRun {
			if err := artifact.WriteRecords(env.Layout.MarketListingFile(u), companies); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		fresh = append(fresh, companies...)
	}
	if errs != nil {
		return res, errs
	}

	var existing []model.CompanyIdentity
	if opts.Update {
		if existing, err = env.Layout.ReadListing(); err != nil {
			return res, err
		}
	}
	merged, added := artifact.MergeListing(existing, fresh, opts.Update)
	res = ListingResult{Scraped: len(fresh), Total: len(merged), Added: added}
	log.Info("listing merged",
		zap.Int("scraped", res.Scraped),
		zap.Int("total", res.Total),
		zap.Int("added", len(added)),
		zap.Bool("dry_run", opts.DryRun),
	)
	if opts.DryRun {
		return res, nil
	}

	if err := artifact.WriteRecords(env.Layout.Data(artifact.ListingFile), merged); err != nil {
		return res, err
	}
	if opts.Update {
		if err := artifact.AppendRecords(env.Layout.Data(artifact.NewCompaniesFile), added); err != nil {
			return res, err
		}
	}
	return res, nil
}

// page opens a single page for steps that do not fan out.
func (e *Env) page(ctx context.Context) (browser.Page, func(), error) {
	launcher, err := e.Launcher()
	if err != nil {
		return nil, nil, err
	}
	var opts browser.SessionOptions
	if agents := e.Config.Browser.UserAgents; len(agents) > 0 {
		opts.UserAgent = agents[0]
	}
	sess, err := launcher.NewSession(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	page, err := sess.NewPage(ctx)
	if err != nil {
		_ = sess.Close()
		return nil, nil, err
	}
	return page, func() {
		_ = page.Close()
		_ = sess.Close()
	}, nil
}

// URLs resolves detail pages for listed companies that have neither a cached
// URL nor a bad-id entry. Companies the exchange search does not know are
// recorded as bad ids. With retry set only the bad ids are searched again and
// the bad-id list is rewritten to those still unresolved.
func URLs(ctx context.Context, env *Env, retry bool) (*batch.Report, error) {
	log := zap.L().With(zap.String("component", "pipeline.urls"), zap.Bool("retry", retry))

	listing, err := env.Layout.ReadListing()
	if err != nil {
		return nil, err
	}
	if len(listing) == 0 {
		return nil, eris.New("pipeline: listing is empty; run listing first")
	}
	cache, err := env.Layout.ReadURLCache()
	if err != nil {
		return nil, err
	}
	bad, err := env.Layout.ReadBadIDs()
	if err != nil {
		return nil, err
	}

	var ids []string
	if retry {
		ids = artifact.PendingIDs(sortedIDs(bad), cache, nil)
	} else {
		all := make([]string, len(listing))
		for i, c := range listing {
			all[i] = c.CompanyID
		}
		ids = artifact.PendingIDs(all, cache, bad)
	}
	log.Info("resolving urls", zap.Int("pending", len(ids)), zap.Int("cached", len(cache)), zap.Int("bad", len(bad)))

	targets := make([]model.ScrapeTarget, len(ids))
	for i, id := range ids {
		targets[i] = model.ScrapeTarget{CompanyID: id}
	}

	launcher, err := env.Launcher()
	if err != nil {
		return nil, err
	}
	r := runner[string](env, "urls", launcher, func(ctx context.Context, page browser.Page, t model.ScrapeTarget) (string, error) {
		u, err := env.Scrapers.URLs.Find(ctx, page, t.CompanyID)
		if err != nil {
			return "", err
		}
		if u == "" {
			return "", scrape.NewError(scrape.KindNoRowsFound, t.CompanyID, eris.New("pipeline: stock search has no match"))
		}
		return u, nil
	}, len(targets))
	r.OnSuccess = func(t model.ScrapeTarget, u string) error {
		return env.Layout.AppendURL(model.ScrapeTarget{CompanyID: t.CompanyID, URL: u})
	}
	rep := r.Run(ctx, targets)
	env.alertBatch(ctx, rep)

	if retry {
		resolved := make(map[string]bool)
		for _, id := range rep.Succeeded() {
			resolved[id] = true
		}
		var remaining []string
		for _, id := range sortedIDs(bad) {
			if !resolved[id] {
				remaining = append(remaining, id)
			}
		}
		return rep, env.Layout.RewriteBadIDs(remaining)
	}

	var missing []string
	for _, o := range rep.Failed() {
		if o.Kind() == scrape.KindNoRowsFound {
			missing = append(missing, o.CompanyID)
		}
	}
	return rep, env.Layout.AppendBadIDs(missing)
}

func sortedIDs(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// targets returns the cached detail pages, or only companyID's when set.
// Already-scraped companies are skipped unless one company was asked for.
func (e *Env) targets(companyID string, done func() (map[string]bool, error)) ([]model.ScrapeTarget, error) {
	cache, err := e.Layout.ReadURLCache()
	if err != nil {
		return nil, err
	}
	if companyID != "" {
		id, err := model.NormalizeCompanyID(companyID)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: company id %q", companyID)
		}
		for _, t := range cache {
			if t.CompanyID == id {
				return []model.ScrapeTarget{t}, nil
			}
		}
		return nil, eris.Errorf("pipeline: no cached url for company %s; run urls first", id)
	}
	if len(cache) == 0 {
		return nil, eris.New("pipeline: url cache is empty; run urls first")
	}
	scraped, err := done()
	if err != nil {
		return nil, err
	}
	return artifact.Pending(cache, scraped), nil
}

// Statements scrapes one statement type for every pending company, writing
// one file per company as it completes, then rebuilds the combined file. The
// combined file is rebuilt even after cancellation.
func Statements(ctx context.Context, env *Env, st model.StatementType, companyID string) (*batch.Report, error) {
	dir := env.Layout.StatementDir(st)
	targets, err := env.targets(companyID, func() (map[string]bool, error) {
		return artifact.ScrapedIDs(dir, ".csv")
	})
	if err != nil {
		return nil, err
	}

	launcher, err := env.Launcher()
	if err != nil {
		return nil, err
	}
	scraper := env.Scrapers.Statements
	r := runner[*frame.Frame](env, string(st), launcher, func(ctx context.Context, page browser.Page, t model.ScrapeTarget) (*frame.Frame, error) {
		return scraper.Scrape(ctx, page, st, t)
	}, len(targets))
	r.OnSuccess = func(t model.ScrapeTarget, f *frame.Frame) error {
		return f.WriteFile(env.Layout.StatementFile(st, t.CompanyID))
	}
	rep := r.Run(ctx, targets)
	env.alertBatch(ctx, rep)

	_, err = artifact.Combine(context.WithoutCancel(ctx), dir, "*.csv", env.Layout.Data(st.CombinedFile()))
	return rep, err
}

// Profiles scrapes the profile page sections of every pending company and
// rebuilds the combined file of each section.
func Profiles(ctx context.Context, env *Env, companyID string) (*batch.Report, error) {
	dir := env.Layout.ProfileDir()
	targets, err := env.targets(companyID, func() (map[string]bool, error) {
		return artifact.ScrapedIDs(dir, "."+string(model.SectionProfile)+".csv")
	})
	if err != nil {
		return nil, err
	}

	launcher, err := env.Launcher()
	if err != nil {
		return nil, err
	}
	r := runner[map[model.Section]*frame.Frame](env, "profile", launcher, env.Scrapers.Profiles.Scrape, len(targets))
	r.OnSuccess = func(t model.ScrapeTarget, sections map[model.Section]*frame.Frame) error {
		var errs error
		for _, sec := range model.AllSections() {
			if f := sections[sec]; f != nil {
				errs = multierr.Append(errs, f.WriteFile(env.Layout.SectionFile(t.CompanyID, sec)))
			}
		}
		return errs
	}
	rep := r.Run(ctx, targets)
	env.alertBatch(ctx, rep)

	var errs error
	for _, sec := range model.AllSections() {
		_, err := artifact.CombineSection(context.WithoutCancel(ctx), dir, sec, env.Layout.Data(sec.CombinedFile()))
		errs = multierr.Append(errs, err)
	}
	return rep, errs
}

// Market scrapes market capitalisation and volume for every pending company
// and rebuilds the combined market file.
func Market(ctx context.Context, env *Env, companyID string) (*batch.Report, error) {
	dir := env.Layout.MarketDir()
	targets, err := env.targets(companyID, func() (map[string]bool, error) {
		return artifact.ScrapedIDs(dir, ".csv")
	})
	if err != nil {
		return nil, err
	}

	launcher, err := env.Launcher()
	if err != nil {
		return nil, err
	}
	r := runner[model.MarketInfo](env, "market", launcher, env.Scrapers.Market.Scrape, len(targets))
	r.OnSuccess = func(t model.ScrapeTarget, info model.MarketInfo) error {
		info.CompanyID = t.CompanyID
		return env.Layout.WriteMarketInfo(info)
	}
	rep := r.Run(ctx, targets)
	env.alertBatch(ctx, rep)

	_, err = artifact.Combine(context.WithoutCancel(ctx), dir, "*.csv", env.Layout.Data(model.MarketCombined))
	return rep, err
}

// Match resolves every listed company name against the registry, skipping
// names already in the match file. The match file is written even when the
// run is cancelled, so a rerun resumes where it stopped.
func Match(ctx context.Context, env *Env) (int, error) {
	listing, err := env.Layout.ReadListing()
	if err != nil {
		return 0, err
	}
	if len(listing) == 0 {
		return 0, eris.New("pipeline: listing is empty; run listing first")
	}
	existing, err := env.Layout.ReadMatches()
	if err != nil {
		return 0, err
	}
	overrides, err := registry.LoadOverrides(env.Config.Registry.OverridesFile)
	if err != nil {
		return 0, err
	}

	names := registry.Names(listing)
	var progress func(model.RegistryMatch)
	if tick := env.progress("match", max(len(names)-len(existing), 0)); tick != nil {
		progress = func(m model.RegistryMatch) { tick(m.Matched()) }
	}

	out, runErr := registry.NewMatcher(env.Registry, overrides).Run(ctx, names, existing, progress)
	if err := env.Layout.WriteMatches(out); err != nil {
		return len(out), multierr.Append(runErr, err)
	}

	matched := 0
	for _, m := range out {
		if m.Matched() {
			matched++
		}
	}
	zap.L().Info("registry matches written",
		zap.String("component", "pipeline.match"),
		zap.Int("records", len(out)),
		zap.Int("matched", matched),
	)
	return len(out), runErr
}

// Combine rebuilds every combined artifact from the per-company outputs.
func Combine(ctx context.Context, env *Env) ([]artifact.CombineResult, error) {
	return env.Layout.CombineAll(ctx)
}

// Load normalizes the combined artifacts and writes them to the sink.
func Load(ctx context.Context, env *Env, mode load.Mode) ([]load.Result, error) {
	if env.OpenSink == nil {
		return nil, eris.New("pipeline: no sink configured")
	}
	w, release, err := env.OpenSink(ctx, mode)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: open sink")
	}
	defer release()

	results, err := load.NewLoader(env.Layout, w).Run(ctx)
	for _, r := range results {
		zap.L().Info("dataset loaded",
			zap.String("component", "pipeline.load"),
			zap.String("dataset", r.Dataset),
			zap.String("mode", mode.String()),
			zap.Int("rows", r.Rows),
			zap.Int64("inserted", r.Inserted),
			zap.Bool("skipped", r.Skipped),
		)
	}
	return results, err
}
