// Package artifact owns the on-disk layout of the pipeline: per-company scrape
// outputs, the combined files built from them, and the typed CSV lists that
// carry state between steps (listing, URL cache, bad ids, registry matches).
package artifact

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/model"
)

// Well-known files under the data directory.
const (
	ListingFile       = "bursa_company_list.csv"
	NewCompaniesFile  = "log_new_companies.csv"
	URLCacheFile      = "company_urls.csv"
	BadIDsFile        = "no_financials.csv"
	MatchesFile       = "matched_companies_from_ssm.csv"
	sectionFileSuffix = ".csv"
)

// Layout resolves artifact paths from the configured directories.
type Layout struct {
	DataDir    string
	OutputsDir string
}

// NewLayout builds a Layout from the paths config.
func NewLayout(cfg config.PathsConfig) Layout {
	return Layout{DataDir: cfg.DataDir, OutputsDir: cfg.OutputsDir}
}

// Data returns the path of a file in the data directory.
func (l Layout) Data(name string) string {
	return filepath.Join(l.DataDir, name)
}

// StatementDir is the per-company output directory of a statement.
func (l Layout) StatementDir(st model.StatementType) string {
	return filepath.Join(l.OutputsDir, st.OutputDir())
}

// StatementFile is the per-company statement output.
func (l Layout) StatementFile(st model.StatementType, companyID string) string {
	return filepath.Join(l.StatementDir(st), companyID+".csv")
}

// ProfileDir holds the per-company profile section files.
func (l Layout) ProfileDir() string {
	return filepath.Join(l.OutputsDir, model.ProfileOutputDir)
}

// SectionFile is the per-company output of one profile section.
func (l Layout) SectionFile(companyID string, sec model.Section) string {
	return filepath.Join(l.ProfileDir(), companyID+"."+string(sec)+sectionFileSuffix)
}

// MarketDir holds the per-company market info files.
func (l Layout) MarketDir() string {
	return filepath.Join(l.OutputsDir, model.MarketOutputDir)
}

// MarketFile is the per-company market info output.
func (l Layout) MarketFile(companyID string) string {
	return filepath.Join(l.MarketDir(), companyID+".csv")
}

// MarketListingFile names the per-market listing file for a directory URL.
// The main board keeps its historical name.
func (l Layout) MarketListingFile(directoryURL string) string {
	name := directoryURL
	if u, err := url.Parse(directoryURL); err == nil {
		name = path.Base(strings.TrimSuffix(u.Path, "/"))
	}
	if name == "main_market" {
		name = "bursa_main"
	}
	return l.Data(name + ".csv")
}

// ScrapedIDs returns the company ids that already have an output file in dir
// whose name ends with suffix. A missing directory yields an empty set.
func ScrapedIDs(dir, suffix string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: list %s", dir)
	}
	out := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		id, _, _ := strings.Cut(name, ".")
		if id != "" {
			out[id] = true
		}
	}
	return out, nil
}

// Pending filters targets down to those not yet scraped, sorted by company id.
func Pending(targets []model.ScrapeTarget, done map[string]bool) []model.ScrapeTarget {
	var out []model.ScrapeTarget
	for _, t := range targets {
		if !done[t.CompanyID] {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompanyID < out[j].CompanyID })
	return out
}
