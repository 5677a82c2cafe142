package artifact

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/model"
)

// DedupeCompanies drops repeated company ids, keeping the first occurrence.
func DedupeCompanies(in []model.CompanyIdentity) []model.CompanyIdentity {
	seen := make(map[string]bool, len(in))
	out := make([]model.CompanyIdentity, 0, len(in))
	for _, c := range in {
		if seen[c.CompanyID] {
			continue
		}
		seen[c.CompanyID] = true
		out = append(out, c)
	}
	return out
}

// MergeListing combines a fresh directory scrape with the existing listing.
// In update mode only unseen ids are appended and returned as added; otherwise
// the fresh scrape replaces the listing. Update mode with no existing listing
// behaves like a full refresh.
func MergeListing(existing, fresh []model.CompanyIdentity, update bool) (merged, added []model.CompanyIdentity) {
	fresh = DedupeCompanies(fresh)
	if !update || len(existing) == 0 {
		return fresh, nil
	}
	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[c.CompanyID] = true
	}
	merged = append([]model.CompanyIdentity(nil), existing...)
	for _, c := range fresh {
		if !known[c.CompanyID] {
			added = append(added, c)
		}
	}
	merged = append(merged, added...)
	return merged, added
}

// ReadListing loads the combined company listing with normalized ids.
func (l Layout) ReadListing() ([]model.CompanyIdentity, error) {
	rows, err := ReadRecords[model.CompanyIdentity](l.Data(ListingFile))
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, c := range rows {
		id, err := model.NormalizeCompanyID(c.CompanyID)
		if err != nil {
			zap.L().Warn("artifact: skipping listing row", zap.String("company_id", c.CompanyID), zap.Error(err))
			continue
		}
		c.CompanyID = id
		out = append(out, c)
	}
	return out, nil
}

// ReadURLCache loads the resolved detail URLs. Rows without a URL are dropped
// and the last row for an id wins.
func (l Layout) ReadURLCache() ([]model.ScrapeTarget, error) {
	rows, err := ReadRecords[model.ScrapeTarget](l.Data(URLCacheFile))
	if err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(rows))
	var out []model.ScrapeTarget
	for _, t := range rows {
		id, err := model.NormalizeCompanyID(t.CompanyID)
		if err != nil || t.URL == "" {
			continue
		}
		t.CompanyID = id
		if i, ok := pos[id]; ok {
			out[i] = t
			continue
		}
		pos[id] = len(out)
		out = append(out, t)
	}
	return out, nil
}

// AppendURL records one resolved detail URL.
func (l Layout) AppendURL(t model.ScrapeTarget) error {
	return AppendRecords(l.Data(URLCacheFile), []model.ScrapeTarget{t})
}

// ReadBadIDs loads the ids known to lack a detail page.
func (l Layout) ReadBadIDs() (map[string]bool, error) {
	rows, err := ReadRecords[model.BadID](l.Data(BadIDsFile))
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(rows))
	for _, b := range rows {
		if id, err := model.NormalizeCompanyID(b.CompanyID); err == nil {
			out[id] = true
		}
	}
	return out, nil
}

// AppendBadIDs adds ids to the bad-id list, skipping ones already present.
func (l Layout) AppendBadIDs(ids []string) error {
	known, err := l.ReadBadIDs()
	if err != nil {
		return err
	}
	var rows []model.BadID
	for _, id := range ids {
		if known[id] {
			continue
		}
		known[id] = true
		rows = append(rows, model.BadID{CompanyID: id})
	}
	return AppendRecords(l.Data(BadIDsFile), rows)
}

// RewriteBadIDs replaces the bad-id list with ids. An empty list removes the file.
func (l Layout) RewriteBadIDs(ids []string) error {
	path := l.Data(BadIDsFile)
	if len(ids) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "artifact: remove %s", path)
		}
		return nil
	}
	rows := make([]model.BadID, len(ids))
	for i, id := range ids {
		rows[i] = model.BadID{CompanyID: id}
	}
	return WriteRecords(path, rows)
}

// PendingIDs returns ids with no cached URL that are not known bad.
func PendingIDs(ids []string, cache []model.ScrapeTarget, bad map[string]bool) []string {
	resolved := make(map[string]bool, len(cache))
	for _, t := range cache {
		resolved[t.CompanyID] = true
	}
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if seen[id] || resolved[id] || bad[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ReadMatches loads the registry match file.
func (l Layout) ReadMatches() ([]model.RegistryMatch, error) {
	return ReadRecords[model.RegistryMatch](l.Data(MatchesFile))
}

// WriteMatches replaces the registry match file.
func (l Layout) WriteMatches(matches []model.RegistryMatch) error {
	return WriteRecords(l.Data(MatchesFile), matches)
}

// WriteMarketInfo writes the per-company market info file.
func (l Layout) WriteMarketInfo(info model.MarketInfo) error {
	return WriteRecords(l.MarketFile(info.CompanyID), []model.MarketInfo{info})
}
