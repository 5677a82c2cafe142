package registry

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bursa-cli/internal/model"
)

// Overrides maps a listed company name to its known-correct registry record.
type Overrides map[string]model.RegistryMatch

// DefaultOverrides are records the search API is known to get wrong.
func DefaultOverrides() Overrides {
	return Overrides{
		"SIME DARBY PROPERTY BERHAD": {
			CompanyName:  "SIME DARBY PROPERTY BERHAD",
			NameDB:       "SIME DARBY PROPERTY BERHAD",
			CompanyNo:    "197301002148",
			OldCompanyNo: "0015631P",
			CompanyType:  "Company",
			Score:        100,
		},
	}
}

type overrideEntry struct {
	CompanyName  string  `yaml:"company_name"`
	NameDB       string  `yaml:"name_db"`
	CompanyNo    string  `yaml:"company_no"`
	OldCompanyNo string  `yaml:"old_company_no"`
	CompanyType  string  `yaml:"company_type"`
	Score        float64 `yaml:"match_score"`
}

// LoadOverrides reads additional overrides from a YAML list and merges them
// over the defaults. An empty path returns the defaults.
func LoadOverrides(path string) (Overrides, error) {
	out := DefaultOverrides()
	if path == "" {
		return out, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read overrides %s", path)
	}
	var entries []overrideEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "registry: parse overrides %s", path)
	}
	for i, e := range entries {
		if e.CompanyName == "" || e.CompanyNo == "" {
			return nil, eris.Errorf("registry: override %d in %s needs company_name and company_no", i, path)
		}
		score := e.Score
		if score == 0 {
			score = 100
		}
		nameDB := e.NameDB
		if nameDB == "" {
			nameDB = e.CompanyName
		}
		out[e.CompanyName] = model.RegistryMatch{
			CompanyName:  e.CompanyName,
			NameDB:       nameDB,
			CompanyNo:    e.CompanyNo,
			OldCompanyNo: e.OldCompanyNo,
			CompanyType:  e.CompanyType,
			Score:        score,
		}
	}
	return out, nil
}

// Apply drops every record whose name has an override and appends the
// override records, sorted by name.
func (o Overrides) Apply(records []model.RegistryMatch) []model.RegistryMatch {
	if len(o) == 0 {
		return records
	}
	out := make([]model.RegistryMatch, 0, len(records)+len(o))
	for _, r := range records {
		if _, ok := o[r.CompanyName]; !ok {
			out = append(out, r)
		}
	}
	names := make([]string, 0, len(o))
	for n := range o {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		out = append(out, o[n])
	}
	return out
}
