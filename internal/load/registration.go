// Package load turns the combined scrape artifacts into keyed, typed tables
// and writes them to the Postgres sink.
package load

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/frame"
	"github.com/sells-group/bursa-cli/internal/model"
)

// Columns added to every record by the registration join.
const (
	ColRegistrationNumber    = "registration_number"
	ColOldRegistrationNumber = "old_registration_number"
	ColCompanyNameBursa      = "company_name_bursa"
	ColCompanyNameAPI        = "company_name_api"
	ColCompanyID             = "company_id"
)

var registrationColumns = []string{
	ColCompanyNameBursa,
	ColCompanyNameAPI,
	ColRegistrationNumber,
	ColOldRegistrationNumber,
}

// Registration is the registry identity of one listed company.
type Registration struct {
	CompanyNameBursa      string
	CompanyNameAPI        string
	RegistrationNumber    string
	OldRegistrationNumber string
}

// Registrations maps a company id to its registration.
type Registrations map[string]Registration

// JoinRegistrations pairs registry matches with the listing by company name.
// Names without a match, and listing rows with a bad id, are left out.
func JoinRegistrations(matches []model.RegistryMatch, listing []model.CompanyIdentity) Registrations {
	byName := make(map[string]model.RegistryMatch, len(matches))
	for _, m := range matches {
		if _, ok := byName[m.CompanyName]; !ok {
			byName[m.CompanyName] = m
		}
	}

	out := make(Registrations, len(listing))
	for _, c := range listing {
		m, ok := byName[c.CompanyName]
		if !ok {
			continue
		}
		cid, err := model.NormalizeCompanyID(c.CompanyID)
		if err != nil {
			continue
		}
		if _, dup := out[cid]; dup {
			continue
		}
		out[cid] = Registration{
			CompanyNameBursa:      m.CompanyName,
			CompanyNameAPI:        m.NameDB,
			RegistrationNumber:    cleanRegistration(m.CompanyNo),
			OldRegistrationNumber: cleanRegistration(m.OldCompanyNo),
		}
	}
	return out
}

// cleanRegistration undoes float rendering of numeric registration numbers
// and treats null spellings as empty.
func cleanRegistration(s string) string {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ".0"))
	if isNullText(s) {
		return ""
	}
	return s
}

func isNullText(s string) bool {
	switch s {
	case "", "nan", "NaN", "None", "none":
		return true
	}
	return false
}

// Join keeps the rows whose company_id has a registration and prepends the
// registration columns.
func (rs Registrations) Join(f *frame.Frame) *frame.Frame {
	out := frame.New(append(append([]string(nil), registrationColumns...), ColCompanyID)...)
	for _, c := range f.Columns() {
		out.AddColumn(c)
	}
	for _, r := range f.Rows() {
		reg, ok := rs[r[ColCompanyID]]
		if !ok {
			continue
		}
		nr := make(frame.Row, len(r)+len(registrationColumns))
		for k, v := range r {
			nr[k] = v
		}
		setIf(nr, ColCompanyNameBursa, reg.CompanyNameBursa)
		setIf(nr, ColCompanyNameAPI, reg.CompanyNameAPI)
		setIf(nr, ColRegistrationNumber, reg.RegistrationNumber)
		setIf(nr, ColOldRegistrationNumber, reg.OldRegistrationNumber)
		out.Append(nr)
	}
	return out
}

func setIf(r frame.Row, col, v string) {
	if v != "" {
		r[col] = v
	}
}

// normalizeIDs zero-pads company ids in place. Ids that cannot be padded are
// kept as read and logged.
func normalizeIDs(f *frame.Frame, log *zap.Logger) {
	bad := 0
	for _, r := range f.Rows() {
		raw, ok := r[ColCompanyID]
		if !ok {
			continue
		}
		cid, err := model.NormalizeCompanyID(raw)
		if err != nil {
			r[ColCompanyID] = strings.TrimSpace(raw)
			bad++
			continue
		}
		r[ColCompanyID] = cid
	}
	if bad > 0 {
		log.Warn("company ids that are not 1-4 digits", zap.Int("rows", bad))
	}
}

// hasRegistration reports whether a row carries a usable registration number.
func hasRegistration(r frame.Row) bool {
	v, ok := r[ColRegistrationNumber]
	return ok && !isNullText(strings.TrimSpace(v))
}
