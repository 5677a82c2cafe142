package model

// RegistryMatch is the best registry candidate for a listed company name.
// Empty strings stand for a null match; Score is 0 in that case.
type RegistryMatch struct {
	CompanyName  string  `csv:"company_name" json:"company_name"`
	NameDB       string  `csv:"name_db" json:"name_db"`
	CompanyNo    string  `csv:"companyNo" json:"companyNo"`
	OldCompanyNo string  `csv:"oldCompanyNo" json:"oldCompanyNo"`
	CompanyType  string  `csv:"company_type" json:"company_type"`
	Score        float64 `csv:"match_score" json:"match_score"`
}

// Matched reports whether a registry candidate was selected.
func (m RegistryMatch) Matched() bool {
	return m.CompanyNo != ""
}

// NullMatch returns the sentinel record for a name with no usable candidate.
func NullMatch(name string) RegistryMatch {
	return RegistryMatch{CompanyName: name}
}
