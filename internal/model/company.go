package model

import (
	"errors"
	"strings"
)

// CompanyIDWidth is the fixed width of an exchange company id.
const CompanyIDWidth = 4

// ErrInvalidCompanyID is returned for ids that are not 1-4 ASCII digits.
var ErrInvalidCompanyID = errors.New("model: invalid company id")

// NormalizeCompanyID trims raw and left-pads it with zeros to four digits.
// Non-numeric or longer ids are rejected rather than truncated.
func NormalizeCompanyID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > CompanyIDWidth {
		return "", ErrInvalidCompanyID
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", ErrInvalidCompanyID
		}
	}
	return strings.Repeat("0", CompanyIDWidth-len(s)) + s, nil
}

// CompanyIdentity is one listed company as read from the listing directory.
type CompanyIdentity struct {
	CompanyName string `csv:"company_name" json:"company_name"`
	CompanyID   string `csv:"company_id" json:"company_id"`
}

// ScrapeTarget is a resolved company detail page.
type ScrapeTarget struct {
	CompanyID string `csv:"company_id" json:"company_id"`
	URL       string `csv:"new_url" json:"new_url"`
}

// BadID is a company id known to lack a financials page.
type BadID struct {
	CompanyID string `csv:"company_id" json:"company_id"`
}

// MarketInfo holds the headline trading figures of a company.
type MarketInfo struct {
	CompanyID    string `csv:"company_id" json:"company_id"`
	MarketCapMil string `csv:"market_cap_mil" json:"market_cap_mil"`
	Volume       string `csv:"volume" json:"volume"`
	SourceURL    string `csv:"source_url" json:"source_url"`
}
