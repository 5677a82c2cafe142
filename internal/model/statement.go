package model

import "fmt"

// StatementType identifies one of the financial statements on a company page.
type StatementType string

const (
	StatementBalance  StatementType = "balance"
	StatementCashFlow StatementType = "cashflow"
	StatementIncome   StatementType = "income"
)

// AllStatementTypes returns every statement type in pipeline order.
func AllStatementTypes() []StatementType {
	return []StatementType{StatementBalance, StatementCashFlow, StatementIncome}
}

// ParseStatementType maps a CLI or config name onto a StatementType.
func ParseStatementType(s string) (StatementType, error) {
	switch StatementType(s) {
	case StatementBalance, StatementCashFlow, StatementIncome:
		return StatementType(s), nil
	}
	return "", fmt.Errorf("model: unknown statement type %q", s)
}

// Tab is the label of the statement sub-tab on the exchange site.
func (s StatementType) Tab() string {
	switch s {
	case StatementBalance:
		return "Balance Sheet"
	case StatementCashFlow:
		return "Cash Flow"
	case StatementIncome:
		return "Income Statement"
	}
	return ""
}

// OutputDir is the per-company output directory name under the outputs root.
func (s StatementType) OutputDir() string {
	switch s {
	case StatementBalance:
		return "balance_sheet_expanded"
	case StatementCashFlow:
		return "cash_flow_expanded"
	case StatementIncome:
		return "income_statement_expanded"
	}
	return string(s)
}

// CombinedFile is the name of the combined artifact for this statement.
func (s StatementType) CombinedFile() string {
	switch s {
	case StatementBalance:
		return "complete_balance_sheets.csv"
	case StatementCashFlow:
		return "complete_cash_flow_statements.csv"
	case StatementIncome:
		return "complete_income_statements.csv"
	}
	return string(s) + ".csv"
}

// Table is the sink table name for this statement.
func (s StatementType) Table() string {
	switch s {
	case StatementBalance:
		return "public_complete_balance_sheet"
	case StatementCashFlow:
		return "public_complete_cash_flow"
	case StatementIncome:
		return "public_complete_income"
	}
	return string(s)
}

// Section is one block of the company profile page.
type Section string

const (
	SectionProfile    Section = "profile"
	SectionManagement Section = "management"
	SectionOwnership  Section = "ownership"
	SectionTop10      Section = "top10"
	SectionInsider    Section = "insider"
)

// AllSections returns every profile section in extraction order.
func AllSections() []Section {
	return []Section{SectionProfile, SectionManagement, SectionOwnership, SectionTop10, SectionInsider}
}

// CombinedFile is the name of the combined artifact for this section.
func (s Section) CombinedFile() string {
	return "combined_" + string(s) + ".csv"
}

// Table is the sink table name for this section.
func (s Section) Table() string {
	switch s {
	case SectionProfile:
		return "public_complete_company_profile"
	case SectionManagement:
		return "public_complete_directors_executives"
	case SectionOwnership:
		return "public_complete_ownership"
	case SectionTop10:
		return "public_complete_top10_shareholders"
	case SectionInsider:
		return "public_complete_insider_trades"
	}
	return string(s)
}

// Output directories for non-statement scrapes.
const (
	ProfileOutputDir = "profile_details"
	MarketOutputDir  = "marketcap_volume"
	MarketCombined   = "market_info_sample.csv"
)
