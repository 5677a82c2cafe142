package load

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/frame"
	"github.com/sells-group/bursa-cli/internal/model"
	"github.com/sells-group/bursa-cli/internal/statement"
)

const (
	ColFiscalDate = "fiscal_date"
	ColFiscalYear = "fiscal_year"

	yoySuffix  = "_yoy"
	dateLayout = "02 Jan 2006"
)

var fiscalDateRe = regexp.MustCompile(`\d{1,2} \w{3} \d{4}`)

// StatementKey is the natural key of every statement table.
var StatementKey = []string{ColRegistrationNumber, ColFiscalDate}

// statementRules holds what differs between the three statements.
type statementRules struct {
	// keep lists the sink columns in order. Nil keeps every column.
	keep []string
	// numeric columns are written as double precision.
	numeric []string
	derive  func(f *frame.Frame, log *zap.Logger)
}

var rules = map[model.StatementType]statementRules{
	model.StatementBalance: {
		keep: []string{
			ColRegistrationNumber, ColOldRegistrationNumber, ColCompanyID, ColFiscalDate, ColFiscalYear,
			"retained_earnings_accumulated_deficit", "total_equity", "total_debt",
			"total_current_assets", "total_assets", "total_current_liabilities", "total_liabilities",
		},
		numeric: []string{"total_current_assets", "total_assets"},
		derive:  deriveTotalAssets,
	},
	model.StatementIncome: {
		keep: []string{
			ColCompanyID, ColRegistrationNumber, ColOldRegistrationNumber,
			"revenue", "net_income_before_taxes", "net_income_after_taxes",
			ColFiscalDate, ColFiscalYear,
			"operating_income", "gross_profit", "cost_of_revenue",
			"basic_eps_including_extraordinary_items",
		},
		numeric: []string{"revenue"},
		derive:  deriveRevenue,
	},
	model.StatementCashFlow: {},
}

// NumericColumns lists the columns of st that the sink stores as numbers.
func NumericColumns(st model.StatementType) []string {
	return rules[st].numeric
}

// NormalizeStatement turns a combined statement artifact into sink rows:
// one row per company and fiscal date with the YoY figures alongside,
// registration columns joined in and names cleaned.
func NormalizeStatement(f *frame.Frame, st model.StatementType, regs Registrations) *frame.Frame {
	log := zap.L().With(zap.String("component", "load"), zap.String("statement", string(st)))

	normalizeIDs(f, log)
	merged := mergeYoY(f)
	joined := regs.Join(merged)

	if dropped := joined.MapColumns(CleanColumn); len(dropped) > 0 {
		log.Warn("duplicate columns after cleaning", zap.Strings("dropped", dropped))
	}

	r := rules[st]
	if r.derive != nil {
		r.derive(joined, log)
	}
	if st == model.StatementIncome {
		applyKnownRevenue(joined)
	}

	out := finishDated(joined, log)
	if r.keep != nil {
		out = out.Select(present(out, r.keep)...)
	}
	return out
}

// mergeYoY splits Value and YoY rows and left-joins the YoY figures onto the
// Value rows by company and fiscal date. YoY columns that never hold a
// percent are dropped.
func mergeYoY(f *frame.Frame) *frame.Frame {
	type key struct{ cid, date string }

	var metrics []string
	for _, c := range f.Columns() {
		if c != ColCompanyID && c != statement.ColYearType {
			metrics = append(metrics, c)
		}
	}

	yoy := make(map[key]frame.Row)
	var values []frame.Row
	for _, r := range f.Rows() {
		label := r[statement.ColYearType]
		k := key{r[ColCompanyID], fiscalDateRe.FindString(label)}
		switch {
		case strings.Contains(label, string(statement.RowYoY)):
			if _, seen := yoy[k]; !seen {
				yoy[k] = r
			}
		case strings.Contains(label, string(statement.RowValue)):
			values = append(values, r)
		}
	}

	withPercent := make(map[string]bool)
	for _, r := range yoy {
		for _, m := range metrics {
			if strings.Contains(r[m], "%") {
				withPercent[m] = true
			}
		}
	}

	cols := append([]string{ColCompanyID}, metrics...)
	cols = append(cols, "Fiscal Date")
	for _, m := range metrics {
		if withPercent[m] {
			cols = append(cols, m+yoySuffix)
		}
	}

	out := frame.New(cols...)
	for _, v := range values {
		date := fiscalDateRe.FindString(v[statement.ColYearType])
		nr := make(frame.Row, len(cols))
		for _, c := range append([]string{ColCompanyID}, metrics...) {
			if x, ok := v[c]; ok {
				nr[c] = x
			}
		}
		if date != "" {
			nr["Fiscal Date"] = date
		}
		if y, ok := yoy[key{v[ColCompanyID], date}]; ok {
			for _, m := range metrics {
				if x, ok := y[m]; ok && withPercent[m] {
					nr[m+yoySuffix] = x
				}
			}
		}
		out.Append(nr)
	}
	return out
}

// finishDated re-renders fiscal dates, adds the fiscal year, sorts by
// company then newest date first, and drops rows the sink cannot key.
func finishDated(f *frame.Frame, log *zap.Logger) *frame.Frame {
	f.AddColumn(ColFiscalYear)

	dates := make([]time.Time, f.Len())
	for i, r := range f.Rows() {
		raw, ok := r[ColFiscalDate]
		if !ok {
			continue
		}
		t, err := time.Parse("2 Jan 2006", strings.TrimSpace(raw))
		if err != nil {
			delete(r, ColFiscalDate)
			continue
		}
		dates[i] = t
		r[ColFiscalDate] = t.Format(dateLayout)
		r[ColFiscalYear] = t.Format("2006")
	}

	idx := make([]int, f.Len())
	for i := range idx {
		idx[i] = i
	}
	rows := f.Rows()
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := rows[idx[a]], rows[idx[b]]
		if ra[ColCompanyID] != rb[ColCompanyID] {
			return ra[ColCompanyID] < rb[ColCompanyID]
		}
		da, db := dates[idx[a]], dates[idx[b]]
		if da.IsZero() != db.IsZero() {
			return db.IsZero()
		}
		return da.After(db)
	})

	out := frame.New(f.Columns()...)
	seen := make(map[[2]string]bool)
	var unkeyed, dups int
	for _, i := range idx {
		r := rows[i]
		if !hasRegistration(r) || dates[i].IsZero() {
			unkeyed++
			continue
		}
		k := [2]string{strings.TrimSpace(r[ColRegistrationNumber]), r[ColFiscalDate]}
		if seen[k] {
			dups++
			continue
		}
		seen[k] = true
		r[ColRegistrationNumber] = k[0]
		out.Append(r)
	}
	if unkeyed > 0 || dups > 0 {
		log.Info("dropped rows", zap.Int("without_key", unkeyed), zap.Int("duplicate_key", dups))
	}
	return out
}

func present(f *frame.Frame, cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if f.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// parseNumber reads a scraped figure such as "1,234.50".
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func numberOrZero(r frame.Row, col string) decimal.Decimal {
	d, _ := parseNumber(r[col])
	return d
}

// assetComponents sum to total assets. Other long-term assets are scraped
// under other_long_term_assets_total.
var assetComponents = []string{
	"total_current_assets",
	"long_term_investments",
	"note_receivable_long_term",
	"other_long_term_assets_total",
	"intangibles_net",
	"property_plant_equipment_total_net",
	"goodwill_net",
}

// deriveTotalAssets fills a missing total_assets with the sum of its
// components. Scraped totals are kept as they are.
func deriveTotalAssets(f *frame.Frame, log *zap.Logger) {
	f.AddColumn("total_current_assets")
	f.AddColumn("total_assets")
	filled := 0
	for _, r := range f.Rows() {
		r["total_current_assets"] = numberOrZero(r, "total_current_assets").String()

		if d, ok := parseNumber(r["total_assets"]); ok {
			r["total_assets"] = d.String()
			continue
		}
		sum := decimal.Zero
		for _, c := range assetComponents {
			sum = sum.Add(numberOrZero(r, c))
		}
		r["total_assets"] = sum.String()
		filled++
	}
	if filled > 0 {
		log.Debug("total_assets computed from components", zap.Int("rows", filled))
	}
}

// deriveRevenue uses bank_total_revenue where revenue is missing or zero,
// as banks report under that line instead.
func deriveRevenue(f *frame.Frame, _ *zap.Logger) {
	f.AddColumn("revenue")
	for _, r := range f.Rows() {
		bank := numberOrZero(r, "bank_total_revenue")
		rev, ok := parseNumber(r["revenue"])
		if (!ok || rev.IsZero()) && bank.IsPositive() {
			rev, ok = bank, true
		}
		if !ok {
			rev = decimal.Zero
		}
		r["revenue"] = rev.String()
	}
	f.DropColumns("bank_total_revenue")
}

// knownRevenue holds audited revenue for banks whose statement page reports
// a figure that is not comparable, by company id and fiscal date.
var knownRevenue = map[string]map[string]string{
	"1155": {"31 Dec 2024": "27907", "31 Dec 2023": "25650", "31 Dec 2022": "23702", "31 Dec 2021": "22249", "31 Dec 2020": "19670"},
	"1023": {"31 Dec 2024": "22301.154", "31 Dec 2023": "21014.482", "31 Dec 2022": "19837.516", "31 Dec 2021": "19512.94", "31 Dec 2020": "17189.003"},
	"5819": {"30 Jun 2024": "5884", "30 Jun 2023": "5570", "30 Jun 2022": "5417", "30 Jun 2021": "4803", "30 Jun 2020": "4399"},
	"1295": {"31 Dec 2024": "14040", "31 Dec 2023": "12949", "31 Dec 2022": "13065", "31 Dec 2021": "11305", "31 Dec 2020": "10045"},
}

func applyKnownRevenue(f *frame.Frame) {
	for _, r := range f.Rows() {
		byDate, ok := knownRevenue[r[ColCompanyID]]
		if !ok {
			continue
		}
		t, err := time.Parse("2 Jan 2006", strings.TrimSpace(r[ColFiscalDate]))
		if err != nil {
			continue
		}
		if v, ok := byDate[t.Format(dateLayout)]; ok {
			r["revenue"] = v
		}
	}
}
