package load

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/frame"
	"github.com/sells-group/bursa-cli/internal/model"
)

const (
	ColPosition     = "position"
	ColMarketCapMil = "market_cap_mil"
	colSourceFile   = "source_file"
)

// SectionKey is the natural key of a profile section table. The profile has
// one row per company; list sections number their rows per company.
func SectionKey(sec model.Section) []string {
	if sec == model.SectionProfile {
		return []string{ColRegistrationNumber, ColCompanyID}
	}
	return []string{ColRegistrationNumber, ColCompanyID, ColPosition}
}

// NormalizeSection prepares a combined section artifact for the sink. market
// supplies market_cap_mil for the profile section and may be nil.
func NormalizeSection(f *frame.Frame, sec model.Section, regs Registrations, market *frame.Frame) *frame.Frame {
	log := zap.L().With(zap.String("component", "load"), zap.String("section", string(sec)))

	normalizeIDs(f, log)
	if sec != model.SectionProfile {
		numberRows(f)
	}

	joined := regs.Join(f)
	if sec == model.SectionProfile {
		joinMarketCap(joined, market, log)
		joined.DropColumns(colSourceFile)
	}
	if dropped := joined.MapColumns(CleanColumn); len(dropped) > 0 {
		log.Warn("duplicate columns after cleaning", zap.Strings("dropped", dropped))
	}

	key := SectionKey(sec)
	out := frame.New(joined.Columns()...)
	seen := make(map[string]bool)
	var unkeyed, dups int
	for _, r := range joined.Rows() {
		if !hasRegistration(r) {
			unkeyed++
			continue
		}
		r[ColRegistrationNumber] = strings.TrimSpace(r[ColRegistrationNumber])
		parts := make([]string, len(key))
		for i, c := range key {
			parts[i] = r[c]
		}
		k := strings.Join(parts, "\x1f")
		if seen[k] {
			dups++
			continue
		}
		seen[k] = true
		out.Append(r)
	}
	if unkeyed > 0 || dups > 0 {
		log.Info("dropped rows", zap.Int("without_key", unkeyed), zap.Int("duplicate_key", dups))
	}
	return out
}

// numberRows adds a 1-based position per company in file order.
func numberRows(f *frame.Frame) {
	f.InsertColumn(1, ColPosition)
	counts := make(map[string]int)
	for _, r := range f.Rows() {
		cid := r[ColCompanyID]
		counts[cid]++
		r[ColPosition] = strconv.Itoa(counts[cid])
	}
}

func joinMarketCap(f, market *frame.Frame, log *zap.Logger) {
	f.AddColumn(ColMarketCapMil)
	if market == nil {
		return
	}
	normalizeIDs(market, log)
	caps := make(map[string]string, market.Len())
	for _, r := range market.Rows() {
		if v, ok := r[ColMarketCapMil]; ok {
			if _, seen := caps[r[ColCompanyID]]; !seen {
				caps[r[ColCompanyID]] = v
			}
		}
	}
	for _, r := range f.Rows() {
		if v, ok := caps[r[ColCompanyID]]; ok {
			r[ColMarketCapMil] = v
		}
	}
}
