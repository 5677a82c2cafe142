package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bursa-cli/internal/browser"
	"github.com/sells-group/bursa-cli/internal/config"
	"github.com/sells-group/bursa-cli/internal/frame"
	"github.com/sells-group/bursa-cli/internal/model"
)

// Overview columns, in output order.
var overviewColumns = []string{"About", "Sector", "Sub Sector", "Website", "Phone", "Fax", "Address"}

var managementFields = []Field{
	{"Name", ".nameCol"},
	{"Designation", ".designationCol"},
	{"Role", ".roleCol"},
	{"Since", ".sinceCol"},
}

var ownershipFields = []Field{
	{"Investor Name", "div.scroll span"},
	{"No. of Investors", ".owner_idCol"},
	{"Ownership %", ".ownership_percentageCol"},
	{"Position (M shares)", ".shares_heldCol"},
	{"Position Change (M)", ".shares_changedCol"},
	{"Position Change (M) %", ".position_changeCol"},
	{"Position Value Change (M)", ".value_of_shares_changedCol"},
	{"Value (M USD)", ".value_heldCol"},
}

var holderFields = []Field{
	{"Investor Name", ".ownerCol span"},
	{"Ownership %", ".ownership_percentageCol"},
	{"Position (M Shares)", ".shares_heldCol"},
	{"Position Change (M)", ".shares_changedCol"},
	{"Position Change (M) %", ".position_changeCol"},
	{"Position Value Change (M)", ".value_of_shares_changedCol"},
	{"Value (M USD)", ".value_heldCol"},
	{"Filing Date", ".report_dateCol"},
	{"Filing Source", ".sourceCol"},
}

// holderSection is one of the shareholder panels opened through its own
// Details button and carousel control.
type holderSection struct {
	section model.Section
	index   int
	scope   string
	fields  []Field
}

var holderSections = []holderSection{
	{model.SectionOwnership, 0, "div:nth-child(3)", ownershipFields},
	{model.SectionTop10, 1, "div:nth-child(4)", holderFields},
	{model.SectionInsider, 2, "div.latest-insider", holderFields},
}

const (
	managementScope = "div.stock-detailed-profile-manegement-table"
	paginateSettle  = 1500 * time.Millisecond
)

var (
	btnDetails      = browser.ByRole("button", "Details")
	txtManagement   = browser.ByText("NameDesignationRoleSince")
	txtAddress      = browser.ByExactText("Address")
	nextButton      = browser.ByCSS("button").Containing("Next")
	nextListItem    = browser.Locator{Role: "listitem"}.Containing("Next")
	addressLocation = "a.location_pin"
)

// ProfileScraper reads the profile overview and the management and
// shareholder sections of one company.
type ProfileScraper struct {
	navTimeout    time.Duration
	actionTimeout time.Duration
	maxPages      int
	log           *zap.Logger
}

// NewProfileScraper returns a ProfileScraper configured from cfg.
func NewProfileScraper(cfg config.BrowserConfig) *ProfileScraper {
	return &ProfileScraper{
		navTimeout:    time.Duration(cfg.NavTimeoutSecs) * time.Second,
		actionTimeout: time.Duration(cfg.ActionTimeoutMs) * time.Millisecond,
		maxPages:      cfg.MaxPages,
		log:           zap.L().With(zap.String("component", "scrape.profile")),
	}
}

// Scrape returns one frame per section. Only failing to open the profile is
// an error; each section that fails on its own comes back empty.
func (s *ProfileScraper) Scrape(ctx context.Context, page browser.Page, target model.ScrapeTarget) (map[model.Section]*frame.Frame, error) {
	cid := target.CompanyID
	log := s.log.With(zap.String("company_id", cid))

	if err := page.Goto(ctx, target.URL, s.navTimeout); err != nil {
		return nil, pageFailure(ctx, page, KindNetworkError, cid, err)
	}
	if err := page.Click(ctx, btnClose, s.actionTimeout); err != nil {
		log.Debug("no interstitial to dismiss", zap.Error(err))
	}
	if err := page.Click(ctx, btnProfile, s.actionTimeout); err != nil {
		return nil, pageFailure(ctx, page, KindNavigationFailed, cid, eris.Wrap(err, "scrape: open profile"))
	}

	out := make(map[model.Section]*frame.Frame, len(model.AllSections()))

	overview, err := s.overview(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewError(KindCancelled, cid, ctx.Err())
		}
		return nil, pageFailure(ctx, page, KindNoRowsFound, cid, err)
	}
	out[model.SectionProfile] = overview

	mgmt, err := s.management(ctx, page)
	if err != nil {
		log.Warn("skipping management section", zap.Error(err))
		mgmt = frame.New(fieldNames(managementFields)...)
	}
	out[model.SectionManagement] = mgmt

	for _, hs := range holderSections {
		f, err := s.holders(ctx, page, hs)
		if err != nil {
			log.Warn("skipping section", zap.String("section", string(hs.section)), zap.Error(err))
			f = frame.New(fieldNames(hs.fields)...)
		}
		out[hs.section] = f
	}

	if ctx.Err() != nil {
		return nil, NewError(KindCancelled, cid, ctx.Err())
	}
	return out, nil
}

func (s *ProfileScraper) overview(ctx context.Context, page browser.Page) (*frame.Frame, error) {
	doc, err := snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	row := ParseOverview(doc)

	if _, ok := row["Address"]; !ok {
		if err := page.Click(ctx, txtAddress, s.actionTimeout); err == nil {
			if doc, err := snapshot(ctx, page); err == nil {
				if a := doc.Find(addressLocation).First(); a.Length() > 0 {
					row["Address"] = cleanText(a)
				}
			}
		}
	}

	f := frame.New(overviewColumns...)
	f.Append(row)
	return f, nil
}

// ParseOverview reads the about text, the labelled contact fields and the
// address link of a profile page.
func ParseOverview(doc *goquery.Document) frame.Row {
	row := frame.Row{}
	if about := doc.Find("div.contactDetails-left .contactInfo-value").First(); about.Length() > 0 {
		row["About"] = strings.TrimSpace(about.Text())
	}

	labels := map[string]bool{"Sector": true, "Sub Sector": true, "Website": true, "Phone": true, "Fax": true}
	lines := leafLines(doc.Find("div.contactDetails-right").First())
	for i, line := range lines {
		if labels[line] && i+1 < len(lines) {
			row[line] = lines[i+1]
		}
	}

	if a := doc.Find(addressLocation).First(); a.Length() > 0 {
		row["Address"] = cleanText(a)
	}
	return row
}

// leafLines returns the non-empty texts of the leaf elements under s in
// document order, the way the rendered block reads line by line.
func leafLines(s *goquery.Selection) []string {
	var lines []string
	s.Find("*").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() > 0 {
			return
		}
		for _, l := range strings.Split(el.Text(), "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
	})
	return lines
}

func (s *ProfileScraper) management(ctx context.Context, page browser.Page) (*frame.Frame, error) {
	if err := page.Click(ctx, txtManagement, s.actionTimeout); err != nil {
		return nil, eris.Wrap(err, "scrape: open management")
	}
	if err := page.Click(ctx, btnDetails, s.actionTimeout); err != nil {
		return nil, eris.Wrap(err, "scrape: open management details")
	}
	p := Paginator{
		Next:          nextButton,
		Settle:        paginateSettle,
		ActionTimeout: s.actionTimeout,
		MaxPages:      s.maxPages,
	}
	f, err := p.Collect(ctx, page, SectionExtractor(managementScope, managementFields))
	if err != nil {
		return nil, err
	}
	if f.Len() == 0 {
		return frame.New(fieldNames(managementFields)...), nil
	}
	return f, nil
}

func (s *ProfileScraper) holders(ctx context.Context, page browser.Page, hs holderSection) (*frame.Frame, error) {
	if err := page.Click(ctx, btnDetails.At(hs.index), s.actionTimeout); err != nil {
		return nil, eris.Wrapf(err, "scrape: open %s details", hs.section)
	}
	n, err := page.Count(ctx, nextListItem)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: count %s carousel", hs.section)
	}
	if n > hs.index+1 {
		if err := page.Click(ctx, nextListItem.At(hs.index+1), s.actionTimeout); err != nil {
			return nil, eris.Wrapf(err, "scrape: advance %s carousel", hs.section)
		}
	}
	doc, err := snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	return SectionExtractor(hs.scope, hs.fields)(doc), nil
}

func fieldNames(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}
