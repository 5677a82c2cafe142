package load

import (
	"regexp"
	"strings"
)

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spaceRun   = regexp.MustCompile(`\s+`)
	underscore = regexp.MustCompile(`_+`)
)

// CleanColumn turns a scraped header into a sink column name:
// "Property/Plant & Equipment, Total - Net" becomes
// "property_plant_equipment_total_net".
func CleanColumn(name string) string {
	s := strings.NewReplacer("-", " ", "/", " ").Replace(name)
	s = strings.ToLower(s)
	s = nonWord.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = spaceRun.ReplaceAllString(s, "_")
	return underscore.ReplaceAllString(s, "_")
}
