package registry

import (
	"regexp"
	"strings"

	"github.com/sells-group/fda-watch/internal/model"
)

const maxDetails = 20

var (
	facilityRe = regexp.MustCompile(`\b(?i:facility|plant|site|factory|manufacturing facility)\s+(?i:located\s+)?(?i:in|at)\s+([A-Z][\w.\-]*(?:,?\s+[A-Z][\w.\-]*){0,3})`)

	productFormRe = regexp.MustCompile(`\b([A-Z][A-Za-z0-9\-]{2,}(?:\s+[A-Z][A-Za-z0-9\-]{2,})?)\s+(?i:injection|injectable|tablets?|capsules?|oral solution|ophthalmic solution|cream|ointment|suspension|infusion|vaccine)\b`)
	productDrugRe = regexp.MustCompile(`\b(?i:its|the)\s+(?i:drug|product|biologic|device)\s+([A-Z][A-Za-z0-9\-]{2,}(?:\s+[A-Z][A-Za-z0-9\-]{2,})?)`)

	productStop = map[string]bool{
		"the": true, "its": true, "fda": true, "for": true, "and": true,
		"sterile": true, "oral": true, "company": true,
	}
)

// extractDetails scans the item text for facility locations and product
// names and merges them into c. Each list keeps first-seen order and is
// capped.
func extractDetails(c *model.Company, item model.RegulatoryItem) {
	text := item.Title + "\n" + item.Body + "\n" + item.Summary

	for _, m := range facilityRe.FindAllStringSubmatch(text, -1) {
		c.Facilities = addDetail(c.Facilities, strings.TrimRight(m[1], ".,"))
	}
	for _, re := range []*regexp.Regexp{productFormRe, productDrugRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			p := strings.TrimSpace(m[1])
			if productStop[strings.ToLower(strings.Fields(p)[0])] {
				continue
			}
			c.Products = addDetail(c.Products, p)
		}
	}
}

func addDetail(list []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || len(list) >= maxDetails {
		return list
	}
	for _, x := range list {
		if strings.EqualFold(x, s) {
			return list
		}
	}
	return append(list, s)
}
