// Package report renders the company registry as an xlsx digest.
package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/registry"
)

// Sheet names in the digest workbook.
const (
	SheetCompanies  = "Companies"
	SheetViolations = "Violations"
	SheetPatterns   = "Patterns"
)

const dateLayout = "2006-01-02"

var (
	companyHeader   = []string{"Company", "Risk Score", "Compliance Score", "Violations", "Latest Action", "Latest Date", "Domain", "Ticker", "Facilities", "Products", "Contacts"}
	violationHeader = []string{"Company", "Date", "Type", "Severity", "Title", "Source", "Link"}
	patternHeader   = []string{"Pattern", "Company", "Detail", "Date"}
)

// Digest builds the workbook for companies (already ordered by the caller)
// and patterns.
func Digest(companies []model.Company, p registry.Patterns) (*xlsx.File, error) {
	f := xlsx.NewFile()

	cs, err := addSheet(f, SheetCompanies, companyHeader)
	if err != nil {
		return nil, err
	}
	vs, err := addSheet(f, SheetViolations, violationHeader)
	if err != nil {
		return nil, err
	}
	ps, err := addSheet(f, SheetPatterns, patternHeader)
	if err != nil {
		return nil, err
	}

	for _, c := range companies {
		row := cs.AddRow()
		str(row, c.CanonicalName)
		row.AddCell().SetFloat(c.RiskScore)
		row.AddCell().SetFloat(c.ComplianceScore)
		row.AddCell().SetInt(len(c.Violations))
		if len(c.Violations) > 0 {
			str(row, string(c.Violations[0].Type))
			str(row, date(c.Violations[0].Date))
		} else {
			str(row, "")
			str(row, "")
		}
		str(row, c.Domain)
		str(row, c.Ticker)
		str(row, strings.Join(c.Facilities, "; "))
		str(row, strings.Join(c.Products, "; "))
		str(row, contacts(c.Contacts))

		for _, v := range c.Violations {
			vr := vs.AddRow()
			str(vr, c.CanonicalName)
			str(vr, date(v.Date))
			str(vr, string(v.Type))
			vr.AddCell().SetInt(v.Severity)
			str(vr, v.Title)
			str(vr, v.Source)
			str(vr, v.Link)
		}
	}

	for _, h := range p.Hotspots {
		patternRow(ps, "hotspot", h.Company,
			strconv.Itoa(h.Count)+" violations from "+date(h.WindowStart)+" to "+date(h.WindowEnd), h.WindowEnd)
	}
	for _, e := range p.Escalating {
		patternRow(ps, "escalation", e.Company,
			string(e.From)+" ("+strconv.Itoa(e.FromSeverity)+") -> "+string(e.To)+" ("+strconv.Itoa(e.ToSeverity)+")", e.Date)
	}
	themes := []struct {
		name string
		list []registry.ThemeMatch
	}{
		{"manufacturing", p.Manufacturing},
		{"clinical", p.Clinical},
		{"promotional", p.Promotional},
	}
	for _, th := range themes {
		for _, m := range th.list {
			patternRow(ps, th.name, m.Company, strings.Join(m.Keywords, ", "), time.Time{})
		}
	}
	for _, r := range p.RepeatOffenders {
		patternRow(ps, "repeat_offender", r.Company, strconv.Itoa(r.Violations)+" violations", time.Time{})
	}
	return f, nil
}

// WriteDigest writes the digest workbook to w.
func WriteDigest(w io.Writer, companies []model.Company, p registry.Patterns) error {
	f, err := Digest(companies, p)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "report: write workbook")
}

// SaveDigest writes the digest workbook to path.
func SaveDigest(path string, companies []model.Company, p registry.Patterns) error {
	f, err := Digest(companies, p)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

func addSheet(f *xlsx.File, name string, header []string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "report: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range header {
		str(row, h)
	}
	return sheet, nil
}

func patternRow(sheet *xlsx.Sheet, kind, company, detail string, when time.Time) {
	row := sheet.AddRow()
	str(row, kind)
	str(row, company)
	str(row, detail)
	str(row, date(when))
}

func str(row *xlsx.Row, s string) {
	row.AddCell().SetString(s)
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func contacts(cs []model.Contact) string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		if c.Name != "" {
			out = append(out, c.Name+" <"+c.Email+">")
		} else {
			out = append(out, c.Email)
		}
	}
	return strings.Join(out, "; ")
}
