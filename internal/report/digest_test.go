package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/registry"
)

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func fixture() ([]model.Company, registry.Patterns) {
	companies := []model.Company{
		{
			CanonicalName: "Acme Pharmaceuticals",
			RiskScore:     61.5,
			Violations: []model.Violation{
				{Type: model.ActionCRL, Severity: 9, Date: day(5), Title: "CRL for Zolvex", Source: "FDA Press", Link: "https://fda.gov/a"},
				{Type: model.ActionForm483, Severity: 6, Date: day(1), Title: "483 at Newark", Source: "Trade"},
			},
			Facilities: []string{"Newark", "Hyderabad, India"},
			Contacts:   []model.Contact{{Name: "Jo Doe", Email: "jo@acme.com"}, {Email: "qa@acme.com"}},
			Domain:     "acme.com",
		},
		{CanonicalName: "Beacon", ComplianceScore: 100},
	}
	p := registry.Patterns{
		Hotspots:        []registry.Hotspot{{Company: "Acme Pharmaceuticals", Count: 2, WindowStart: day(1), WindowEnd: day(5)}},
		Escalating:      []registry.Escalation{{Company: "Acme Pharmaceuticals", From: model.ActionForm483, To: model.ActionCRL, FromSeverity: 6, ToSeverity: 9, Date: day(5)}},
		Manufacturing:   []registry.ThemeMatch{{Company: "Acme Pharmaceuticals", Violations: 1, Keywords: []string{"cgmp", "sterile"}}},
		Clinical:        []registry.ThemeMatch{},
		Promotional:     []registry.ThemeMatch{},
		RepeatOffenders: []registry.RepeatOffender{{Company: "Acme Pharmaceuticals", Violations: 2, RiskScore: 61.5}},
	}
	return companies, p
}

func cells(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

func TestSaveDigest_RoundTrip(t *testing.T) {
	companies, p := fixture()
	path := filepath.Join(t.TempDir(), "digest.xlsx")
	require.NoError(t, SaveDigest(path, companies, p))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)
	assert.Equal(t, SheetCompanies, f.Sheets[0].Name)

	cs := f.Sheet[SheetCompanies]
	require.Len(t, cs.Rows, 3)
	assert.Equal(t, companyHeader, cells(cs.Rows[0]))
	acme := cells(cs.Rows[1])
	assert.Equal(t, "Acme Pharmaceuticals", acme[0])
	assert.Equal(t, "2", acme[3])
	assert.Equal(t, "crl", acme[4])
	assert.Equal(t, "2024-03-05", acme[5])
	assert.Equal(t, "Newark; Hyderabad, India", acme[8])
	assert.Equal(t, "Jo Doe <jo@acme.com>; qa@acme.com", acme[10])
	risk, err := cs.Rows[1].Cells[1].Float()
	require.NoError(t, err)
	assert.Equal(t, 61.5, risk)
	assert.Equal(t, "", cells(cs.Rows[2])[4], "no violations")

	vs := f.Sheet[SheetViolations]
	require.Len(t, vs.Rows, 3)
	assert.Equal(t, []string{"Acme Pharmaceuticals", "2024-03-01", "form_483", "6", "483 at Newark", "Trade", ""}, cells(vs.Rows[2]))

	ps := f.Sheet[SheetPatterns]
	require.Len(t, ps.Rows, 5)
	assert.Equal(t, []string{"hotspot", "Acme Pharmaceuticals", "2 violations from 2024-03-01 to 2024-03-05", "2024-03-05"}, cells(ps.Rows[1]))
	assert.Equal(t, "form_483 (6) -> crl (9)", cells(ps.Rows[2])[2])
	assert.Equal(t, []string{"manufacturing", "Acme Pharmaceuticals", "cgmp, sterile", ""}, cells(ps.Rows[3]))
	assert.Equal(t, "repeat_offender", cells(ps.Rows[4])[0])
}

func TestWriteDigest(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDigest(&buf, nil, registry.Patterns{}))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)
	assert.Len(t, f.Sheet[SheetViolations].Rows, 1, "header only")
}
