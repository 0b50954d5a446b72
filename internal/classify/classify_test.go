package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fda-watch/internal/model"
)

func TestClassify_CRL(t *testing.T) {
	c := New()
	got := c.Classify("FDA issues Complete Response Letter to Acme", "")

	assert.Contains(t, got.Types, model.ActionCRL)
	assert.Equal(t, SeverityCRL, got.Severity)
	assert.Equal(t, 9, got.Severity)
}

func TestClassify_NoMatchReturnsSentinel(t *testing.T) {
	c := New()

	for _, in := range [][2]string{
		{"FDA approves new oncology drug", "approval announced"},
		{"", ""},
	} {
		got := c.Classify(in[0], in[1])
		require.Len(t, got.Types, 1)
		assert.Equal(t, model.ActionRegulatoryNews, got.Types[0])
		assert.Equal(t, 0, got.Severity)
	}
}

func TestClassify_MultipleTypesMaxSeverity(t *testing.T) {
	c := New()
	got := c.Classify("Acme hit with warning letter after Form 483", "The recall was voluntary.")

	assert.ElementsMatch(t,
		[]model.ActionType{model.ActionWarningLetter, model.ActionForm483, model.ActionRecall},
		got.Types,
	)
	assert.Equal(t, SeverityWarningLetter, got.Severity)
	// Highest severity first.
	assert.Equal(t, model.ActionWarningLetter, got.Primary())
}

func TestClassify_BodyOnlyMatch(t *testing.T) {
	c := New()
	got := c.Classify("Acme update", "The agency placed the program on clinical hold.")
	assert.Equal(t, []model.ActionType{model.ActionClinicalHold}, got.Types)
	assert.Equal(t, SeverityClinicalHold, got.Severity)
}

func TestClassify_CaseInsensitive(t *testing.T) {
	c := New()
	got := c.Classify("IMPORT ALERT issued for Example Foods", "")
	assert.Equal(t, model.ActionImportAlert, got.Primary())
}

func TestClassify_CustomRules(t *testing.T) {
	c := New(Rule{Type: "custom", Keywords: []string{"  Special Phrase "}, Severity: 3})
	got := c.Classify("a special phrase appears", "")
	assert.Equal(t, []model.ActionType{"custom"}, got.Types)
	assert.Equal(t, 3, got.Severity)
}

func TestSeverityOf(t *testing.T) {
	c := New()
	assert.Equal(t, SeverityForm483, c.SeverityOf(model.ActionForm483))
	assert.Equal(t, 0, c.SeverityOf(model.ActionRegulatoryNews))
}
