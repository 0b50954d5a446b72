package enrich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/resilience"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := &mockProvider{name: "zeta"}
	b := &mockProvider{name: "alpha"}
	r.Register(a)
	r.Register(b)
	r.Register(&mockProvider{name: "zeta"})

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"alpha", "zeta"}, r.List())
	ordered := r.Ordered()
	require.Len(t, ordered, 2)
	assert.Equal(t, "zeta", ordered[0].Name(), "registration order kept on replace")
	assert.NotSame(t, a, r.Get("zeta"))
	assert.Nil(t, r.Get("missing"))
}

func TestEnrich_WaterfallFallsThrough(t *testing.T) {
	failing := &mockProvider{name: "first"}
	failing.On("FindContacts", mock.Anything, Lookup{Name: "Acme"}).Return(nil, errors.New("boom"))
	empty := &mockProvider{name: "second"}
	empty.On("FindContacts", mock.Anything, Lookup{Name: "Acme"}).Return(&Result{Provider: "second"}, nil)
	good := &mockProvider{name: "third"}
	good.On("FindContacts", mock.Anything, Lookup{Name: "Acme"}).Return(&Result{
		Provider: "third",
		Domain:   "acme.com",
		Contacts: []model.Contact{{Name: "Jo Doe", Email: "jo@acme.com"}},
	}, nil)

	reg := NewRegistry()
	reg.Register(failing)
	reg.Register(empty)
	reg.Register(good)
	target := newFakeTarget("Acme")

	res, err := NewEnricher(reg, target, nil).Enrich(context.Background(), "Acme")
	require.NoError(t, err)
	assert.Equal(t, "third", res.Provider)

	c, _ := target.Get("Acme")
	assert.Equal(t, "acme.com", c.Domain)
	require.Len(t, c.Contacts, 1)
	assert.Equal(t, "jo@acme.com", c.Contacts[0].Email)
	failing.AssertExpectations(t)
	empty.AssertExpectations(t)
}

func TestEnrich_Errors(t *testing.T) {
	reg := NewRegistry()
	miss := &mockProvider{name: "miss"}
	miss.On("FindContacts", mock.Anything, mock.Anything).Return(&Result{}, nil)
	reg.Register(miss)
	e := NewEnricher(reg, newFakeTarget("Acme"), nil)

	_, err := e.Enrich(context.Background(), "Nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown company")

	_, err = e.Enrich(context.Background(), "Acme")
	assert.ErrorIs(t, err, ErrNoContacts)

	reg2 := NewRegistry()
	bad := &mockProvider{name: "bad"}
	bad.On("FindContacts", mock.Anything, mock.Anything).Return(nil, errors.New("quota"))
	reg2.Register(bad)
	_, err = NewEnricher(reg2, newFakeTarget("Acme"), nil).Enrich(context.Background(), "Acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
}

func TestEnrich_OpenBreakerSkipsProvider(t *testing.T) {
	bad := &mockProvider{name: "flaky"}
	bad.On("FindContacts", mock.Anything, mock.Anything).Return(nil, errors.New("down")).Twice()

	reg := NewRegistry()
	reg.Register(bad)
	breakers := resilience.NewBreakers(resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour})
	e := NewEnricher(reg, newFakeTarget("Acme"), breakers)

	for range 2 {
		_, err := e.Enrich(context.Background(), "Acme")
		require.Error(t, err)
	}
	_, err := e.Enrich(context.Background(), "Acme")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, "open", e.Breakers().States()["flaky"])
	bad.AssertNumberOfCalls(t, "FindContacts", 2)
}

func TestEnrichAll(t *testing.T) {
	p := &mockProvider{name: "p"}
	p.On("FindContacts", mock.Anything, Lookup{Name: "Acme"}).
		Return(&Result{Contacts: []model.Contact{{Email: "a@acme.com"}}}, nil)
	p.On("FindContacts", mock.Anything, Lookup{Name: "Beacon"}).Return(&Result{}, nil)

	reg := NewRegistry()
	reg.Register(p)
	target := newFakeTarget("Acme", "Beacon")

	n := NewEnricher(reg, target, nil).EnrichAll(context.Background(), []string{"Acme", "Beacon", "Ghost"})
	assert.Equal(t, 1, n)
}

func TestFromConfig(t *testing.T) {
	assert.Nil(t, FromConfig(config.EnrichConfig{}, newFakeTarget()))
	e := FromConfig(config.EnrichConfig{HunterKey: "k", HunterBaseURL: "https://api.hunter.io/v2"}, newFakeTarget())
	require.NotNil(t, e)
	assert.Equal(t, []string{HunterName}, e.providers.List())
}

const hunterBody = `{"data":{"domain":"acme.com","emails":[
 {"value":"jo@acme.com","first_name":"Jo","last_name":"Doe","position":"VP Quality","confidence":91},
 {"value":"","first_name":"No","last_name":"Email"},
 {"value":"al@acme.com","first_name":"Al","last_name":"","position":"QA"},
 {"value":"extra@acme.com"}
]}}`

func TestHunterProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/domain-search", r.URL.Path)
		assert.Equal(t, "Acme Pharmaceuticals", r.URL.Query().Get("company"))
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(hunterBody))
	}))
	defer srv.Close()

	h := NewHunterProvider(config.EnrichConfig{HunterKey: "secret", HunterBaseURL: srv.URL + "/", MaxContacts: 2, TimeoutSecs: 5})
	res, err := h.FindContacts(context.Background(), Lookup{Name: "Acme Pharmaceuticals"})
	require.NoError(t, err)
	assert.Equal(t, "acme.com", res.Domain)
	require.Len(t, res.Contacts, 2)
	assert.Equal(t, model.Contact{Name: "Jo Doe", Email: "jo@acme.com", Title: "VP Quality", Source: HunterName}, res.Contacts[0])
	assert.Equal(t, "Al", res.Contacts[1].Name)
}

func TestHunterProvider_PrefersDomainAndReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme.com", r.URL.Query().Get("domain"))
		assert.Empty(t, r.URL.Query().Get("company"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	h := NewHunterProvider(config.EnrichConfig{HunterKey: "bad", HunterBaseURL: srv.URL})
	_, err := h.FindContacts(context.Background(), Lookup{Name: "Acme", Domain: "acme.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
