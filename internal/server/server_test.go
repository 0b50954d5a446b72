package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/enrich"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/pipeline"
	"github.com/sells-group/fda-watch/internal/registry"
	"github.com/sells-group/fda-watch/internal/resilience"
	"github.com/sells-group/fda-watch/internal/resolve"
	"github.com/sells-group/fda-watch/internal/scorer"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(resolve.NewResolver(), config.RegistryConfig{
		MaxViolations:     100,
		HotspotWindowDays: 90,
		HotspotMin:        2,
		RepeatOffenderMin: 3,
	}, scorer.DefaultRiskConfig())

	now := time.Now().UTC()
	reg.Upsert(model.RegulatoryItem{
		ID: "1", Title: "Warning Letter to Northwind", Link: "https://fda.gov/wl/1",
		RawCompanyText: "Northwind", Date: now.AddDate(0, 0, -10),
		Types: []model.ActionType{model.ActionWarningLetter}, Severity: 8,
	})
	reg.Upsert(model.RegulatoryItem{
		ID: "2", Title: "Beacon Foods recalls peanut butter", Link: "https://fda.gov/r/2",
		RawCompanyText: "Beacon Foods", Date: now.AddDate(0, 0, -3),
		Types: []model.ActionType{model.ActionRecall}, Severity: 7,
	})
	return reg
}

type testServer struct {
	srv      *Server
	handler  http.Handler
	cycler   *fakeCycler
	registry *registry.Registry
}

func newTestServer(t *testing.T, enricher ContactEnricher) *testServer {
	t.Helper()
	cycler := &fakeCycler{}
	reg := newTestRegistry(t)
	srv := New(context.Background(), cycler, reg, enricher, config.ServerConfig{Port: 8080})
	return &testServer{srv: srv, handler: srv.Handler(), cycler: cycler, registry: reg}
}

func (ts *testServer) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	breakers := resilience.NewBreakers(resilience.DefaultBreakerConfig())
	breakers.Get("hunter")
	ts := newTestServer(t, &MockEnricher{breakers: breakers})

	rr := ts.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	body := decode[healthResponse](t, rr)
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.Running)
	assert.Equal(t, 2, body.Companies)
	assert.Nil(t, body.LastCycle)
	assert.Contains(t, body.Breakers, "hunter")
}

func TestHealth_IncludesLastCycle(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.cycler.RunCycle(context.Background())
	require.NoError(t, err)

	body := decode[healthResponse](t, ts.do(t, http.MethodGet, "/health"))
	require.NotNil(t, body.LastCycle)
	assert.Equal(t, 1, body.LastCycle.NewViolations)
	assert.Empty(t, body.Breakers)
}

func TestCompanies(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/companies")
	require.Equal(t, http.StatusOK, rr.Code)
	companies := decode[[]model.Company](t, rr)
	require.Len(t, companies, 2)
	assert.GreaterOrEqual(t, companies[0].RiskScore, companies[1].RiskScore)

	limited := decode[[]model.Company](t, ts.do(t, http.MethodGet, "/companies?limit=1"))
	assert.Len(t, limited, 1)

	rr = ts.do(t, http.MethodGet, "/companies?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCompany(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/companies/Northwind")
	require.Equal(t, http.StatusOK, rr.Code)
	c := decode[model.Company](t, rr)
	assert.Equal(t, "Northwind", c.CanonicalName)
	assert.Len(t, c.Violations, 1)

	rr = ts.do(t, http.MethodGet, "/companies/Nobody%20Here")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "company not found", decode[map[string]string](t, rr)["error"])
}

func TestPatterns(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/patterns")
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body)
}

func TestRefresh(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "started", decode[map[string]string](t, rr)["status"])

	ts.srv.Wait()
	assert.Equal(t, int32(1), ts.cycler.calls.Load())
}

func TestRefresh_Conflict(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cycler.running.Store(true)

	rr := ts.do(t, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusConflict, rr.Code)
	ts.srv.Wait()
	assert.Equal(t, int32(0), ts.cycler.calls.Load())
}

func TestEnrich(t *testing.T) {
	m := &MockEnricher{}
	m.On("Enrich", mock.Anything, "Northwind").Return(&enrich.Result{
		Provider: "hunter",
		Domain:   "northwind.com",
		Contacts: []model.Contact{{Name: "Jane Roe", Email: "jane@northwind.com"}},
	}, nil)
	ts := newTestServer(t, m)

	rr := ts.do(t, http.MethodPost, "/companies/Northwind/enrich")
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[enrich.Result](t, rr)
	assert.Equal(t, "hunter", res.Provider)
	assert.Len(t, res.Contacts, 1)
	m.AssertExpectations(t)
}

func TestEnrich_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rr := ts.do(t, http.MethodPost, "/companies/Northwind/enrich")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("unknown company", func(t *testing.T) {
		m := &MockEnricher{}
		ts := newTestServer(t, m)
		rr := ts.do(t, http.MethodPost, "/companies/Nobody/enrich")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		m.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything)
	})

	t.Run("no contacts", func(t *testing.T) {
		m := &MockEnricher{}
		m.On("Enrich", mock.Anything, "Beacon Foods").Return(nil, enrich.ErrNoContacts)
		ts := newTestServer(t, m)
		rr := ts.do(t, http.MethodPost, "/companies/Beacon%20Foods/enrich")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("provider failure", func(t *testing.T) {
		m := &MockEnricher{}
		m.On("Enrich", mock.Anything, "Northwind").Return(nil, errors.New("enrich: all providers failed"))
		ts := newTestServer(t, m)
		rr := ts.do(t, http.MethodPost, "/companies/Northwind/enrich")
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunTicker(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		ts.srv.RunTicker(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return ts.cycler.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestRunTicker_NoInterval(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.cycler.err = pipeline.ErrCycleInProgress

	ts.srv.RunTicker(context.Background(), 0)
	assert.Equal(t, int32(1), ts.cycler.calls.Load())
}
