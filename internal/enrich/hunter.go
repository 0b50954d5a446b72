package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/internal/resilience"
)

// HunterName is the provider name of HunterProvider.
const HunterName = "hunter"

// HunterProvider queries a Hunter-style domain-search API.
type HunterProvider struct {
	baseURL string
	apiKey  string
	limit   int
	client  *http.Client
	retry   resilience.Policy
}

// NewHunterProvider builds the provider from config.
func NewHunterProvider(cfg config.EnrichConfig) *HunterProvider {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limit := cfg.MaxContacts
	if limit <= 0 {
		limit = 5
	}
	return &HunterProvider{
		baseURL: strings.TrimRight(cfg.HunterBaseURL, "/"),
		apiKey:  cfg.HunterKey,
		limit:   limit,
		client:  &http.Client{Timeout: timeout},
		retry:   resilience.Policy{Attempts: 2, Initial: time.Second},
	}
}

func (h *HunterProvider) Name() string { return HunterName }

type hunterResponse struct {
	Data struct {
		Domain string `json:"domain"`
		Emails []struct {
			Value      string `json:"value"`
			FirstName  string `json:"first_name"`
			LastName   string `json:"last_name"`
			Position   string `json:"position"`
			Confidence int    `json:"confidence"`
		} `json:"emails"`
	} `json:"data"`
}

// FindContacts searches by domain when known, else by company name.
func (h *HunterProvider) FindContacts(ctx context.Context, q Lookup) (*Result, error) {
	params := url.Values{}
	if q.Domain != "" {
		params.Set("domain", q.Domain)
	} else {
		params.Set("company", q.Name)
	}
	params.Set("limit", strconv.Itoa(h.limit))
	params.Set("api_key", h.apiKey)
	target := h.baseURL + "/domain-search?" + params.Encode()

	resp, err := resilience.Retry(ctx, h.retry, "hunter domain-search", func(ctx context.Context) (*hunterResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, eris.Wrap(err, "hunter: create request")
		}
		req.Header.Set("Accept", "application/json")
		res, err := h.client.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "hunter: request"), 0)
		}
		defer res.Body.Close() //nolint:errcheck
		if res.StatusCode != http.StatusOK {
			return nil, resilience.StatusError(res.StatusCode, "hunter")
		}
		var out hunterResponse
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			return nil, eris.Wrap(err, "hunter: decode response")
		}
		return &out, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "hunter: find contacts for %s", q.Name)
	}

	result := &Result{Provider: HunterName, Domain: resp.Data.Domain}
	for _, e := range resp.Data.Emails {
		if e.Value == "" {
			continue
		}
		result.Contacts = append(result.Contacts, model.Contact{
			Name:   strings.TrimSpace(e.FirstName + " " + e.LastName),
			Email:  e.Value,
			Title:  e.Position,
			Source: HunterName,
		})
		if len(result.Contacts) == h.limit {
			break
		}
	}
	return result, nil
}
