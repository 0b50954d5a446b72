package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fda-watch/internal/model"
)

// WebhookNotifier posts each alert as JSON to a URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a WebhookNotifier with a 10s client timeout.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Notify sends one request per violation. Failures are logged and
// counted; the rest are still attempted.
func (w *WebhookNotifier) Notify(ctx context.Context, vs []model.NewViolation) error {
	failed := 0
	for _, nv := range vs {
		alert := NewAlert(nv, w.now())
		if err := w.send(ctx, alert); err != nil {
			failed++
			zap.L().Error("notify: webhook delivery failed",
				zap.String("company", alert.Company),
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("notify: alert sent",
			zap.String("company", alert.Company),
			zap.Int("severity", alert.Severity),
		)
	}
	if failed > 0 {
		return eris.Errorf("notify: %d of %d webhook alerts failed", failed, len(vs))
	}
	return nil
}

func (w *WebhookNotifier) send(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "notify: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
