// Package summarize writes one-line summaries of regulatory items.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fda-watch/internal/config"
	"github.com/sells-group/fda-watch/internal/model"
	"github.com/sells-group/fda-watch/pkg/anthropic"
)

// Summarizer produces a short summary for an item.
type Summarizer interface {
	Summarize(ctx context.Context, item model.RegulatoryItem) (string, error)
}

const systemPrompt = `You summarize FDA regulatory actions for a compliance analyst.
Reply with one plain sentence of at most 40 words naming the company, the
action taken and the product or facility involved when stated. No preamble.`

// maxBodyRunes bounds the item body sent to the model.
const maxBodyRunes = 4000

// AnthropicSummarizer summarizes with a Claude model.
type AnthropicSummarizer struct {
	client    anthropic.Client
	model     string
	maxTokens int64

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// NewAnthropicSummarizer creates a summarizer using client.
func NewAnthropicSummarizer(client anthropic.Client, cfg config.AnthropicConfig) *AnthropicSummarizer {
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &AnthropicSummarizer{client: client, model: cfg.Model, maxTokens: maxTokens}
}

// FromConfig returns nil when no API key is configured.
func FromConfig(cfg config.AnthropicConfig) Summarizer {
	if cfg.Key == "" {
		return nil
	}
	return NewAnthropicSummarizer(anthropic.NewClient(cfg.Key), cfg)
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, item model.RegulatoryItem) (string, error) {
	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		System:      systemPrompt,
		CacheSystem: true,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt(item)}},
	})
	if err != nil {
		return "", eris.Wrap(err, "summarize: create message")
	}

	s.mu.Lock()
	s.usage.Add(resp.Usage)
	s.mu.Unlock()

	summary := strings.Join(strings.Fields(resp.Text), " ")
	if summary == "" {
		return "", eris.New("summarize: empty response")
	}
	return summary, nil
}

// Usage returns the tokens consumed so far.
func (s *AnthropicSummarizer) Usage() anthropic.TokenUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// LogUsage logs accumulated usage and cost.
func (s *AnthropicSummarizer) LogUsage() {
	s.Usage().LogCost(s.model, "summarize")
}

func prompt(item model.RegulatoryItem) string {
	body := item.Body
	if r := []rune(body); len(r) > maxBodyRunes {
		body = string(r[:maxBodyRunes])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	if item.RawCompanyText != "" && item.RawCompanyText != model.UnknownCompany {
		fmt.Fprintf(&b, "Company: %s\n", item.RawCompanyText)
	}
	fmt.Fprintf(&b, "Action: %s\n", item.PrimaryType())
	fmt.Fprintf(&b, "Source: %s\n", item.Source)
	if body != "" {
		fmt.Fprintf(&b, "\n%s\n", body)
	}
	return b.String()
}

// All summarizes the items at idx in place, at most concurrency at a time.
// Failures leave Summary empty and are logged; the count of summaries
// written is returned.
func All(ctx context.Context, s Summarizer, items []model.RegulatoryItem, idx []int, concurrency int) int {
	if s == nil || len(idx) == 0 {
		return 0
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	var (
		mu sync.Mutex
		n  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, i := range idx {
		g.Go(func() error {
			summary, err := s.Summarize(gctx, items[i])
			if err != nil {
				zap.L().Warn("summarize: item skipped", zap.String("title", items[i].Title), zap.Error(err))
				return nil
			}
			mu.Lock()
			items[i].Summary = summary
			n++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return n
}
