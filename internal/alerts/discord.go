package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"

	"github.com/liamashdown/polywatch/internal/ratelimit"
)

// DiscordSender posts alerts to one or more Discord webhooks. Each webhook
// sits behind its own circuit breaker; all of them share one rate limiter.
type DiscordSender struct {
	webhooks   []*webhook
	limiter    *ratelimit.Limiter
	httpClient *http.Client
}

type webhook struct {
	url     string
	breaker *gobreaker.CircuitBreaker
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(webhookURLs []string, rps float64) *DiscordSender {
	s := &DiscordSender{
		limiter:    ratelimit.New(rps, 1),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for i, url := range webhookURLs {
		s.webhooks = append(s.webhooks, &webhook{
			url: url,
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:        fmt.Sprintf("discord-%d", i),
				MaxRequests: 1,
				Timeout:     60 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
			}),
		})
	}
	return s
}

// Send sends the alert to every webhook
func (s *DiscordSender) Send(ctx context.Context, payload *AlertPayload) error {
	body, err := json.Marshal(map[string]interface{}{
		"embeds": []interface{}{buildEmbed(payload)},
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var errs []error
	for i, hook := range s.webhooks {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := hook.breaker.Execute(func() (interface{}, error) {
			return nil, s.post(ctx, hook.url, body)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("webhook %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (s *DiscordSender) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

func buildEmbed(payload *AlertPayload) map[string]interface{} {
	var title string
	var color int
	switch payload.Severity {
	case SeverityAlert:
		title = "🚨 Suspicious trading pattern"
		color = 0xFF0000 // Red
	case SeverityWarn:
		title = "⚠️ Trading pattern on watch"
		color = 0xFFA500 // Orange
	default:
		title = "ℹ️ Event analysed"
		color = 0x0099FF // Blue
	}

	description := fmt.Sprintf("**%s** scored **%.1f/100** (%s) over %d trades",
		truncate(payload.EventTitle, 200),
		payload.Score,
		payload.Label,
		payload.TradeCount,
	)

	fields := []map[string]interface{}{
		{
			"name":   "Slug",
			"value":  fmt.Sprintf("`%s`", payload.Slug),
			"inline": true,
		},
		{
			"name":   "Window",
			"value":  payload.Lookback.String(),
			"inline": true,
		},
	}

	if len(payload.Rationale) > 0 {
		fields = append(fields, map[string]interface{}{
			"name":   "Signals",
			"value":  truncate("• "+strings.Join(payload.Rationale, "\n• "), 1000),
			"inline": false,
		})
	}

	if len(payload.Outcomes) > 0 {
		lines := make([]string, 0, len(payload.Outcomes))
		for _, o := range payload.Outcomes {
			lines = append(lines, fmt.Sprintf("%s: **%.1f** %s (%d trades)", o.Label, o.Score, o.Verdict, o.Trades))
		}
		fields = append(fields, map[string]interface{}{
			"name":   "Outcomes",
			"value":  truncate(strings.Join(lines, "\n"), 1000),
			"inline": false,
		})
	}

	footer := map[string]interface{}{
		"text": fmt.Sprintf("polywatch • %s • %s", payload.Environment, payload.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")),
	}

	return map[string]interface{}{
		"title":       title,
		"url":         payload.EventURL,
		"description": description,
		"color":       color,
		"fields":      fields,
		"footer":      footer,
		"timestamp":   payload.Timestamp.Format(time.RFC3339),
	}
}

// truncate limits s to maxLen runes, marking the cut with an ellipsis
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}
