package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// webhookPayload is the wire shape expected by the notification channel.
type webhookPayload struct {
	Text        string              `json:"text"`
	Attachments []webhookAttachment `json:"attachments"`
}

type webhookAttachment struct {
	Color  string         `json:"color"`
	Fields []webhookField `json:"fields"`
}

type webhookField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// WebhookSink posts alert notifications to a configured URL. Fire and
// forget: no retries, and the per-call timeout bounds how long a dispatch
// goroutine can live.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

var _ Sink = (*WebhookSink)(nil)

func (s *WebhookSink) Notify(ctx context.Context, a Alert) error {
	fields := []webhookField{
		{Title: "Type", Value: a.Type, Short: true},
		{Title: "Severity", Value: string(a.Severity), Short: true},
		{Title: "Created", Value: a.CreatedAt.Format(time.RFC3339), Short: true},
	}
	for k, v := range a.Metadata {
		fields = append(fields, webhookField{Title: k, Value: v, Short: true})
	}

	payload := webhookPayload{
		Text: a.Message,
		Attachments: []webhookAttachment{{
			Color:  severityColor(a.Severity),
			Fields: fields,
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func severityColor(s Severity) string {
	if s == SeverityCritical {
		return "#d93025"
	}
	return "#f2c744"
}
