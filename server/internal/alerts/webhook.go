package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
)

// Webhook posts alerts to one Slack, Teams or generic HTTP endpoint.
type Webhook struct {
	kind   string
	url    string
	client *http.Client
}

// Webhooks builds a sink per configured target whose URL resolves to a
// non-empty value. Unknown types are rejected by config validation.
func Webhooks(cfgs []config.WebhookConfig, client *http.Client) []Sink {
	if client == nil {
		client = &http.Client{Timeout: deliveryTimeout}
	}
	var out []Sink
	for _, wh := range cfgs {
		url := wh.URL()
		if url == "" {
			continue
		}
		out = append(out, &Webhook{kind: wh.Type, url: url, client: client})
	}
	return out
}

// Name implements Sink.
func (w *Webhook) Name() string { return "webhook/" + w.kind }

// Deliver implements Sink.
func (w *Webhook) Deliver(ctx context.Context, a Alert) error {
	var payload any
	switch w.kind {
	case "slack":
		payload = map[string]string{
			"text": fmt.Sprintf("*%s* %s", severityLabel(a.Severity), stateMessage(a)),
		}
	case "teams":
		payload = map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(a.Severity),
			"summary":    a.RuleName,
			"title":      fmt.Sprintf("Health Mirror Alert: %s", a.RuleName),
			"text":       stateMessage(a),
		}
	default:
		payload = map[string]any{"alert": a}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return w.post(ctx, body)
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func stateMessage(a Alert) string {
	if a.State == stateResolved {
		return fmt.Sprintf("%s resolved for session %s", a.RuleName, a.SessionID)
	}
	return a.Message
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
