package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alerter notifies operators about anomalies. Delivery is best-effort: a
// failed delivery is logged and swallowed, it never aborts a polling cycle or
// a finalize call.
type Alerter interface {
	Alert(ctx context.Context, severity Severity, subject string, detail string)
}

type webhookAlerter struct {
	httpClient *http.Client
	webhookURL string
	logger     *zap.Logger
}

// NewWebhookAlerter posts Slack-compatible messages to the configured webhook.
// With an empty URL alerts are log-only.
func NewWebhookAlerter(webhookURL string, logger *zap.Logger) Alerter {
	return &webhookAlerter{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		webhookURL: webhookURL,
		logger:     logger,
	}
}

func (a *webhookAlerter) Alert(ctx context.Context, severity Severity, subject string, detail string) {
	a.logger.Warn("operator alert",
		zap.String("severity", string(severity)),
		zap.String("subject", subject),
		zap.String("detail", detail))

	if a.webhookURL == "" {
		return
	}

	payload := map[string]string{
		"text": fmt.Sprintf("[%s] %s: %s", severity, subject, detail),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshal alert payload failed", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		a.logger.Error("build alert request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("deliver alert failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.logger.Error("alert webhook rejected",
			zap.String("subject", subject),
			zap.Int("status", resp.StatusCode))
	}
}
