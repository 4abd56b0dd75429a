// Package notify delivers cost-change alerts to the configured channel. The
// detector decides what to alert; deduplication ("already sent in the last
// 24h") and read/dismissed state live with the receiving system, not here.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/warungworks/costing-cli/internal/config"
	"github.com/warungworks/costing-cli/internal/model"
)

// Notifier delivers alerts and returns how many were accepted.
type Notifier interface {
	Publish(ctx context.Context, alerts []model.CostChangeAlert) int
}

// FromConfig selects the notifier for the configured channel.
func FromConfig(cfg config.NotifyConfig) Notifier {
	switch cfg.Channel {
	case "webhook":
		return NewWebhook(cfg)
	case "none":
		return Noop{}
	default:
		return LogNotifier{}
	}
}

// WebhookNotifier POSTs each alert as JSON to a webhook URL, throttled so a
// large sweep cannot hammer the receiver.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhook creates a WebhookNotifier from notify configuration.
func NewWebhook(cfg config.NotifyConfig) *WebhookNotifier {
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	return &WebhookNotifier{
		url:     cfg.WebhookURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
	}
}

// Publish delivers alerts one by one. A failed send is logged and skipped;
// the rest of the batch still goes out.
func (n *WebhookNotifier) Publish(ctx context.Context, alerts []model.CostChangeAlert) int {
	if n.url == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := n.limiter.Wait(ctx); err != nil {
			zap.L().Warn("notify: webhook publish cancelled", zap.Error(err))
			return sent
		}
		if err := n.send(ctx, alert); err != nil {
			zap.L().Error("notify: webhook send failed",
				zap.String("ingredient", alert.IngredientID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (n *WebhookNotifier) send(ctx context.Context, alert model.CostChangeAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "notify: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes alerts to the application log. Default channel for
// installs without a webhook receiver.
type LogNotifier struct{}

func (LogNotifier) Publish(_ context.Context, alerts []model.CostChangeAlert) int {
	for _, alert := range alerts {
		zap.L().Info("cost change alert",
			zap.String("ingredient", alert.IngredientID),
			zap.String("severity", string(alert.Severity)),
			zap.Float64("change_percent", alert.ChangePercent),
			zap.Float64("previous_price", alert.PreviousUnitPrice),
			zap.Float64("current_price", alert.CurrentUnitPrice),
			zap.Int("affected_recipes", len(alert.AffectedRecipes)),
		)
	}
	return len(alerts)
}

// Noop drops all alerts.
type Noop struct{}

func (Noop) Publish(context.Context, []model.CostChangeAlert) int { return 0 }
