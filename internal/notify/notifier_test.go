package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warungworks/costing-cli/internal/config"
	"github.com/warungworks/costing-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func sampleAlerts(n int) []model.CostChangeAlert {
	alerts := make([]model.CostChangeAlert, 0, n)
	for i := 0; i < n; i++ {
		alerts = append(alerts, model.CostChangeAlert{
			IngredientID:      "beef",
			PreviousUnitPrice: 1200,
			CurrentUnitPrice:  1400,
			ChangePercent:     16.67,
			ChangeAmount:      200,
			Severity:          model.SeverityHigh,
			ObservedAt:        time.Now().UTC(),
		})
	}
	return alerts
}

func TestFromConfig(t *testing.T) {
	assert.IsType(t, &WebhookNotifier{}, FromConfig(config.NotifyConfig{Channel: "webhook"}))
	assert.IsType(t, Noop{}, FromConfig(config.NotifyConfig{Channel: "none"}))
	assert.IsType(t, LogNotifier{}, FromConfig(config.NotifyConfig{Channel: "log"}))
	assert.IsType(t, LogNotifier{}, FromConfig(config.NotifyConfig{}))
}

func TestWebhook_PublishDeliversJSON(t *testing.T) {
	var got model.CostChangeAlert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhook(config.NotifyConfig{WebhookURL: srv.URL, RatePerSec: 100, Burst: 10})
	sent := n.Publish(context.Background(), sampleAlerts(1))

	assert.Equal(t, 1, sent)
	assert.Equal(t, "beef", got.IngredientID)
	assert.Equal(t, model.SeverityHigh, got.Severity)
}

func TestWebhook_FailedSendSkipsNotAborts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhook(config.NotifyConfig{WebhookURL: srv.URL, RatePerSec: 100, Burst: 10})
	sent := n.Publish(context.Background(), sampleAlerts(3))

	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhook_NoURL(t *testing.T) {
	n := NewWebhook(config.NotifyConfig{})
	assert.Zero(t, n.Publish(context.Background(), sampleAlerts(2)))
}

func TestWebhook_EmptyBatch(t *testing.T) {
	n := NewWebhook(config.NotifyConfig{WebhookURL: "http://localhost:1"})
	assert.Zero(t, n.Publish(context.Background(), nil))
}

func TestWebhook_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := NewWebhook(config.NotifyConfig{WebhookURL: srv.URL})
	assert.Zero(t, n.Publish(ctx, sampleAlerts(2)))
}

func TestLogNotifier_CountsAll(t *testing.T) {
	n := LogNotifier{}
	assert.Equal(t, 3, n.Publish(context.Background(), sampleAlerts(3)))
	assert.Zero(t, n.Publish(context.Background(), nil))
}

func TestNoop(t *testing.T) {
	assert.Zero(t, Noop{}.Publish(context.Background(), sampleAlerts(2)))
}
