package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/riskmeter/internal/scoring"
)

// Alert is raised when a scoring run flags a metric at high severity.
type Alert struct {
	ID         string             `json:"id"`
	EntityType scoring.EntityType `json:"entity_type"`
	EntityID   string             `json:"entity_id"`
	Metric     string             `json:"metric"`
	Current    float64            `json:"current"`
	Threshold  float64            `json:"threshold"`
	Score      int                `json:"score"`
	CreatedAt  time.Time          `json:"created_at"`
	ResolvedAt *time.Time         `json:"resolved_at,omitempty"`
}

// Notifier delivers alerts to an external channel.
type Notifier interface {
	SendAlert(ctx context.Context, alert *Alert) error
}

// SlackNotifier posts alerts to a Slack webhook.
type SlackNotifier struct {
	WebhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Slack notifier.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		WebhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// SendAlert posts the alert to the configured webhook.
func (s *SlackNotifier) SendAlert(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("High-severity metric breach: %s %s %s=%.2f (threshold %.2f), risk score %d",
			alert.EntityType, alert.EntityID, alert.Metric, alert.Current, alert.Threshold, alert.Score),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// AlertManager tracks active alerts and fans them out to notifiers. It is
// injected where needed rather than held as package state.
type AlertManager struct {
	mu        sync.RWMutex
	alerts    map[string]*Alert // keyed by entity+metric
	notifiers []Notifier
	metrics   *Metrics
}

// NewAlertManager creates an alert manager.
func NewAlertManager(metrics *Metrics) *AlertManager {
	return &AlertManager{
		alerts:  make(map[string]*Alert),
		metrics: metrics,
	}
}

// AddNotifier registers a notifier.
func (am *AlertManager) AddNotifier(n Notifier) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.notifiers = append(am.notifiers, n)
}

func alertKey(entityType scoring.EntityType, entityID, metric string) string {
	return string(entityType) + ":" + entityID + ":" + metric
}

// ProcessScore raises an alert for every high-severity flagged metric in
// the result and resolves alerts for metrics that recovered.
func (am *AlertManager) ProcessScore(ctx context.Context, result scoring.CompositeScore) {
	am.mu.Lock()
	defer am.mu.Unlock()

	seen := make(map[string]bool)

	for metric, flagged := range result.FlaggedMetrics {
		if flagged.Severity != scoring.SeverityHigh {
			continue
		}

		key := alertKey(result.Window.EntityType, result.Window.EntityID, metric)
		seen[key] = true

		if _, active := am.alerts[key]; active {
			continue
		}

		alert := &Alert{
			ID:         uuid.New().String(),
			EntityType: result.Window.EntityType,
			EntityID:   result.Window.EntityID,
			Metric:     metric,
			Current:    flagged.Current,
			Threshold:  flagged.Threshold,
			Score:      result.Score,
			CreatedAt:  time.Now(),
		}
		am.alerts[key] = alert

		if am.metrics != nil {
			am.metrics.IncrementAlertFired()
		}

		for _, n := range am.notifiers {
			if err := n.SendAlert(ctx, alert); err != nil {
				slog.Warn("Failed to send alert", "metric", metric, "error", err)
			}
		}

		slog.Warn("High-severity alert fired",
			"entity_type", alert.EntityType,
			"entity_id", alert.EntityID,
			"metric", alert.Metric,
			"current", alert.Current,
			"threshold", alert.Threshold,
		)
	}

	// Resolve alerts whose metric is no longer flagged high for this entity
	prefix := string(result.Window.EntityType) + ":" + result.Window.EntityID + ":"
	now := time.Now()
	for key, alert := range am.alerts {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix && !seen[key] && alert.ResolvedAt == nil {
			alert.ResolvedAt = &now
			slog.Info("Alert resolved", "entity_id", alert.EntityID, "metric", alert.Metric)
			delete(am.alerts, key)
		}
	}
}

// GetActiveAlerts returns a copy of the currently active alerts.
func (am *AlertManager) GetActiveAlerts() []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	active := make([]Alert, 0, len(am.alerts))
	for _, alert := range am.alerts {
		active = append(active, *alert)
	}
	return active
}
