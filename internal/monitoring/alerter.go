package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertUnqualifiedRate AlertType = "unqualified_rate"
	AlertSLABreach       AlertType = "sla_breach"
	AlertLeadFlowStalled AlertType = "lead_flow_stalled"
)

// minDecisionsForRateAlert avoids rate alerts on tiny windows where one bad
// lead dominates the denominator.
const minDecisionsForRateAlert = 10

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.DecisionsTotal >= minDecisionsForRateAlert && snap.UnqualifiedRate > a.cfg.UnqualifiedRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertUnqualifiedRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Unqualified rate %.1f%% exceeds threshold %.1f%% (%d decisions in last %dh)",
				snap.UnqualifiedRate*100, a.cfg.UnqualifiedRateThreshold*100,
				snap.DecisionsTotal, snap.LookbackHours,
			),
			Details: map[string]any{
				"unqualified_rate": snap.UnqualifiedRate,
				"threshold":        a.cfg.UnqualifiedRateThreshold,
				"decisions_total":  snap.DecisionsTotal,
			},
			Timestamp: now,
		})
	}

	if snap.SLABreaches > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertSLABreach,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d routed lead(s) past their follow-up timeline",
				snap.SLABreaches,
			),
			Details: map[string]any{
				"sla_breaches": snap.SLABreaches,
				"hot_count":    snap.HotCount,
			},
			Timestamp: now,
		})
	}

	if queued := snap.LeadsByStatus[model.LeadStatusNew]; snap.DecisionsTotal == 0 && queued > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertLeadFlowStalled,
			Severity: "medium",
			Message: fmt.Sprintf(
				"No decisions in last %dh while %d new lead(s) are queued",
				snap.LookbackHours, queued,
			),
			Details: map[string]any{
				"new_leads": queued,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
