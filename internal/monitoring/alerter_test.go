package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		CheckIntervalSecs:        300,
		LookbackWindowHours:      24,
		UnqualifiedRateThreshold: 0.5,
	}
}

func TestEvaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	snap := &MetricsSnapshot{
		DecisionsTotal:  20,
		UnqualifiedRate: 0.2,
		LookbackHours:   24,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluate_UnqualifiedRate(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	t.Run("over threshold", func(t *testing.T) {
		snap := &MetricsSnapshot{
			DecisionsTotal:  20,
			UnqualifiedRate: 0.8,
			LookbackHours:   24,
		}
		alerts := a.Evaluate(snap)
		require.Len(t, alerts, 1)
		assert.Equal(t, AlertUnqualifiedRate, alerts[0].Type)
		assert.Equal(t, "high", alerts[0].Severity)
		assert.Contains(t, alerts[0].Message, "80.0%")
	})

	t.Run("too few decisions to alert", func(t *testing.T) {
		snap := &MetricsSnapshot{
			DecisionsTotal:  3,
			UnqualifiedRate: 1.0,
			LookbackHours:   24,
		}
		assert.Empty(t, a.Evaluate(snap))
	})
}

func TestEvaluate_SLABreach(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	snap := &MetricsSnapshot{
		DecisionsTotal: 12,
		SLABreaches:    2,
		LookbackHours:  24,
	}
	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSLABreach, alerts[0].Type)
	assert.Equal(t, 2, alerts[0].Details["sla_breaches"])
}

func TestEvaluate_LeadFlowStalled(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	t.Run("queued leads with no decisions", func(t *testing.T) {
		snap := &MetricsSnapshot{
			DecisionsTotal: 0,
			LeadsByStatus:  map[model.LeadStatus]int{model.LeadStatusNew: 40},
			LookbackHours:  24,
		}
		alerts := a.Evaluate(snap)
		require.Len(t, alerts, 1)
		assert.Equal(t, AlertLeadFlowStalled, alerts[0].Type)
		assert.Equal(t, "medium", alerts[0].Severity)
	})

	t.Run("empty backlog is quiet", func(t *testing.T) {
		snap := &MetricsSnapshot{
			DecisionsTotal: 0,
			LeadsByStatus:  map[model.LeadStatus]int{},
			LookbackHours:  24,
		}
		assert.Empty(t, a.Evaluate(snap))
	})
}

func TestSendAlerts(t *testing.T) {
	t.Run("posts each alert as JSON", func(t *testing.T) {
		var received atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var alert Alert
			require.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
			assert.NotEmpty(t, alert.Type)
			received.Add(1)
		}))
		defer srv.Close()

		cfg := testMonitoringConfig()
		cfg.WebhookURL = srv.URL
		a := NewAlerter(cfg)

		sent := a.SendAlerts(context.Background(), []Alert{
			{Type: AlertSLABreach, Severity: "high", Message: "breach"},
			{Type: AlertUnqualifiedRate, Severity: "high", Message: "rate"},
		})
		assert.Equal(t, 2, sent)
		assert.Equal(t, int32(2), received.Load())
	})

	t.Run("no webhook configured sends nothing", func(t *testing.T) {
		a := NewAlerter(testMonitoringConfig())
		sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertSLABreach}})
		assert.Zero(t, sent)
	})

	t.Run("counts only successful deliveries", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		cfg := testMonitoringConfig()
		cfg.WebhookURL = srv.URL
		a := NewAlerter(cfg)

		sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertSLABreach}})
		assert.Zero(t, sent)
	})
}
