package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
)

func TestCheck_StalledFlowPostsWebhook(t *testing.T) {
	var posts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	st := newTestStore(t)
	// Leads queued but nothing decided: the stalled-flow alert fires.
	_, err := st.CreateLead(context.Background(), model.Lead{
		Company: "Idle Co",
		Email:   "idle@example.com",
		Status:  model.LeadStatusNew,
	})
	require.NoError(t, err)

	cfg := config.MonitoringConfig{
		LookbackWindowHours:      24,
		UnqualifiedRateThreshold: 0.5,
		WebhookURL:               srv.URL,
	}
	c := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)
	c.check(context.Background(), zap.NewNop())

	assert.Equal(t, int64(1), posts.Load())
}

func TestCheck_HealthyPipelineStaysQuiet(t *testing.T) {
	var posts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	st := newTestStore(t)
	seedDecision(t, st, model.TierWarm, 70, 24, time.Now().UTC().Add(-time.Hour), model.LeadStatusSynced)

	cfg := config.MonitoringConfig{
		LookbackWindowHours:      24,
		UnqualifiedRateThreshold: 0.5,
		WebhookURL:               srv.URL,
	}
	c := NewChecker(NewCollector(st), NewAlerter(cfg), cfg)
	c.check(context.Background(), zap.NewNop())

	assert.Zero(t, posts.Load())
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:        1,
		LookbackWindowHours:      24,
		UnqualifiedRateThreshold: 0.5,
	}
	c := NewChecker(NewCollector(newTestStore(t)), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker did not stop after cancel")
	}
}
