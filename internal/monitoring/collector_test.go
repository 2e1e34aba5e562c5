package monitoring

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "monitoring_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func seedDecision(t *testing.T, st store.Store, tier model.Tier, score, timelineHours int, decidedAt time.Time, leadStatus model.LeadStatus) {
	t.Helper()
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, model.Lead{
		Company: "Seed Co",
		Email:   "seed@example.com",
		Status:  leadStatus,
	})
	require.NoError(t, err)

	_, err = st.SaveDecision(ctx, model.Decision{
		LeadID: lead.ID,
		Scored: model.ScoredLead{Lead: *lead, Score: score},
		Qualification: model.Qualification{
			Tier:          tier,
			TimelineHours: timelineHours,
		},
		DecidedAt: decidedAt,
	})
	require.NoError(t, err)
}

func TestCollect_Empty(t *testing.T) {
	c := NewCollector(newTestStore(t))

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.DecisionsTotal)
	assert.Zero(t, snap.UnqualifiedRate)
	assert.Zero(t, snap.AvgScore)
	assert.Zero(t, snap.SLABreaches)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollect_WindowMetrics(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	seedDecision(t, st, model.TierHot, 90, 1, now.Add(-10*time.Minute), model.LeadStatusSynced)
	seedDecision(t, st, model.TierWarm, 70, 24, now.Add(-20*time.Minute), model.LeadStatusSynced)
	seedDecision(t, st, model.TierUnqualified, 40, 48, now.Add(-30*time.Minute), model.LeadStatusRouted)
	// Outside the lookback window.
	seedDecision(t, st, model.TierHot, 95, 1, now.Add(-48*time.Hour), model.LeadStatusConverted)

	c := NewCollector(st)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.DecisionsTotal)
	assert.Equal(t, 1, snap.HotCount)
	assert.InDelta(t, 1.0/3.0, snap.UnqualifiedRate, 0.001)
	assert.InDelta(t, (90+70+40)/3.0, snap.AvgScore, 0.001)

	// Lifetime aggregates include the old decision.
	assert.Equal(t, 2, snap.DecisionsByTier[model.TierHot])
	assert.Equal(t, 1, snap.LeadsByStatus[model.LeadStatusRouted])
}

func TestCollect_SLABreaches(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	// Routed hot lead 3h past a 1h timeline: breach.
	seedDecision(t, st, model.TierHot, 85, 1, now.Add(-3*time.Hour), model.LeadStatusRouted)
	// Routed warm lead still inside its 24h timeline: no breach.
	seedDecision(t, st, model.TierWarm, 70, 24, now.Add(-2*time.Hour), model.LeadStatusRouted)
	// Past deadline but already synced: the agent acted, no breach.
	seedDecision(t, st, model.TierHot, 88, 1, now.Add(-5*time.Hour), model.LeadStatusSynced)

	c := NewCollector(st)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.SLABreaches)
}

func TestCollect_SLABreachOlderThanWindow(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	// Routed 25h ago with a 1h timeline: the decision has aged out of the
	// 24h metrics window but the lead is still overdue.
	seedDecision(t, st, model.TierHot, 85, 1, now.Add(-25*time.Hour), model.LeadStatusRouted)

	c := NewCollector(st)
	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.DecisionsTotal)
	assert.Equal(t, 1, snap.SLABreaches)
}
