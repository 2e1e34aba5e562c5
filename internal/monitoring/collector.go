// Package monitoring gathers pipeline health metrics and raises alerts when
// lead flow degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

// listLimit bounds the window queries so a runaway backlog cannot blow up a
// health check.
const listLimit = 10000

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Lifetime totals.
	LeadsByStatus   map[model.LeadStatus]int `json:"leads_by_status"`
	DecisionsByTier map[model.Tier]int       `json:"decisions_by_tier"`

	// Decision metrics (within lookback window).
	DecisionsTotal  int     `json:"decisions_total"`
	HotCount        int     `json:"hot_count"`
	UnqualifiedRate float64 `json:"unqualified_rate"`
	AvgScore        float64 `json:"avg_score"`

	// SLABreaches counts leads still sitting in routed status past their
	// qualification timeline, regardless of how long ago they were routed.
	SLABreaches int `json:"sla_breaches"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the lead store.
type Collector struct {
	store store.Store

	// now is swappable for tests.
	now func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot of pipeline metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	byStatus, err := c.store.CountLeadsByStatus(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count leads by status")
	}
	snap.LeadsByStatus = byStatus

	byTier, err := c.store.CountDecisionsByTier(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count decisions by tier")
	}
	snap.DecisionsByTier = byTier

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	decisions, err := c.store.ListDecisions(ctx, store.DecisionFilter{
		DecidedAfter: cutoff,
		Limit:        listLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list decisions")
	}

	snap.DecisionsTotal = len(decisions)
	var totalScore int
	var unqualified int

	for _, d := range decisions {
		totalScore += d.Scored.Score
		switch d.Qualification.Tier {
		case model.TierHot:
			snap.HotCount++
		case model.TierUnqualified:
			unqualified++
		}
	}

	if snap.DecisionsTotal > 0 {
		snap.UnqualifiedRate = float64(unqualified) / float64(snap.DecisionsTotal)
		snap.AvgScore = float64(totalScore) / float64(snap.DecisionsTotal)
	}

	breaches, err := c.slaBreaches(ctx, now)
	if err != nil {
		return nil, err
	}
	snap.SLABreaches = breaches

	return snap, nil
}

// slaBreaches walks every lead still in routed status and checks its latest
// decision against the qualification timeline. Breach detection is not bounded
// by the metrics window: the most overdue leads are exactly the ones whose
// decisions have aged out of it.
func (c *Collector) slaBreaches(ctx context.Context, now time.Time) (int, error) {
	leads, err := c.store.ListLeads(ctx, store.LeadFilter{
		Status: model.LeadStatusRouted,
		Limit:  listLimit,
	})
	if err != nil {
		return 0, eris.Wrap(err, "monitoring: list routed leads")
	}

	breaches := 0
	for _, l := range leads {
		d, err := c.store.GetLatestDecision(ctx, l.ID)
		if err != nil {
			return 0, eris.Wrapf(err, "monitoring: decision for lead %s", l.ID)
		}
		if d == nil || d.Qualification.TimelineHours <= 0 {
			continue
		}
		deadline := d.DecidedAt.Add(time.Duration(d.Qualification.TimelineHours) * time.Hour)
		if now.After(deadline) {
			breaches++
		}
	}
	return breaches, nil
}
