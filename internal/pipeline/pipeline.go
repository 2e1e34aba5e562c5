// Package pipeline orchestrates the lead decision flow: score, qualify,
// route, persist, dispatch.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadflow/internal/agents"
	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/outreach"
	"github.com/sells-group/leadflow/internal/qualifier"
	"github.com/sells-group/leadflow/internal/resilience"
	"github.com/sells-group/leadflow/internal/router"
	"github.com/sells-group/leadflow/internal/scorer"
	"github.com/sells-group/leadflow/internal/store"
)

// Pipeline runs leads through the decision stages and records the outcome.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	avail    agents.AvailabilityProvider
	executor outreach.Executor
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, st store.Store, avail agents.AvailabilityProvider, exec outreach.Executor) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    st,
		avail:    avail,
		executor: exec,
	}
}

// Process runs a single lead through scoring, qualification, and routing,
// persists the decision, and dispatches the outreach sequence.
//
// Scoring and qualification are pure over the lead and config; the only
// external reads are the availability snapshot and the store.
func (p *Pipeline) Process(ctx context.Context, lead model.Lead) (*model.Decision, error) {
	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("company", lead.Company))

	scored := scorer.Score(lead, p.cfg.Scoring)

	q, err := qualifier.Qualify(lead, scored.Score, p.cfg.Scoring)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: qualify")
	}

	snap, err := p.avail.Snapshot(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: availability snapshot")
	}

	routing, err := router.Route(q, snap, p.cfg.Routing)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: route")
	}

	decision := model.Decision{
		LeadID:        lead.ID,
		Scored:        scored,
		Qualification: q,
		Routing:       routing,
	}

	saved, err := p.store.SaveDecision(ctx, decision)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: save decision")
	}
	if err := p.store.UpdateLeadStatus(ctx, lead.ID, model.LeadStatusRouted); err != nil {
		return nil, eris.Wrap(err, "pipeline: update lead status")
	}

	if err := p.executor.Dispatch(ctx, lead, routing.OutreachSequence); err != nil {
		return nil, eris.Wrap(err, "pipeline: dispatch outreach")
	}

	// The slot is consumed only once the assignment is durable; a failed
	// persist or dispatch must not drain capacity for the rest of the batch.
	if err := p.avail.Reserve(ctx, routing.HandlerClass); err != nil {
		return nil, eris.Wrap(err, "pipeline: reserve handler slot")
	}

	log.Info("pipeline: lead routed",
		zap.Int("score", scored.Score),
		zap.String("tier", string(q.Tier)),
		zap.String("next_action", string(q.NextAction)),
		zap.String("handler", string(routing.HandlerClass)),
		zap.Int("outreach_steps", len(routing.OutreachSequence)),
	)

	return saved, nil
}

// BatchResult summarizes a batch run. Failed leads carry enough context to
// retry or escalate.
type BatchResult struct {
	Succeeded int
	Failed    []resilience.FailedLead
}

// ProcessBatch runs leads concurrently through Process. Individual failures
// do not abort the batch; they are collected in the result.
func (p *Pipeline) ProcessBatch(ctx context.Context, leads []model.Lead) (*BatchResult, error) {
	if len(leads) == 0 {
		zap.L().Info("pipeline: no leads to process")
		return &BatchResult{}, nil
	}

	concurrency := p.cfg.Batch.MaxConcurrentLeads
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("pipeline: processing batch",
		zap.Int("leads", len(leads)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded atomic.Int64
	var mu sync.Mutex
	var failed []resilience.FailedLead

	for _, lead := range leads {
		g.Go(func() error {
			if _, err := p.Process(gctx, lead); err != nil {
				zap.L().Error("pipeline: lead failed",
					zap.String("lead_id", lead.ID),
					zap.String("company", lead.Company),
					zap.Error(err),
				)
				mu.Lock()
				failed = append(failed, resilience.NewFailedLead(lead, "process", err))
				mu.Unlock()
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: batch")
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int("failed", len(failed)),
	)

	return &BatchResult{
		Succeeded: int(succeeded.Load()),
		Failed:    failed,
	}, nil
}
