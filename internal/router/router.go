// Package router assigns qualified leads to a handler class and builds their
// outreach sequence. The router only decides; dispatching outreach and
// updating agent workload belong to external collaborators.
package router

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
)

// Route derives a RoutingDecision from a qualification and a read-only
// availability snapshot.
//
// Handler fallback: Hot leads get a senior agent if a slot is free, else a
// regular agent, else automation. Warm leads skip the senior pool. Cold and
// Unqualified leads are always automated.
//
// An invalid tier is a caller bug and is rejected, mirroring the qualifier's
// contract on scores.
func Route(q model.Qualification, avail model.AvailabilitySnapshot, cfg config.RoutingConfig) (model.RoutingDecision, error) {
	if !q.Tier.Valid() {
		return model.RoutingDecision{}, eris.Errorf("router: invalid tier %q", q.Tier)
	}

	return model.RoutingDecision{
		HandlerClass:     assignHandler(q.Tier, avail),
		OutreachSequence: buildSequence(q.Tier, cfg),
	}, nil
}

func assignHandler(tier model.Tier, avail model.AvailabilitySnapshot) model.HandlerClass {
	switch tier {
	case model.TierHot:
		if avail.SeniorSlots > 0 {
			return model.HandlerSenior
		}
		if avail.RegularSlots > 0 {
			return model.HandlerRegular
		}
		return model.HandlerAutomated
	case model.TierWarm:
		if avail.RegularSlots > 0 {
			return model.HandlerRegular
		}
		return model.HandlerAutomated
	default:
		return model.HandlerAutomated
	}
}

// buildSequence materializes the configured steps for a tier. Unqualified
// leads get no outreach; they are routed to research instead. Config
// validation guarantees the delays are non-decreasing.
func buildSequence(tier model.Tier, cfg config.RoutingConfig) []model.OutreachStep {
	if tier == model.TierUnqualified {
		return nil
	}

	configured := cfg.Sequences[string(tier)]
	if len(configured) == 0 {
		return nil
	}

	steps := make([]model.OutreachStep, len(configured))
	for i, sc := range configured {
		steps[i] = model.OutreachStep{
			Channel:      model.Channel(sc.Channel),
			DelayMinutes: sc.DelayMinutes,
			TemplateID:   sc.TemplateID,
		}
	}
	return steps
}
