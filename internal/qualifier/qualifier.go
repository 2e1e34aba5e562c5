// Package qualifier maps a lead score into a qualification tier and a
// recommended next action.
package qualifier

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
)

// Response SLAs per tier, in hours.
const (
	timelineHot         = 1
	timelineWarm        = 24
	timelineCold        = 72
	timelineUnqualified = 48
)

// Qualify derives a Qualification from a lead and its score.
//
// The contact/company gate runs before the score is consulted: a lead with
// no contact channel or a blank company is Unqualified no matter what it
// scored. Qualification is a compliance gate before it is a performance
// score.
//
// Scores outside [0,100] are a caller bug (the scorer clamps); they are
// rejected rather than silently coerced.
func Qualify(lead model.Lead, score int, cfg config.ScoringConfig) (model.Qualification, error) {
	if score < 0 || score > 100 {
		return model.Qualification{}, eris.Errorf("qualifier: score %d out of range [0,100]", score)
	}

	if !lead.HasContact() || !lead.HasCompany() {
		return model.Qualification{
			Tier:          model.TierUnqualified,
			NextAction:    model.ActionResearch,
			TimelineHours: timelineUnqualified,
		}, nil
	}

	switch {
	case score >= cfg.HotThreshold:
		return model.Qualification{
			Tier:          model.TierHot,
			NextAction:    model.ActionImmediateCall,
			TimelineHours: timelineHot,
		}, nil
	case score >= cfg.WarmThreshold:
		return model.Qualification{
			Tier:          model.TierWarm,
			NextAction:    model.ActionScheduleCall,
			TimelineHours: timelineWarm,
		}, nil
	case score >= cfg.ColdThreshold:
		return model.Qualification{
			Tier:          model.TierCold,
			NextAction:    model.ActionEmailSequence,
			TimelineHours: timelineCold,
		}, nil
	}

	// Target-industry floor: a strategic industry keeps a below-threshold
	// lead at Cold, never higher.
	if inTargetIndustry(lead.Industry, cfg.TargetIndustries) {
		return model.Qualification{
			Tier:          model.TierCold,
			NextAction:    model.ActionEmailSequence,
			TimelineHours: timelineCold,
		}, nil
	}

	return model.Qualification{
		Tier:          model.TierUnqualified,
		NextAction:    model.ActionResearch,
		TimelineHours: timelineUnqualified,
	}, nil
}

func inTargetIndustry(industry string, targets []string) bool {
	industry = strings.TrimSpace(industry)
	if industry == "" {
		return false
	}
	for _, t := range targets {
		if strings.EqualFold(t, industry) {
			return true
		}
	}
	return false
}
