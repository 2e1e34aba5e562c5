package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadflow/internal/model"
)

func TestFormatScoreResult(t *testing.T) {
	scored := model.ScoredLead{
		Score: 85,
		Components: map[string]int{
			"base":     50,
			"industry": 20,
			"size":     15,
			"source":   0,
		},
	}
	q := model.Qualification{
		Tier:          model.TierHot,
		NextAction:    model.ActionImmediateCall,
		TimelineHours: 1,
	}
	routing := model.RoutingDecision{
		HandlerClass: model.HandlerSenior,
		OutreachSequence: []model.OutreachStep{
			{Channel: model.ChannelEmail, DelayMinutes: 0, TemplateID: "urgent_response"},
			{Channel: model.ChannelCall, DelayMinutes: 60, TemplateID: "high_value_followup"},
		},
	}

	var buf bytes.Buffer
	formatScoreResult(&buf, scored, q, routing)
	out := buf.String()

	assert.Contains(t, out, "Score:")
	assert.Contains(t, out, "85")
	assert.Contains(t, out, "industry:")
	assert.Contains(t, out, "+20")
	assert.NotContains(t, out, "source:", "zero components are hidden")
	assert.Contains(t, out, "hot")
	assert.Contains(t, out, "immediate_call (within 1h)")
	assert.Contains(t, out, "senior_agent")
	assert.Contains(t, out, "call after 60m (high_value_followup)")
}

func TestFormatScoreResult_NoOutreach(t *testing.T) {
	var buf bytes.Buffer
	formatScoreResult(&buf,
		model.ScoredLead{Score: 30, Components: map[string]int{"base": 30}},
		model.Qualification{Tier: model.TierUnqualified, NextAction: model.ActionResearch, TimelineHours: 48},
		model.RoutingDecision{HandlerClass: model.HandlerAutomated},
	)

	assert.Contains(t, buf.String(), "Outreach:")
	assert.Contains(t, buf.String(), "none")
}
