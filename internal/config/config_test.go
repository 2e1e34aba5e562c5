package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 80, cfg.Scoring.HotThreshold)
	assert.Equal(t, 65, cfg.Scoring.WarmThreshold)
	assert.Equal(t, 50, cfg.Scoring.ColdThreshold)
	assert.Contains(t, cfg.Scoring.HighValueIndustries, "construction")
	assert.Contains(t, cfg.Scoring.QualitySources, "referral")
	assert.NotEmpty(t, cfg.Routing.Sequences[string(model.TierHot)])

	require.NoError(t, cfg.Validate("store", "scoring", "routing"))
}

func TestValidateScoring(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScoringConfig)
		wantErr string
	}{
		{
			"empty industries",
			func(s *ScoringConfig) { s.HighValueIndustries = nil },
			"high_value_industries",
		},
		{
			"hot threshold above 100",
			func(s *ScoringConfig) { s.HotThreshold = 120 },
			"hot_threshold",
		},
		{
			"thresholds not descending",
			func(s *ScoringConfig) { s.WarmThreshold = 90 },
			"strictly descending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(&cfg.Scoring)

			err = cfg.Validate("scoring")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRouting(t *testing.T) {
	t.Run("missing tier sequence", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		delete(cfg.Routing.Sequences, string(model.TierWarm))

		err = cfg.Validate("routing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sequences.warm")
	})

	t.Run("rejects decreasing delays", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		cfg.Routing.Sequences[string(model.TierCold)] = []OutreachStepConfig{
			{Channel: "email", DelayMinutes: 100, TemplateID: "a"},
			{Channel: "email", DelayMinutes: 50, TemplateID: "b"},
		}

		err = cfg.Validate("routing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "before earlier step")
	})

	t.Run("rejects unknown channel", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		cfg.Routing.Sequences[string(model.TierHot)] = []OutreachStepConfig{
			{Channel: "carrier_pigeon", DelayMinutes: 0, TemplateID: "a"},
		}

		err = cfg.Validate("routing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown channel")
	})

	t.Run("rejects outreach for unqualified", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		cfg.Routing.Sequences[string(model.TierUnqualified)] = []OutreachStepConfig{
			{Channel: "email", DelayMinutes: 0, TemplateID: "a"},
		}

		err = cfg.Validate("routing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unqualified")
	})
}

func TestValidateSalesforce(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate("salesforce")
	require.Error(t, err, "salesforce credentials are not defaulted")
	assert.Contains(t, err.Error(), "client_id")
}

func TestDefaultSequencesOrdering(t *testing.T) {
	for tier, seq := range DefaultSequences() {
		prev := 0
		for i, step := range seq {
			assert.GreaterOrEqual(t, step.DelayMinutes, prev,
				"tier %s step %d out of order", tier, i)
			prev = step.DelayMinutes
		}
	}
}
