package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/agents"
	"github.com/sells-group/leadflow/internal/config"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/outreach"
	"github.com/sells-group/leadflow/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Scoring: config.ScoringConfig{
			HighValueIndustries: []string{"construction", "manufacturing", "healthcare", "professional services"},
			TargetIndustries:    []string{"construction", "manufacturing", "healthcare"},
			QualitySources:      []string{"referral", "linkedin", "website"},
			UrgencyKeywords:     []string{"urgent", "asap", "immediate", "need now"},
			HomeMarketTokens:    []string{"NY"},
			HotThreshold:        80,
			WarmThreshold:       65,
			ColdThreshold:       50,
		},
		Routing: config.RoutingConfig{
			SeniorCapacity:  2,
			RegularCapacity: 5,
			Sequences:       config.DefaultSequences(),
		},
		Batch: config.BatchConfig{MaxConcurrentLeads: 4},
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	cfg := testConfig()
	avail := agents.NewConfigProvider(cfg.Routing.SeniorCapacity, cfg.Routing.RegularCapacity)
	return New(cfg, st, avail, outreach.NewLogExecutor()), st
}

func hotLead() model.Lead {
	return model.Lead{
		Company:       "ABC Construction",
		Industry:      "construction",
		EmployeeCount: 150,
		AnnualBudget:  75000,
		Source:        "referral",
		Location:      "Albany NY",
		Email:         "contact@abc.com",
		Phone:         "555-1234",
		Website:       "abc.com",
		Description:   "urgent need for coverage",
	}
}

func TestProcess_HotLead(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, hotLead())
	require.NoError(t, err)

	d, err := p.Process(ctx, *lead)
	require.NoError(t, err)
	assert.Equal(t, model.TierHot, d.Qualification.Tier)
	assert.Equal(t, model.ActionImmediateCall, d.Qualification.NextAction)
	assert.Equal(t, 1, d.Qualification.TimelineHours)
	assert.Equal(t, model.HandlerSenior, d.Routing.HandlerClass)
	require.Len(t, d.Routing.OutreachSequence, 2)

	// Decision persisted and lead marked routed.
	latest, err := st.GetLatestDecision(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, d.ID, latest.ID)

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusRouted, got.Status)
}

func TestProcess_UnqualifiedLead(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	noContact := hotLead()
	noContact.Email = ""
	noContact.Phone = ""
	lead, err := st.CreateLead(ctx, noContact)
	require.NoError(t, err)

	d, err := p.Process(ctx, *lead)
	require.NoError(t, err)
	assert.Equal(t, model.TierUnqualified, d.Qualification.Tier)
	assert.Equal(t, model.ActionResearch, d.Qualification.NextAction)
	assert.Equal(t, model.HandlerAutomated, d.Routing.HandlerClass)
	assert.Empty(t, d.Routing.OutreachSequence)
}

func TestProcess_SeniorPoolDrains(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	// Capacity is 2 senior slots; the third hot lead falls back to regular.
	var handlers []model.HandlerClass
	for range 3 {
		lead, err := st.CreateLead(ctx, hotLead())
		require.NoError(t, err)
		d, err := p.Process(ctx, *lead)
		require.NoError(t, err)
		handlers = append(handlers, d.Routing.HandlerClass)
	}

	assert.Equal(t, []model.HandlerClass{
		model.HandlerSenior, model.HandlerSenior, model.HandlerRegular,
	}, handlers)
}

// flakyStore fails decision writes on demand to simulate a store outage
// mid-pipeline.
type flakyStore struct {
	store.Store
	failSaves bool
}

func (f *flakyStore) SaveDecision(ctx context.Context, d model.Decision) (*model.Decision, error) {
	if f.failSaves {
		return nil, assert.AnError
	}
	return f.Store.SaveDecision(ctx, d)
}

func TestProcess_FailedPersistKeepsSlot(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "flaky.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	cfg := testConfig()
	cfg.Routing.SeniorCapacity = 1
	avail := agents.NewConfigProvider(cfg.Routing.SeniorCapacity, cfg.Routing.RegularCapacity)
	flaky := &flakyStore{Store: st, failSaves: true}
	p := New(cfg, flaky, avail, outreach.NewLogExecutor())

	lead, err := st.CreateLead(ctx, hotLead())
	require.NoError(t, err)
	_, err = p.Process(ctx, *lead)
	require.Error(t, err)

	// The single senior slot survives the failed run and goes to the next
	// hot lead.
	flaky.failSaves = false
	lead2, err := st.CreateLead(ctx, hotLead())
	require.NoError(t, err)
	d, err := p.Process(ctx, *lead2)
	require.NoError(t, err)
	assert.Equal(t, model.HandlerSenior, d.Routing.HandlerClass)
}

func TestProcessBatch(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	var leads []model.Lead
	for range 5 {
		lead, err := st.CreateLead(ctx, hotLead())
		require.NoError(t, err)
		leads = append(leads, *lead)
	}
	// A lead missing from the store fails its status update but must not
	// abort the rest of the batch.
	leads = append(leads, model.Lead{ID: "ghost", Company: "Ghost Co", Email: "g@ghost.com"})

	result, err := p.ProcessBatch(ctx, leads)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "ghost", result.Failed[0].Lead.ID)
	assert.Equal(t, "process", result.Failed[0].Stage)
}

func TestProcessBatch_Empty(t *testing.T) {
	p, _ := newTestPipeline(t)

	result, err := p.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Succeeded)
	assert.Empty(t, result.Failed)
}
