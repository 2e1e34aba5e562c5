package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
	sfpkg "github.com/sells-group/leadflow/pkg/salesforce"
)

// sfMock fakes the CRM for pushDecisions tests. orgEmails maps lowercased
// emails the org already knows to their Salesforce IDs.
type sfMock struct {
	orgEmails map[string]string
	rejectAll bool

	inserted []map[string]any
	updates  []sfpkg.CollectionRecord
}

func (m *sfMock) Query(_ context.Context, _ string, out any) error {
	type ref struct {
		ID    string `json:"Id"`
		Email string `json:"Email"`
	}
	refs := make([]ref, 0, len(m.orgEmails))
	for email, id := range m.orgEmails {
		refs = append(refs, ref{ID: id, Email: email})
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (m *sfMock) InsertCollection(_ context.Context, _ string, records []map[string]any) ([]sfpkg.CollectionResult, error) {
	m.inserted = append(m.inserted, records...)
	results := make([]sfpkg.CollectionResult, len(records))
	for i := range records {
		results[i] = sfpkg.CollectionResult{ID: "00QNEW", Success: !m.rejectAll}
		if m.rejectAll {
			results[i].Errors = []string{"REQUIRED_FIELD_MISSING: LastName"}
		}
	}
	return results, nil
}

func (m *sfMock) UpdateCollection(_ context.Context, _ string, records []sfpkg.CollectionRecord) ([]sfpkg.CollectionResult, error) {
	m.updates = append(m.updates, records...)
	results := make([]sfpkg.CollectionResult, len(records))
	for i, r := range records {
		results[i] = sfpkg.CollectionResult{ID: r.ID, Success: true}
	}
	return results, nil
}

func newSyncTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "sync_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// routedDecision seeds a routed lead plus its decision and returns the decision.
func routedDecision(t *testing.T, st store.Store, company, email string) model.Decision {
	t.Helper()
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, model.Lead{
		Company: company,
		Email:   email,
		Source:  "broker-feed",
		Status:  model.LeadStatusRouted,
	})
	require.NoError(t, err)

	d, err := st.SaveDecision(ctx, model.Decision{
		LeadID: lead.ID,
		Scored: model.ScoredLead{Lead: *lead, Score: 85},
		Qualification: model.Qualification{
			Tier:          model.TierHot,
			NextAction:    model.ActionImmediateCall,
			TimelineHours: 1,
		},
		Routing: model.RoutingDecision{HandlerClass: model.HandlerSenior},
	})
	require.NoError(t, err)
	return *d
}

func TestPushDecisions_InsertsNewLeads(t *testing.T) {
	st := newSyncTestStore(t)
	d := routedDecision(t, st, "ABC Construction", "contact@abc.com")
	sf := &sfMock{}

	created, updated, err := pushDecisions(context.Background(), sf, st, []model.Decision{d})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Zero(t, updated)
	require.Len(t, sf.inserted, 1)
	assert.Equal(t, "ABC Construction", sf.inserted[0]["Company"])
	assert.Empty(t, sf.updates)

	got, err := st.GetLead(context.Background(), d.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusSynced, got.Status)
}

func TestPushDecisions_RefreshesExistingLeads(t *testing.T) {
	st := newSyncTestStore(t)
	d := routedDecision(t, st, "ABC Construction", "contact@abc.com")
	sf := &sfMock{orgEmails: map[string]string{"contact@abc.com": "00Q1"}}

	created, updated, err := pushDecisions(context.Background(), sf, st, []model.Decision{d})
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, 1, updated)
	assert.Empty(t, sf.inserted)

	require.Len(t, sf.updates, 1)
	assert.Equal(t, "00Q1", sf.updates[0].ID)
	assert.Equal(t, "Hot", sf.updates[0].Fields["Rating"])
	assert.Equal(t, 85, sf.updates[0].Fields["Lead_Score__c"])
	// The verdict refresh never touches firmographics.
	assert.NotContains(t, sf.updates[0].Fields, "Company")

	got, err := st.GetLead(context.Background(), d.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusSynced, got.Status)
}

func TestPushDecisions_RejectedLeadStaysRouted(t *testing.T) {
	st := newSyncTestStore(t)
	d := routedDecision(t, st, "ABC Construction", "contact@abc.com")
	sf := &sfMock{rejectAll: true}

	created, updated, err := pushDecisions(context.Background(), sf, st, []model.Decision{d})
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Zero(t, updated)

	got, err := st.GetLead(context.Background(), d.LeadID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusRouted, got.Status)
}

func TestPushDecisions_PartitionsByOrgMembership(t *testing.T) {
	st := newSyncTestStore(t)
	fresh := routedDecision(t, st, "XYZ Manufacturing", "ops@xyz.com")
	known := routedDecision(t, st, "ABC Construction", "contact@abc.com")
	sf := &sfMock{orgEmails: map[string]string{"contact@abc.com": "00Q1"}}

	created, updated, err := pushDecisions(context.Background(), sf, st, []model.Decision{fresh, known})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)
	require.Len(t, sf.inserted, 1)
	assert.Equal(t, "XYZ Manufacturing", sf.inserted[0]["Company"])
	require.Len(t, sf.updates, 1)
	assert.Equal(t, "00Q1", sf.updates[0].ID)
}
