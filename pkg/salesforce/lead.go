package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

// SyncRecord builds a Salesforce Lead sObject from a pipeline decision.
// Custom fields carry the score and recommended action so the assigned
// agent sees the pipeline's verdict without leaving the CRM.
func SyncRecord(d model.Decision) map[string]any {
	lead := d.Scored.Lead
	rec := map[string]any{
		"Company":    lead.Company,
		"LeadSource": lead.Source,
		"Rating":     tierRating(d.Qualification.Tier),

		"Lead_Score__c":    d.Scored.Score,
		"Next_Action__c":   string(d.Qualification.NextAction),
		"Handler_Class__c": string(d.Routing.HandlerClass),
	}
	if lead.Email != "" {
		rec["Email"] = lead.Email
	}
	if lead.Phone != "" {
		rec["Phone"] = lead.Phone
	}
	if lead.Website != "" {
		rec["Website"] = lead.Website
	}
	if lead.Industry != "" {
		rec["Industry"] = lead.Industry
	}
	if lead.EmployeeCount > 0 {
		rec["NumberOfEmployees"] = lead.EmployeeCount
	}
	if lead.AnnualBudget > 0 {
		rec["Annual_Budget__c"] = lead.AnnualBudget
	}
	if lead.Description != "" {
		rec["Description"] = lead.Description
	}
	if lead.Location != "" {
		rec["City"] = lead.Location
	}
	return rec
}

// tierRating maps a pipeline tier onto the standard Lead.Rating picklist.
// Unqualified leads are not synced, so they carry no rating.
func tierRating(t model.Tier) string {
	switch t {
	case model.TierHot:
		return "Hot"
	case model.TierWarm:
		return "Warm"
	case model.TierCold:
		return "Cold"
	default:
		return ""
	}
}

// BulkCreateLeads splits records into batches of 200 (SF Collections API limit)
// and sends them via InsertCollection.
func BulkCreateLeads(ctx context.Context, c Client, records []map[string]any) ([]CollectionResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(records); start += maxBatchSize {
		end := min(start+maxBatchSize, len(records))

		results, err := c.InsertCollection(ctx, "Lead", records[start:end])
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk insert leads batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}

// LeadUpdate holds a Salesforce Lead ID and the fields to update.
type LeadUpdate struct {
	ID     string
	Fields map[string]any
}

// VerdictUpdate carries only the pipeline's verdict onto an existing org
// lead. Firmographics stay untouched: the org copy may have been enriched by
// agents since the lead was first pushed.
func VerdictUpdate(sfID string, d model.Decision) LeadUpdate {
	return LeadUpdate{
		ID: sfID,
		Fields: map[string]any{
			"Rating":           tierRating(d.Qualification.Tier),
			"Lead_Score__c":    d.Scored.Score,
			"Next_Action__c":   string(d.Qualification.NextAction),
			"Handler_Class__c": string(d.Routing.HandlerClass),
		},
	}
}

// BulkUpdateLeads splits updates into batches of 200 and sends them via
// UpdateCollection.
func BulkUpdateLeads(ctx context.Context, c Client, updates []LeadUpdate) ([]CollectionResult, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))
		batch := updates[start:end]

		records := make([]CollectionRecord, len(batch))
		for i, u := range batch {
			records[i] = CollectionRecord(u)
		}

		results, err := c.UpdateCollection(ctx, "Lead", records)
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk update leads batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}

// leadRef is the slim projection used when deduping against existing leads.
type leadRef struct {
	ID    string `json:"Id"`
	Email string `json:"Email"`
}

// ExistingLeadEmails looks up which of the given emails already exist as
// Leads in the org. Returns a map from lowercased email to Salesforce ID.
func ExistingLeadEmails(ctx context.Context, c Client, emails []string) (map[string]string, error) {
	if len(emails) == 0 {
		return map[string]string{}, nil
	}

	quoted := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		quoted = append(quoted, "'"+soqlEscape(e)+"'")
	}
	if len(quoted) == 0 {
		return map[string]string{}, nil
	}

	soql := "SELECT Id, Email FROM Lead WHERE Email IN (" + strings.Join(quoted, ", ") + ")"

	var refs []leadRef
	if err := c.Query(ctx, soql, &refs); err != nil {
		return nil, eris.Wrap(err, "sf: query existing leads")
	}

	existing := make(map[string]string, len(refs))
	for _, r := range refs {
		existing[strings.ToLower(r.Email)] = r.ID
	}
	return existing, nil
}

// soqlEscape escapes single quotes and backslashes for SOQL string literals.
func soqlEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}
