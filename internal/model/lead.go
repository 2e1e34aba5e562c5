// Package model defines the lead records and decision types shared across the
// scoring, qualification, and routing stages.
package model

import (
	"strings"
	"time"
)

// LeadStatus represents where a lead sits in its lifecycle.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusScored    LeadStatus = "scored"
	LeadStatusRouted    LeadStatus = "routed"
	LeadStatusSynced    LeadStatus = "synced"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusLost      LeadStatus = "lost"
)

// Lead is a prospective customer record ingested from any acquisition channel.
// Leads are immutable once scored; re-scoring produces a new ScoredLead.
type Lead struct {
	ID            string     `json:"id"`
	Company       string     `json:"company"`
	Industry      string     `json:"industry,omitempty"`
	EmployeeCount int        `json:"employee_count,omitempty"`
	AnnualBudget  float64    `json:"annual_budget,omitempty"`
	Source        string     `json:"source,omitempty"`
	Location      string     `json:"location,omitempty"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Website       string     `json:"website,omitempty"`
	Description   string     `json:"description,omitempty"`
	Status        LeadStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HasContact reports whether the lead has at least one contact channel.
func (l Lead) HasContact() bool {
	return strings.TrimSpace(l.Email) != "" || strings.TrimSpace(l.Phone) != ""
}

// HasCompany reports whether the lead carries a non-blank company name.
func (l Lead) HasCompany() bool {
	return strings.TrimSpace(l.Company) != ""
}

// ScoredLead is a Lead plus its derived score. Never mutated after creation.
type ScoredLead struct {
	Lead       Lead           `json:"lead"`
	Score      int            `json:"score"`
	Components map[string]int `json:"components,omitempty"`
	ScoredAt   time.Time      `json:"scored_at"`
}
