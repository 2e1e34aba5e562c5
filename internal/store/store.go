package store

import (
	"context"
	"time"

	"github.com/sells-group/leadflow/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status model.LeadStatus `json:"status,omitempty"`
	Source string           `json:"source,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// DecisionFilter specifies criteria for listing decisions.
type DecisionFilter struct {
	Tier         model.Tier `json:"tier,omitempty"`
	LeadID       string     `json:"lead_id,omitempty"`
	DecidedAfter time.Time  `json:"decided_after,omitempty"`
	Limit        int        `json:"limit,omitempty"`
}

// Store defines the persistence interface for leads and pipeline decisions.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	BulkCreateLeads(ctx context.Context, leads []model.Lead) (int, error)
	GetLead(ctx context.Context, leadID string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLeadStatus(ctx context.Context, leadID string, status model.LeadStatus) error

	// Decisions
	SaveDecision(ctx context.Context, decision model.Decision) (*model.Decision, error)
	GetLatestDecision(ctx context.Context, leadID string) (*model.Decision, error)
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error)

	// Aggregates
	CountLeadsByStatus(ctx context.Context) (map[model.LeadStatus]int, error)
	CountDecisionsByTier(ctx context.Context) (map[model.Tier]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
