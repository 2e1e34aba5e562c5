package model

import "time"

// Tier is the qualification bucket describing how aggressively a lead
// should be pursued.
type Tier string

const (
	TierHot         Tier = "hot"
	TierWarm        Tier = "warm"
	TierCold        Tier = "cold"
	TierUnqualified Tier = "unqualified"
)

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierHot, TierWarm, TierCold, TierUnqualified:
		return true
	}
	return false
}

// NextAction is the recommended follow-up for a qualified lead.
type NextAction string

const (
	ActionImmediateCall NextAction = "immediate_call"
	ActionScheduleCall  NextAction = "schedule_call"
	ActionEmailSequence NextAction = "email_sequence"
	ActionResearch      NextAction = "research"
)

// HandlerClass is the category of agent assigned to work a lead.
type HandlerClass string

const (
	HandlerSenior    HandlerClass = "senior_agent"
	HandlerRegular   HandlerClass = "regular_agent"
	HandlerAutomated HandlerClass = "automated_agent"
)

// Channel is an outreach contact channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelCall  Channel = "call"
	ChannelSMS   Channel = "sms"
)

// Qualification is the tiering outcome for a scored lead. TimelineHours is an
// SLA for downstream action, not an internal wait.
type Qualification struct {
	Tier          Tier       `json:"tier"`
	NextAction    NextAction `json:"next_action"`
	TimelineHours int        `json:"timeline_hours"`
}

// OutreachStep is a single scheduled contact attempt.
type OutreachStep struct {
	Channel      Channel `json:"channel"`
	DelayMinutes int     `json:"delay_minutes"`
	TemplateID   string  `json:"template_id"`
}

// RoutingDecision assigns a handler and an outreach sequence. The sequence is
// always non-decreasing in DelayMinutes.
type RoutingDecision struct {
	HandlerClass     HandlerClass   `json:"handler_class"`
	OutreachSequence []OutreachStep `json:"outreach_sequence,omitempty"`
}

// AvailabilitySnapshot is a read-only view of free agent slots at the moment
// a lead is routed. Keeping slot accounting live and shared is the
// availability collaborator's problem, not the router's.
type AvailabilitySnapshot struct {
	SeniorSlots  int `json:"senior_slots"`
	RegularSlots int `json:"regular_slots"`
}

// Decision is the persisted composite of all three pipeline stages for one
// lead.
type Decision struct {
	ID            string          `json:"id"`
	LeadID        string          `json:"lead_id"`
	Scored        ScoredLead      `json:"scored"`
	Qualification Qualification   `json:"qualification"`
	Routing       RoutingDecision `json:"routing"`
	DecidedAt     time.Time       `json:"decided_at"`
}
