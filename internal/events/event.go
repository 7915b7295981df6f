// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"crm_intake_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when the intake bridge creates a new incoming lead.
type LeadCreated struct {
	BaseEvent
	LeadID      string `json:"leadId"`
	Source      string `json:"source"`
	DedupeKey   string `json:"dedupeKey"`
	CallEventID string `json:"callEventId,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadMissed is published when a lead ends up missed, either marked in place
// or merged into an existing missed lead for the same identity.
type LeadMissed struct {
	BaseEvent
	LeadID    string `json:"leadId"`
	DedupeKey string `json:"dedupeKey"`
	Merged    bool   `json:"merged"`
}

func (e LeadMissed) EventName() string { return "leads.lead.missed" }

// LeadClaimed is published when an operator answers a presented lead.
type LeadClaimed struct {
	BaseEvent
	LeadID    string `json:"leadId"`
	ClaimedBy string `json:"claimedBy"`
}

func (e LeadClaimed) EventName() string { return "leads.lead.claimed" }

// =============================================================================
// Sync Domain Events
// =============================================================================

// RecordChanged is published when a contacts or newsletter_subscriptions
// record was created or updated and the opposite collection may need a sync.
type RecordChanged struct {
	BaseEvent
	Collection string         `json:"collection"`
	Key        string         `json:"key"`
	Payload    map[string]any `json:"payload"`
}

func (e RecordChanged) EventName() string { return "sync.record.changed" }
