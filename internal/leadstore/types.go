package leadstore

import "time"

// Status is the lead lifecycle status. The set is open: values written by
// external systems that we do not recognize pass through untouched.
type Status string

const (
	StatusIncoming  Status = "incoming"
	StatusOngoing   Status = "ongoing"
	StatusMissed    Status = "missed"
	StatusRejected  Status = "rejected"
	StatusSpam      Status = "spam"
	StatusDiscarded Status = "discarded"
	StatusProcessed Status = "processed"
)

// Known reports whether the status is one of the recognized lifecycle values.
func (s Status) Known() bool {
	switch s {
	case StatusIncoming, StatusOngoing, StatusMissed, StatusRejected, StatusSpam, StatusDiscarded, StatusProcessed:
		return true
	}
	return false
}

// Terminal reports whether the status encodes an outcome already decided
// through another path (answered, rejected or flagged as spam).
func (s Status) Terminal() bool {
	switch s {
	case StatusOngoing, StatusRejected, StatusSpam, StatusDiscarded, StatusProcessed:
		return true
	}
	return false
}

// Source is the inbound channel tag. Open set, same passthrough policy as Status.
type Source string

const (
	SourcePhone    Source = "phone"
	SourceCentral  Source = "central"
	SourceWhatsApp Source = "whatsapp"
	SourceTypebot  Source = "typebot"
	SourceChatwoot Source = "chatwoot"
	SourceEmail    Source = "email"
	SourceWeb      Source = "web"
)

// AttemptLogCap bounds the attempt log; only the most recent entries survive.
const AttemptLogCap = 30

// AttemptEntry is one aggregated contact attempt, newest first in the log.
type AttemptEntry struct {
	At     time.Time `json:"at"`
	Source Source    `json:"source,omitempty"`
	Note   string    `json:"note,omitempty"`
}

// Lead is one human-initiated contact event as stored in the leads collection.
type Lead struct {
	ID            string         `json:"id"`
	Status        Status         `json:"status"`
	Source        Source         `json:"source,omitempty"`
	SourceEventID string         `json:"source_event_id,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Email         string         `json:"email,omitempty"`
	DisplayName   string         `json:"display_name,omitempty"`
	NIF           string         `json:"nif,omitempty"`
	DedupeKey     string         `json:"dedupe_key,omitempty"`
	AttemptCount  int            `json:"attempt_count,omitempty"`
	AttemptLog    []AttemptEntry `json:"attempt_log,omitempty"`
	FirstAttempt  *time.Time     `json:"first_attempt_at,omitempty"`
	LastAttempt   *time.Time     `json:"last_attempt_at,omitempty"`
	ContactID     string         `json:"contact_id,omitempty"`
	ClaimedBy     string         `json:"claimed_by,omitempty"`
	ClaimedAt     *time.Time     `json:"claimed_at,omitempty"`
	DiscardedAt   *time.Time     `json:"discarded_at,omitempty"`
	DateCreated   *time.Time     `json:"date_created,omitempty"`
}

// Fields is a partial write payload. Writes are last-write-wins; callers that
// care about races must re-read before patching.
type Fields map[string]any
