package models

import (
	"time"
)

// Registration lifecycle
const (
	ParticipantIncomplete = "incomplete"
	ParticipantPending    = "pending"
	ParticipantApproved   = "approved"
	ParticipantRejected   = "rejected"
)

// Global availability across concurrently running sub-events
const (
	AvailabilityAvailable  = "available"
	AvailabilityBusy       = "busy"
	AvailabilityRegistered = "registered"
	AvailabilityQualified  = "qualified"
	AvailabilityRejected   = "rejected"
)

// Per-sub-event progress
const (
	EventNotStarted = "not_started"
	EventActive     = "active"
	EventQualified  = "qualified"
	EventEliminated = "eliminated"
	EventCompleted  = "completed"
)

type Participant struct {
	ID           string `json:"id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"not null"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	Phone        string `json:"phone" gorm:"uniqueIndex;not null"`
	StudentID    string `json:"student_id" gorm:"uniqueIndex;not null"`
	College      string `json:"college"`
	Department   string `json:"department"`
	Year         string `json:"year"`
	Gender       string `json:"gender,omitempty"`
	PasswordHash string `json:"-"`

	Status          string `json:"status" gorm:"index;not null"`
	Availability    string `json:"availability" gorm:"index"`
	RejectionReason string `json:"rejection_reason,omitempty"`

	// Assigned once from the chest-number counter, never rewritten.
	ChestNumber *int64 `json:"chest_number,omitempty" gorm:"uniqueIndex"`

	CurrentSubEventID *string `json:"current_sub_event_id,omitempty"`
	CurrentRoundID    *string `json:"current_round_id,omitempty"`

	// Payment metadata
	TransactionID   string     `json:"transaction_id" gorm:"uniqueIndex"`
	PaymentProofURL string     `json:"payment_proof_url"`
	AmountPaid      float64    `json:"amount_paid"`
	ExpectedAmount  float64    `json:"expected_amount"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`

	Events []ParticipantEvent `json:"events,omitempty" gorm:"foreignKey:ParticipantID;constraint:OnDelete:CASCADE"`

	Timestamps
}

// ParticipantEvent is one entry of a participant's per-sub-event status map.
type ParticipantEvent struct {
	ID             string  `json:"id" gorm:"primaryKey"`
	ParticipantID  string  `json:"participant_id" gorm:"not null;uniqueIndex:idx_participant_event"`
	SubEventID     string  `json:"sub_event_id" gorm:"not null;uniqueIndex:idx_participant_event;index"`
	Status         string  `json:"status" gorm:"not null"`
	CurrentRoundID *string `json:"current_round,omitempty"`
	RoundNumber    int     `json:"round_number"`
	// false while an add-on registration waits for admin approval
	Confirmed bool `json:"confirmed"`

	Timestamps
}

// EventProgress is the keyed view over a participant's ParticipantEvent rows.
type EventProgress map[string]ParticipantEvent

// Get returns the entry for subEventID, or the not-started default.
func (m EventProgress) Get(subEventID string) ParticipantEvent {
	if e, ok := m[subEventID]; ok {
		return e
	}
	return ParticipantEvent{SubEventID: subEventID, Status: EventNotStarted}
}

func (m EventProgress) Has(subEventID string) bool {
	_, ok := m[subEventID]
	return ok
}

// Progress requires Events to be preloaded.
func (p *Participant) Progress() EventProgress {
	m := make(EventProgress, len(p.Events))
	for _, e := range p.Events {
		m[e.SubEventID] = e
	}
	return m
}

// RegisteredSubEventIDs lists confirmed registrations.
func (p *Participant) RegisteredSubEventIDs() []string {
	var ids []string
	for _, e := range p.Events {
		if e.Confirmed {
			ids = append(ids, e.SubEventID)
		}
	}
	return ids
}

// PendingSubEventIDs lists add-on registrations awaiting approval.
func (p *Participant) PendingSubEventIDs() []string {
	var ids []string
	for _, e := range p.Events {
		if !e.Confirmed {
			ids = append(ids, e.SubEventID)
		}
	}
	return ids
}

// NewParticipantEvent builds the default not-started entry.
func NewParticipantEvent(id, participantID, subEventID string, confirmed bool) ParticipantEvent {
	return ParticipantEvent{
		ID:            id,
		ParticipantID: participantID,
		SubEventID:    subEventID,
		Status:        EventNotStarted,
		Confirmed:     confirmed,
	}
}
